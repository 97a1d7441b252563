package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleSubmission() *Submission {
	return &Submission{
		Config: Config{
			Projects: []Project{{Name: "p1", Binary: "p1.bin", Arch: "x86_64"}},
			Jobs: []Job{
				{
					Name: "job1",
					Steps: []Step{
						{Name: "step1", Call: "hello", Args: map[string]ArgValue{"name": NewStringArg("world")}},
						{Name: "step2", Call: "hello", Args: map[string]ArgValue{"name": NewStringArg("again")}},
					},
				},
			},
		},
		Files: map[string][]byte{"p1.bin": []byte{0x7f, 'E', 'L', 'F'}},
	}
}

func TestInsertAndGetPipeline(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	status, err := s.InsertPipeline(ctx, sampleSubmission())
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, status.Status)
	require.Len(t, status.Jobs, 1)

	got, err := s.GetPipeline(ctx, status.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status, "persisted row stays Pending until the engine writes Running")
	assert.Equal(t, status.Jobs, got.Jobs)
}

func TestGetSubmissionFiles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	status, err := s.InsertPipeline(ctx, sampleSubmission())
	require.NoError(t, err)

	files, err := s.GetSubmissionFiles(ctx, status.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x7f, 'E', 'L', 'F'}, files["p1.bin"])
}

func TestCancelPipelineCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	status, err := s.InsertPipeline(ctx, sampleSubmission())
	require.NoError(t, err)
	require.NoError(t, s.SetJobStatus(ctx, status.Jobs[0], StatusRunning))

	require.NoError(t, s.CancelPipeline(ctx, status.ID))

	pipeline, err := s.GetPipeline(ctx, status.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, pipeline.Status)

	job, err := s.GetJob(ctx, status.Jobs[0])
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, job.Status)
	for _, step := range job.Steps {
		assert.Equal(t, StatusCancelled, step.Status)
	}
}

func TestCancelJobCascadesToItsSteps(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	status, err := s.InsertPipeline(ctx, sampleSubmission())
	require.NoError(t, err)
	jobID := status.Jobs[0]

	require.NoError(t, s.CancelJob(ctx, jobID))

	job, err := s.GetJob(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, job.Status)
	for _, step := range job.Steps {
		assert.Equal(t, StatusCancelled, step.Status)
	}
}

func TestIsStepCancelledReflectsAncestors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	status, err := s.InsertPipeline(ctx, sampleSubmission())
	require.NoError(t, err)
	job, err := s.GetJob(ctx, status.Jobs[0])
	require.NoError(t, err)
	stepID := job.Steps[0].ID

	cancelled, err := s.IsStepCancelled(ctx, stepID)
	require.NoError(t, err)
	assert.False(t, cancelled)

	require.NoError(t, s.SetPipelineStatus(ctx, status.ID, StatusCancelled))

	cancelled, err = s.IsStepCancelled(ctx, stepID)
	require.NoError(t, err)
	assert.True(t, cancelled, "a pipeline-level cancel must be visible from a step's own status check")
}

func TestDeletePipelineRemovesJobsAndSteps(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	status, err := s.InsertPipeline(ctx, sampleSubmission())
	require.NoError(t, err)
	job, err := s.GetJob(ctx, status.Jobs[0])
	require.NoError(t, err)

	require.NoError(t, s.DeletePipeline(ctx, status.ID))

	_, err = s.GetPipeline(ctx, status.ID)
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))

	_, err = s.GetJob(ctx, status.Jobs[0])
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))

	for _, step := range job.Steps {
		_, err = s.GetStepLog(ctx, step.ID)
		require.Error(t, err)
		assert.Equal(t, KindNotFound, KindOf(err))
	}
}

func TestDeleteUnknownPipelineIsNotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.DeletePipeline(context.Background(), 9999)
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestObjectRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutObject(ctx, "ns", []byte("key"), []byte("value")))
	got, err := s.GetObject(ctx, "ns", []byte("key"))
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), got)

	require.NoError(t, s.PutObject(ctx, "ns", []byte("key"), []byte("overwritten")))
	got, err = s.GetObject(ctx, "ns", []byte("key"))
	require.NoError(t, err)
	assert.Equal(t, []byte("overwritten"), got)
}

func TestGetMissingObjectIsNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetObject(context.Background(), "ns", []byte("missing"))
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestRecordErrorFailsPipelineAndLogsMessage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	status, err := s.InsertPipeline(ctx, sampleSubmission())
	require.NoError(t, err)

	require.NoError(t, s.RecordError(ctx, status.ID, "executor blew up"))

	pipeline, err := s.GetPipeline(ctx, status.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, pipeline.Status)

	var message string
	require.NoError(t, s.db.QueryRowContext(ctx,
		`SELECT error_message FROM global_errors WHERE pipeline_id = ?`, status.ID).Scan(&message))
	assert.Equal(t, "executor blew up", message)
}

func TestStepLogRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	status, err := s.InsertPipeline(ctx, sampleSubmission())
	require.NoError(t, err)
	job, err := s.GetJob(ctx, status.Jobs[0])
	require.NoError(t, err)
	stepID := job.Steps[0].ID

	require.NoError(t, s.SetStepLog(ctx, stepID, []byte("Hello, world!\n")))
	log, err := s.GetStepLog(ctx, stepID)
	require.NoError(t, err)
	assert.Equal(t, []byte("Hello, world!\n"), log)
}

func TestArgValueJSONRoundTrip(t *testing.T) {
	cases := []ArgValue{
		NewBoolArg(true),
		NewIntArg(42),
		NewStringArg("hello"),
	}
	for _, arg := range cases {
		b, err := arg.MarshalJSON()
		require.NoError(t, err)
		var out ArgValue
		require.NoError(t, out.UnmarshalJSON(b))
		assert.Equal(t, arg, out)
	}
}
