package runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twizmwazin/pap/pkg/store"
)

func newTestRuntime(t *testing.T) (*StepRuntime, *store.SQLiteStore) {
	t.Helper()
	db, err := store.NewSQLiteStore(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sub := &store.Submission{
		Config: store.Config{
			Projects: []store.Project{{Name: "p1", Binary: "p1.bin", Arch: "x86_64"}},
			Jobs: []store.Job{{
				Name: "job1",
				Steps: []store.Step{{
					Name: "step1",
					Call: "hello",
					Args: map[string]store.ArgValue{"name": store.NewStringArg("world")},
					IO:   map[string]string{"out": "ns/key"},
				}},
			}},
		},
		Files: map[string][]byte{"p1.bin": []byte("binary-bytes")},
	}
	status, err := db.InsertPipeline(context.Background(), sub)
	require.NoError(t, err)
	job, err := db.GetJob(context.Background(), status.Jobs[0])
	require.NoError(t, err)

	rt := New(context.Background(), db, job.Steps[0], *status, sub.Files)
	return rt, db
}

func TestGetArgRendersCanonicalString(t *testing.T) {
	rt, _ := newTestRuntime(t)
	v, ok := rt.GetArg("name")
	assert.True(t, ok)
	assert.Equal(t, "world", v)

	_, ok = rt.GetArg("missing")
	assert.False(t, ok)
}

func TestGetIOAndHasIO(t *testing.T) {
	rt, _ := newTestRuntime(t)
	assert.True(t, rt.HasIO("out"))
	v, ok := rt.GetIO("out")
	assert.True(t, ok)
	assert.Equal(t, "ns/key", v)
	assert.False(t, rt.HasIO("missing"))
}

func TestGetFile(t *testing.T) {
	rt, _ := newTestRuntime(t)
	data, ok := rt.GetFile("p1.bin")
	assert.True(t, ok)
	assert.Equal(t, []byte("binary-bytes"), data)

	_, ok = rt.GetFile("missing.bin")
	assert.False(t, ok)
}

func TestLogAccumulatesAndTakeLogCopies(t *testing.T) {
	rt, _ := newTestRuntime(t)
	rt.Log("first")
	rt.Log("second")

	log := rt.TakeLog()
	assert.Equal(t, "first\nsecond\n", string(log))

	log[0] = 'X'
	assert.Equal(t, "first\nsecond\n", string(rt.TakeLog()), "mutating a returned log must not change the buffer")
}

func TestPutAndGetObject(t *testing.T) {
	rt, _ := newTestRuntime(t)
	require.NoError(t, rt.PutObject("ns", []byte("key"), []byte("value")))
	got, err := rt.GetObject("ns", []byte("key"))
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), got)
}

func TestIsCancelledReflectsPipelineStatus(t *testing.T) {
	rt, db := newTestRuntime(t)
	assert.False(t, rt.IsCancelled())

	require.NoError(t, db.SetPipelineStatus(context.Background(), rt.PipelineStatus().ID, store.StatusCancelled))
	assert.True(t, rt.IsCancelled())
}
