package executors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twizmwazin/pap/pkg/runtime"
	"github.com/twizmwazin/pap/pkg/store"
)

func buildRuntime(t *testing.T, args map[string]store.ArgValue) *runtime.StepRuntime {
	t.Helper()
	db, err := store.NewSQLiteStore(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sub := &store.Submission{
		Config: store.Config{
			Projects: []store.Project{{Name: "p1", Binary: "p1.bin", Arch: "x86_64"}},
			Jobs: []store.Job{{
				Name:  "job1",
				Steps: []store.Step{{Name: "step1", Call: "hello", Args: args}},
			}},
		},
		Files: map[string][]byte{"p1.bin": {}},
	}
	status, err := db.InsertPipeline(context.Background(), sub)
	require.NoError(t, err)
	job, err := db.GetJob(context.Background(), status.Jobs[0])
	require.NoError(t, err)
	return runtime.New(context.Background(), db, job.Steps[0], *status, sub.Files)
}

func TestHelloExecutorLogsGreeting(t *testing.T) {
	rt := buildRuntime(t, map[string]store.ArgValue{"name": store.NewStringArg("world")})
	err := HelloExecutor{}.Execute(rt)
	require.NoError(t, err)
	assert.Equal(t, "Hello, world!\n", string(rt.TakeLog()))
}

func TestHelloExecutorRequiresNameArg(t *testing.T) {
	rt := buildRuntime(t, map[string]store.ArgValue{})
	err := HelloExecutor{}.Execute(rt)
	require.Error(t, err)
	assert.Equal(t, store.KindExecution, store.KindOf(err))
}
