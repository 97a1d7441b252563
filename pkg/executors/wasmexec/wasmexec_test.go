package wasmexec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twizmwazin/pap/pkg/runtime"
	"github.com/twizmwazin/pap/pkg/store"
	"go.uber.org/zap"
)

func buildRuntime(t *testing.T, args map[string]store.ArgValue, files map[string][]byte) *runtime.StepRuntime {
	t.Helper()
	db, err := store.NewSQLiteStore(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sub := &store.Submission{
		Config: store.Config{
			Projects: []store.Project{{Name: "p1", Binary: "p1.bin", Arch: "x86_64"}},
			Jobs: []store.Job{{
				Name:  "job1",
				Steps: []store.Step{{Name: "step1", Call: "wasm_probe", Args: args}},
			}},
		},
		Files: files,
	}
	status, err := db.InsertPipeline(context.Background(), sub)
	require.NoError(t, err)
	job, err := db.GetJob(context.Background(), status.Jobs[0])
	require.NoError(t, err)
	return runtime.New(context.Background(), db, job.Steps[0], *status, files)
}

func TestName(t *testing.T) {
	e, err := New(zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	assert.Equal(t, "wasm_probe", e.Name())
}

func TestExecuteRequiresModuleArg(t *testing.T) {
	e, err := New(zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })

	rt := buildRuntime(t, map[string]store.ArgValue{}, nil)
	err = e.Execute(rt)
	require.Error(t, err)
	assert.Equal(t, store.KindExecution, store.KindOf(err))
}

func TestExecuteRequiresKnownFile(t *testing.T) {
	e, err := New(zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })

	rt := buildRuntime(t, map[string]store.ArgValue{"module": store.NewStringArg("missing.wasm")}, nil)
	err = e.Execute(rt)
	require.Error(t, err)
	assert.Equal(t, store.KindExecution, store.KindOf(err))
}

func TestExecuteRejectsInvalidModuleBytes(t *testing.T) {
	e, err := New(zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })

	files := map[string][]byte{"bad.wasm": []byte("not a real wasm module")}
	rt := buildRuntime(t, map[string]store.ArgValue{"module": store.NewStringArg("bad.wasm")}, files)
	err = e.Execute(rt)
	require.Error(t, err)
	assert.Equal(t, store.KindExecution, store.KindOf(err))
}
