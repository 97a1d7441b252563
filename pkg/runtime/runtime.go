// Package runtime implements the Step Runtime: the capability facade
// handed to a step executor during Execute. It is the only channel
// through which an executing step may touch arguments, I/O bindings,
// the submission's file bundle, logging, object storage, and
// cancellation.
package runtime

import (
	"bytes"
	"context"
	"sync"

	"github.com/twizmwazin/pap/pkg/store"
)

// StepRuntime is built fresh for each step invocation by the Executor
// Engine and discarded afterward.
type StepRuntime struct {
	ctx            context.Context
	db             store.Store
	step           store.StepStatus
	pipelineStatus store.PipelineStatus
	files          map[string][]byte

	logMu sync.Mutex
	log   bytes.Buffer
}

// New builds a StepRuntime for the given step, scoped to the owning
// pipeline's status snapshot and submitted file bundle.
func New(ctx context.Context, db store.Store, step store.StepStatus, pipelineStatus store.PipelineStatus, files map[string][]byte) *StepRuntime {
	return &StepRuntime{
		ctx:            ctx,
		db:             db,
		step:           step,
		pipelineStatus: pipelineStatus,
		files:          files,
	}
}

// GetArg returns the step's declared argument value rendered to its
// canonical string form, per the argument-rendering rule in
// store.ArgValue.String.
func (r *StepRuntime) GetArg(name string) (string, bool) {
	v, ok := r.step.Config.Args[name]
	if !ok {
		return "", false
	}
	return v.String(), true
}

func (r *StepRuntime) HasArg(name string) bool {
	_, ok := r.step.Config.Args[name]
	return ok
}

// GetIO returns the namespace/path bound to an I/O name.
func (r *StepRuntime) GetIO(name string) (string, bool) {
	v, ok := r.step.Config.IO[name]
	return v, ok
}

func (r *StepRuntime) HasIO(name string) bool {
	_, ok := r.step.Config.IO[name]
	return ok
}

// GetFile returns the bytes of a project's binary, keyed by the
// `binary` path declared in the submission's config.
func (r *StepRuntime) GetFile(name string) ([]byte, bool) {
	b, ok := r.files[name]
	return b, ok
}

// Status returns the step's own persisted status snapshot.
func (r *StepRuntime) Status() store.StepStatus { return r.step }

// PipelineStatus returns the owning pipeline's status snapshot, so a
// step can enumerate projects or find one named by an arg.
func (r *StepRuntime) PipelineStatus() store.PipelineStatus { return r.pipelineStatus }

// Log appends a line to the step's log buffer. Safe for concurrent use
// from helper goroutines spawned by the step itself.
func (r *StepRuntime) Log(message string) {
	r.logMu.Lock()
	defer r.logMu.Unlock()
	r.log.WriteString(message)
	r.log.WriteByte('\n')
}

// TakeLog returns the accumulated log bytes. Called by the Engine
// after the step returns, regardless of outcome.
func (r *StepRuntime) TakeLog() []byte {
	r.logMu.Lock()
	defer r.logMu.Unlock()
	out := make([]byte, r.log.Len())
	copy(out, r.log.Bytes())
	return out
}

// PutObject and GetObject pass straight through to the Store. In Go,
// database/sql calls already only block the calling goroutine, so
// unlike the tokio-based original there is no async/sync boundary to
// bridge here; the wrapping is kept so a future Store with real
// suspension points does not change this contract.
func (r *StepRuntime) PutObject(namespace string, key, value []byte) error {
	return r.db.PutObject(r.ctx, namespace, key, value)
}

func (r *StepRuntime) GetObject(namespace string, key []byte) ([]byte, error) {
	return r.db.GetObject(r.ctx, namespace, key)
}

// IsCancelled reports whether the step, its job, or its pipeline has
// been marked Cancelled. A well-behaved step polls this at loop heads.
func (r *StepRuntime) IsCancelled() bool {
	cancelled, err := r.db.IsStepCancelled(r.ctx, r.step.ID)
	if err != nil {
		return false
	}
	return cancelled
}
