// Package registry provides the pluggable step-executor lookup used to
// validate submissions and to dispatch steps during execution.
package registry

import (
	"sync"

	"github.com/twizmwazin/pap/pkg/runtime"
	"go.uber.org/zap"
)

// StepExecutor is the capability implemented by every registered step.
// Name must be stable and match the `call` field used in job configs.
type StepExecutor interface {
	Name() string
	Execute(rt *runtime.StepRuntime) error
}

// Registry maps a step's `call` name to its StepExecutor. It is built
// once at process start (via New, then Register for each executor) and
// is treated as immutable once the server begins accepting submissions.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]StepExecutor
	logger    *zap.Logger
}

// New creates an empty Registry.
func New(logger *zap.Logger) *Registry {
	return &Registry{
		executors: make(map[string]StepExecutor),
		logger:    logger.With(zap.String("component", "registry")),
	}
}

// Register adds executor under its own Name(), overwriting any prior
// registration of the same name.
func (r *Registry) Register(executor StepExecutor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[executor.Name()] = executor
	r.logger.Info("step executor registered", zap.String("call", executor.Name()))
}

// Get looks up an executor by call name. The bool is false if no
// executor is registered under that name.
func (r *Registry) Get(name string) (StepExecutor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.executors[name]
	return e, ok
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}
