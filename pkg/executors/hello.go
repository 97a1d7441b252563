// Package executors provides the orchestrator's built-in step
// executors.
package executors

import (
	"fmt"

	"github.com/twizmwazin/pap/pkg/runtime"
	"github.com/twizmwazin/pap/pkg/store"
)

// HelloExecutor is a smoke-test step: it logs a greeting built from its
// required `name` argument.
type HelloExecutor struct{}

func (HelloExecutor) Name() string { return "hello" }

func (HelloExecutor) Execute(rt *runtime.StepRuntime) error {
	name, ok := rt.GetArg("name")
	if !ok {
		return store.Executionf("missing `name` argument")
	}
	rt.Log(fmt.Sprintf("Hello, %s!", name))
	return nil
}
