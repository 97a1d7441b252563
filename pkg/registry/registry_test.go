package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/twizmwazin/pap/pkg/runtime"
	"go.uber.org/zap"
)

type stubExecutor struct{ name string }

func (s stubExecutor) Name() string                          { return s.name }
func (s stubExecutor) Execute(rt *runtime.StepRuntime) error { return nil }

func TestRegisterAndGet(t *testing.T) {
	r := New(zap.NewNop())
	assert.False(t, r.Has("hello"))

	r.Register(stubExecutor{name: "hello"})
	assert.True(t, r.Has("hello"))

	executor, ok := r.Get("hello")
	assert.True(t, ok)
	assert.Equal(t, "hello", executor.Name())
}

func TestGetUnknownReturnsFalse(t *testing.T) {
	r := New(zap.NewNop())
	_, ok := r.Get("nope")
	assert.False(t, ok)
}

func TestRegisterOverwritesSameName(t *testing.T) {
	r := New(zap.NewNop())
	first := &stubExecutor{name: "dup"}
	second := &stubExecutor{name: "dup"}
	r.Register(first)
	r.Register(second)
	assert.True(t, r.Has("dup"))

	executor, ok := r.Get("dup")
	assert.True(t, ok)
	assert.Same(t, second, executor, "the later registration must replace the earlier one")
}
