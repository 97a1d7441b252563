// Package store defines the orchestrator's domain model and the
// transactional persistence interface backing it.
package store

import (
	"encoding/json"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ExecutionStatus is the lifecycle state of a pipeline, job, or step.
type ExecutionStatus string

const (
	StatusPending   ExecutionStatus = "Pending"
	StatusRunning   ExecutionStatus = "Running"
	StatusCompleted ExecutionStatus = "Completed"
	StatusFailed    ExecutionStatus = "Failed"
	StatusCancelled ExecutionStatus = "Cancelled"
)

// Terminal reports whether status is one that the Engine never
// transitions out of.
func (s ExecutionStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// ArgValue is a step argument value: bool, int64, or string. It mirrors
// the original config's untagged bool|int|string enum, preferring the
// narrowest type on unmarshal (bool, then integer, then string).
type ArgValue struct {
	kind    argKind
	boolV   bool
	intV    int64
	stringV string
}

type argKind int

const (
	argBool argKind = iota
	argInt
	argString
)

func NewBoolArg(v bool) ArgValue     { return ArgValue{kind: argBool, boolV: v} }
func NewIntArg(v int64) ArgValue     { return ArgValue{kind: argInt, intV: v} }
func NewStringArg(v string) ArgValue { return ArgValue{kind: argString, stringV: v} }

// String renders the canonical string form surfaced to step executors
// via the Step Runtime: "true"/"false" for bools, decimal for integers,
// and the raw value for strings.
func (a ArgValue) String() string {
	switch a.kind {
	case argBool:
		if a.boolV {
			return "true"
		}
		return "false"
	case argInt:
		return strconv.FormatInt(a.intV, 10)
	default:
		return a.stringV
	}
}

func (a ArgValue) MarshalJSON() ([]byte, error) {
	switch a.kind {
	case argBool:
		return json.Marshal(a.boolV)
	case argInt:
		return json.Marshal(a.intV)
	default:
		return json.Marshal(a.stringV)
	}
}

func (a *ArgValue) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*a = NewBoolArg(b)
		return nil
	}
	var i int64
	if err := json.Unmarshal(data, &i); err == nil {
		*a = NewIntArg(i)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*a = NewStringArg(s)
		return nil
	}
	return fmt.Errorf("store: arg value must be bool, integer, or string")
}

func (a ArgValue) MarshalYAML() (interface{}, error) {
	switch a.kind {
	case argBool:
		return a.boolV, nil
	case argInt:
		return a.intV, nil
	default:
		return a.stringV, nil
	}
}

func (a *ArgValue) UnmarshalYAML(value *yaml.Node) error {
	var b bool
	if err := value.Decode(&b); err == nil {
		*a = NewBoolArg(b)
		return nil
	}
	var i int64
	if err := value.Decode(&i); err == nil {
		*a = NewIntArg(i)
		return nil
	}
	var s string
	if err := value.Decode(&s); err == nil {
		*a = NewStringArg(s)
		return nil
	}
	return fmt.Errorf("store: arg value must be bool, integer, or string")
}

// Loader describes where to place a project's image in memory.
type Loader struct {
	BaseAddress  uint64 `json:"base_address" yaml:"base_address"`
	StackAddress uint64 `json:"stack_address" yaml:"stack_address"`
}

// MMIOEntry describes a memory-mapped I/O region a project's loader
// should install a handler for.
type MMIOEntry struct {
	Address uint64 `json:"address" yaml:"address"`
	Size    uint64 `json:"size" yaml:"size"`
	Handler string `json:"handler" yaml:"handler" binding:"required"`
}

// Project names one binary artifact used by a pipeline's jobs.
type Project struct {
	Name   string      `json:"name" yaml:"name" binding:"required"`
	Binary string      `json:"binary" yaml:"binary" binding:"required"`
	Arch   string      `json:"arch" yaml:"arch" binding:"required"`
	Loader *Loader     `json:"loader,omitempty" yaml:"loader,omitempty"`
	MMIO   []MMIOEntry `json:"mmio,omitempty" yaml:"mmio,omitempty"`
}

// Step is one invocation of a registered executor within a Job.
type Step struct {
	Name string              `json:"name" yaml:"name" binding:"required"`
	Call string              `json:"call" yaml:"call" binding:"required"`
	Args map[string]ArgValue `json:"args" yaml:"args"`
	IO   map[string]string   `json:"io,omitempty" yaml:"io,omitempty"`
}

// Job is a named, ordered sequence of Steps.
type Job struct {
	Name  string `json:"name" yaml:"name" binding:"required"`
	Steps []Step `json:"steps" yaml:"steps" binding:"required,min=1"`
}

// Config is the declarative description of a pipeline's projects and
// jobs, as parsed from a submitted YAML config file.
type Config struct {
	Projects []Project `json:"projects" yaml:"projects" binding:"required,min=1"`
	Jobs     []Job     `json:"jobs" yaml:"jobs" binding:"required,min=1"`
}

// Submission is the immutable bundle a client hands to submit_pipeline:
// a Config plus the exact bytes of every project's declared binary.
type Submission struct {
	Config Config            `json:"config"`
	Files  map[string][]byte `json:"files"`
}

// StepStatus is the persisted state of one Step.
type StepStatus struct {
	ID        uint32          `json:"id"`
	JobID     uint32          `json:"job_id"`
	PipelineID uint32         `json:"pipeline_id"`
	Config    Step            `json:"config"`
	Status    ExecutionStatus `json:"status"`
	Log       []byte          `json:"log,omitempty"`
	Output    []byte          `json:"output,omitempty"`
}

// JobStatus is the persisted state of one Job, with its Steps ordered
// by declaration order.
type JobStatus struct {
	ID          uint32          `json:"id"`
	PipelineID  uint32          `json:"pipeline_id"`
	Config      Job             `json:"config"`
	Status      ExecutionStatus `json:"status"`
	CurrentStep *uint32         `json:"current_step,omitempty"`
	Steps       []StepStatus    `json:"steps"`
}

// PipelineStatus is the persisted state of one Pipeline. Error is kept
// always nil at this layer; see DESIGN.md's Open Question decision.
type PipelineStatus struct {
	ID     uint32          `json:"id"`
	Config Config          `json:"config"`
	Status ExecutionStatus `json:"status"`
	Jobs   []uint32        `json:"jobs"`
	Error  *string         `json:"error,omitempty"`
}
