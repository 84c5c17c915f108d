package pipeline

import (
	"time"

	"github.com/teranos/gauntlet/errors"
)

// Mode selects which plugin body an execution runs.
type Mode string

const (
	ModeProcess Mode = "process"
	ModeRepair  Mode = "repair"
)

// ErrorKind distinguishes a unit that reported failure from one that crashed.
type ErrorKind string

const (
	// ErrorKindFailure means the plugin body returned an error.
	ErrorKindFailure ErrorKind = "failure"
	// ErrorKindUnexpected means the plugin body panicked.
	ErrorKindUnexpected ErrorKind = "unexpected"
)

// UnitError is the error payload of a failed Result.
type UnitError struct {
	Kind    ErrorKind
	Message string
	Trace   string
}

func (e *UnitError) Error() string {
	return e.Message
}

// Is matches ErrUnitFailure or ErrUnexpectedUnit according to Kind.
func (e *UnitError) Is(target error) bool {
	switch e.Kind {
	case ErrorKindFailure:
		return target == errors.ErrUnitFailure
	case ErrorKindUnexpected:
		return target == errors.ErrUnexpectedUnit
	}
	return false
}

// Result is the outcome of one (plugin, target) execution.
type Result struct {
	PluginID     string
	PluginName   string
	InstanceID   string // empty when the target is the Context
	InstanceName string
	Phase        Phase
	Mode         Mode
	Success      bool
	Error        *UnitError
	Records      []Record
	Duration     time.Duration
}

// Target returns the ref of the target this Result was produced for.
func (r *Result) Target() TargetRef {
	return TargetRef{InstanceID: r.InstanceID, Name: r.InstanceName}
}

// Failed reports whether the Result is a failure.
func (r *Result) Failed() bool {
	return !r.Success
}
