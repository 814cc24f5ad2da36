package main

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindConfig      ErrorKind = "config"
	KindIO          ErrorKind = "io"
	KindDataFormat  ErrorKind = "data-format"
	KindOutOfMemory ErrorKind = "out-of-memory"
	KindScheduling  ErrorKind = "scheduling"
	KindMismatch    ErrorKind = "correctness-mismatch"
)

// PipelineError carries the failure kind and the stage at which it occurred.
// Every failure is fatal to the run: callers classify with ErrorKindOf and
// never retry, because a benchmark must stay a single-attempt measurement.
type PipelineError struct {
	Kind  ErrorKind
	Stage string
	Err   error
}

func (e *PipelineError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v error at stage '%v'", e.Kind, e.Stage)
	}
	return fmt.Sprintf("%v error at stage '%v': %v", e.Kind, e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

func pipelineErrorf(kind ErrorKind, stage string, format string, args ...any) error {
	return &PipelineError{Kind: kind, Stage: stage, Err: fmt.Errorf(format, args...)}
}

func wrapPipelineError(kind ErrorKind, stage string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PipelineError
	if errors.As(err, &pe) {
		return err
	}
	return &PipelineError{Kind: kind, Stage: stage, Err: err}
}

// ErrorKindOf reports the kind of the first PipelineError in the chain.
func ErrorKindOf(err error) (ErrorKind, bool) {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return "", false
}

// ErrorStageOf reports the stage of the first PipelineError in the chain.
func ErrorStageOf(err error) (string, bool) {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Stage, true
	}
	return "", false
}
