package pipeline

import (
	"errors"
	"fmt"
)

// Kind classifies a stage failure.
type Kind string

const (
	// KindTransient covers rate-limited analyzer calls; the only retried kind.
	KindTransient Kind = "transient"
	// KindFatal aborts the current stage without retry.
	KindFatal Kind = "fatal"
	// KindNotFound covers missing source objects or rows.
	KindNotFound Kind = "not_found"
)

const (
	StageIngest    = "ingest"
	StageSummarize = "summarize"
)

// StageError carries the stage and failure kind alongside the cause, so a
// job's error_message is diagnosable without digging through worker logs.
type StageError struct {
	Stage string
	Kind  Kind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage string, kind Kind, err error) *StageError {
	return &StageError{Stage: stage, Kind: kind, Err: err}
}

// KindOf extracts the failure kind from a wrapped StageError, defaulting to
// fatal for untyped errors.
func KindOf(err error) Kind {
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindFatal
}
