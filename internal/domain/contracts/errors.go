package contracts

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrExtraction         = errors.New("document is unreadable")
	ErrNoExtractableText  = fmt.Errorf("%w: no extractable text", ErrExtraction)
	ErrClassification     = errors.New("contract type detection failed")
	ErrBackendUnavailable = errors.New("ai backend unavailable")
	ErrSchema             = errors.New("ai backend returned an unusable analysis")
	ErrPersistence        = errors.New("storage error")
	ErrNotFound           = errors.New("analysis not found")
	ErrStorageDisabled    = errors.New("file storage is not configured")
)

// Stage names a pipeline step.
type Stage string

const (
	StageInput    Stage = "input"
	StageExtract  Stage = "extract"
	StageClassify Stage = "classify"
	StageAnalyze  Stage = "analyze"
	StagePersist  Stage = "persist"
)

// StageError carries the failing stage and the document it was working on.
type StageError struct {
	Stage  Stage
	Source string
	Err    error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }

func (e *StageError) Unwrap() error { return e.Err }

// Retryable reports whether resubmitting the same input may succeed.
func (e *StageError) Retryable() bool { return errors.Is(e.Err, ErrBackendUnavailable) }

// StageOf returns the stage recorded in err, or "" when err carries none.
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// Invalid returns an input error with a short reason.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
