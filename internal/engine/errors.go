package engine

import (
	"errors"
	"fmt"
)

// Sentinel errors for the three failure outcomes. Match with errors.Is.
var (
	ErrIngestionFailure = errors.New("ingestion failure")
	ErrSchemaViolation  = errors.New("schema violation")
	ErrInferenceFailure = errors.New("inference failure")
)

// IngestionError reports that context gathering produced nothing usable.
type IngestionError struct {
	Err error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingestion failure: %v", e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }

func (e *IngestionError) Is(target error) bool { return target == ErrIngestionFailure }

// SchemaViolationError reports a structurally valid payload whose shape does
// not match the declared contract. Path locates the offending field.
type SchemaViolationError struct {
	Path   string
	Reason string
}

func (e *SchemaViolationError) Error() string {
	if e.Path == "" {
		return "schema violation: " + e.Reason
	}
	return fmt.Sprintf("schema violation at %s: %s", e.Path, e.Reason)
}

func (e *SchemaViolationError) Is(target error) bool { return target == ErrSchemaViolation }

// InferenceError reports a failed call or a payload that is not structured
// data at all.
type InferenceError struct {
	Op  string
	Err error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference failure during %s: %v", e.Op, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

func (e *InferenceError) Is(target error) bool { return target == ErrInferenceFailure }

// Outcome classifies err for metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrSchemaViolation):
		return "schema_violation"
	case errors.Is(err, ErrIngestionFailure):
		return "ingestion_failure"
	case errors.Is(err, ErrInferenceFailure):
		return "inference_failure"
	default:
		return "error"
	}
}
