package model

import (
	"fmt"
	"strings"
)

// ValidationError reports the first single-record field that failed
// type coercion or its domain check.
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s %s", e.Field, e.Reason)
}

// MissingColumns reports every required column absent from an upload.
type MissingColumns struct {
	Columns []string `json:"columns"`
}

func (e *MissingColumns) Error() string {
	return "missing required columns: " + strings.Join(e.Columns, ", ")
}

// IngestError reports an upload that could not be parsed or scored
// because a cell could not be coerced.
type IngestError struct {
	Cause error
}

func (e *IngestError) Error() string {
	if e.Cause == nil {
		return "ingest failed"
	}
	return "ingest: " + e.Cause.Error()
}

func (e *IngestError) Unwrap() error { return e.Cause }

// SchemaMismatch is an internal contract violation: a table reached the
// model gateway without the columns the artifact requires.
type SchemaMismatch struct {
	Columns []string
}

func (e *SchemaMismatch) Error() string {
	return "schema mismatch: gateway input lacks " + strings.Join(e.Columns, ", ")
}
