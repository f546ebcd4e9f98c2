package leakage

import (
	"errors"
	"fmt"
)

var (
	ErrColumnKind    = errors.New("column kind does not support this operation")
	ErrUnknownColumn = errors.New("unknown column")
)

// DataLoadError reports a dataset that could not be read or does not match
// the expected schema. It is fatal for the process.
type DataLoadError struct {
	Path   string
	Line   int
	Reason string
	Err    error
}

func (e *DataLoadError) Error() string {
	msg := "load " + e.Path
	if e.Line > 0 {
		msg += fmt.Sprintf(" line %d", e.Line)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DataLoadError) Unwrap() error {
	return e.Err
}

// EmptyAggregateError means the aggregate has no defined value on zero rows.
// Callers are expected to show a placeholder instead.
type EmptyAggregateError struct {
	Column Column
	Op     Op
}

func (e *EmptyAggregateError) Error() string {
	return fmt.Sprintf("%s of %s is undefined on an empty table", e.Op, e.Column)
}

type InvalidFilterRangeError struct {
	Column Column
	Low    float64
	High   float64
}

func (e *InvalidFilterRangeError) Error() string {
	return fmt.Sprintf("invalid range for %s: [%g, %g]", e.Column, e.Low, e.High)
}
