package domain

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is matching of the render-pass error taxonomy.
var (
	ErrConnection    = errors.New("database unreachable")
	ErrQuery         = errors.New("query failed")
	ErrMalformedDate = errors.New("malformed date")
)

// ConnectionError means the record store could not be reached.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrConnection, e.Err)
}

func (e *ConnectionError) Unwrap() []error { return []error{ErrConnection, e.Err} }

// QueryError means the join/projection could not be evaluated.
type QueryError struct {
	Op  string
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrQuery, e.Err)
}

func (e *QueryError) Unwrap() []error { return []error{ErrQuery, e.Err} }

// MalformedDateError means a record's date could not be parsed. Index is the
// record's position in the fetched sequence.
type MalformedDateError struct {
	Index int
	Value string
	Err   error
}

func (e *MalformedDateError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("record %d: %v %q", e.Index, ErrMalformedDate, e.Value)
	}
	return fmt.Sprintf("record %d: %v %q: %v", e.Index, ErrMalformedDate, e.Value, e.Err)
}

func (e *MalformedDateError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrMalformedDate}
	}
	return []error{ErrMalformedDate, e.Err}
}

// Error codes reported to clients.
const (
	CodeConnection    = "connection"
	CodeQuery         = "query"
	CodeMalformedDate = "malformed_date"
	CodeInternal      = "internal"
)

// ErrorCode classifies err into one of the Code constants.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrConnection):
		return CodeConnection
	case errors.Is(err, ErrQuery):
		return CodeQuery
	case errors.Is(err, ErrMalformedDate):
		return CodeMalformedDate
	default:
		return CodeInternal
	}
}
