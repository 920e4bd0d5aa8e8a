// Package pglet is a PostgreSQL client driver speaking the Frontend/Backend
// wire protocol version 3. A Connection owns one server session; Cursors
// execute statements and iterate result rows.
package pglet

import (
	"fmt"
	"strings"

	"pglet/pgwire"
)

// TransportError reports an I/O failure or timeout on the underlying
// stream. The connection is unusable afterwards.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError reports malformed framing, an unexpected message, or an
// unsupported authentication method. The connection is unusable afterwards.
type ProtocolError struct {
	Msg string
}

func (e *ProtocolError) Error() string { return "protocol error: " + e.Msg }

func protocolErrorf(format string, args ...any) *ProtocolError {
	return &ProtocolError{Msg: fmt.Sprintf(format, args...)}
}

// InterfaceError reports misuse of the client API: operating on a closed
// cursor or connection, an unsupported paramstyle, a busy connection.
type InterfaceError struct {
	Msg string
}

func (e *InterfaceError) Error() string { return "interface error: " + e.Msg }

// InFailedTransactionError is returned for any execute attempted while the
// server reports the transaction as failed. Only rollback is allowed.
type InFailedTransactionError struct{}

func (e *InFailedTransactionError) Error() string {
	return "current transaction is aborted, commands ignored until end of transaction block"
}

// DatabaseError is a server-reported ErrorResponse with all its fields.
type DatabaseError struct {
	Severity         string
	SQLState         string
	Message          string
	Detail           string
	Hint             string
	Position         string
	InternalPosition string
	InternalQuery    string
	Where            string
	Schema           string
	Table            string
	Column           string
	DataType         string
	Constraint       string
	File             string
	Line             string
	Routine          string
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("%s: %s (SQLSTATE %s)", e.Severity, e.Message, e.SQLState)
}

// SQLSTATE-class subtypes. Each unwraps to the embedded DatabaseError so
// errors.As works against either level.

// IntegrityError covers constraint violations (class 23).
type IntegrityError struct{ DatabaseError }

// ProgrammingError covers syntax and access-rule violations (classes 42,
// 26, 2D).
type ProgrammingError struct{ DatabaseError }

// DataError covers data exceptions such as division by zero (class 22).
type DataError struct{ DatabaseError }

// OperationalError covers resource and operator-intervention conditions
// (classes 53, 57, 58), including query cancellation.
type OperationalError struct{ DatabaseError }

// InternalError covers server-internal failures (class XX).
type InternalError struct{ DatabaseError }

func (e *IntegrityError) Unwrap() error   { return &e.DatabaseError }
func (e *ProgrammingError) Unwrap() error { return &e.DatabaseError }
func (e *DataError) Unwrap() error        { return &e.DatabaseError }
func (e *OperationalError) Unwrap() error { return &e.DatabaseError }
func (e *InternalError) Unwrap() error    { return &e.DatabaseError }

// databaseError builds the SQLSTATE-appropriate error type from parsed
// ErrorResponse fields.
func databaseError(f *pgwire.ErrorFields) error {
	base := DatabaseError{
		Severity:         f.Severity,
		SQLState:         f.Code,
		Message:          f.Message,
		Detail:           f.Detail,
		Hint:             f.Hint,
		Position:         f.Position,
		InternalPosition: f.InternalPosition,
		InternalQuery:    f.InternalQuery,
		Where:            f.Where,
		Schema:           f.Schema,
		Table:            f.Table,
		Column:           f.Column,
		DataType:         f.DataType,
		Constraint:       f.Constraint,
		File:             f.File,
		Line:             f.Line,
		Routine:          f.Routine,
	}
	switch {
	case strings.HasPrefix(base.SQLState, "23"):
		return &IntegrityError{base}
	case strings.HasPrefix(base.SQLState, "42"),
		strings.HasPrefix(base.SQLState, "26"),
		strings.HasPrefix(base.SQLState, "2D"):
		return &ProgrammingError{base}
	case strings.HasPrefix(base.SQLState, "22"):
		return &DataError{base}
	case strings.HasPrefix(base.SQLState, "53"),
		strings.HasPrefix(base.SQLState, "57"),
		strings.HasPrefix(base.SQLState, "58"):
		return &OperationalError{base}
	case strings.HasPrefix(base.SQLState, "XX"):
		return &InternalError{base}
	}
	return &base
}
