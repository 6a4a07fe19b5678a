// Package cqerr holds the structured error taxonomy shared by the
// cleanq frontend and the region package, so that region can classify
// its own failures without importing the frontend it is imported by.
package cqerr

import (
	"errors"
	"fmt"
)

// Code identifies the category of a queue operation failure. It mirrors
// the CLEANQ_ERR_* enumeration of the reference implementation.
type Code string

const (
	CodeOK                 Code = "OK"
	CodeInitQueue          Code = "INIT_QUEUE"
	CodeBufferID           Code = "BUFFER_ID"
	CodeBufferNotInRegion  Code = "BUFFER_NOT_IN_REGION"
	CodeBufferAlreadyInUse Code = "BUFFER_ALREADY_IN_USE"
	CodeInvalidBufferArgs  Code = "INVALID_BUFFER_ARGS"
	CodeInvalidRegionID    Code = "INVALID_REGION_ID"
	CodeRegionDestroy      Code = "REGION_DESTROY"
	CodeInvalidRegionArgs  Code = "INVALID_REGION_ARGS"
	CodeQueueEmpty         Code = "QUEUE_EMPTY"
	CodeQueueFull          Code = "QUEUE_FULL"
	CodeBufferNotInUse     Code = "BUFFER_NOT_IN_USE"
	CodeMallocFail         Code = "MALLOC_FAIL"
)

// Error is the structured error type returned by every queue operation.
// Op names the operation that failed, Code classifies the failure, and
// Inner carries an underlying cause (e.g. a syscall.Errno from the
// shared-memory layer) when one exists.
type Error struct {
	Op    string
	Code  Code
	Msg   string
	Inner error
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("cleanq: %s (op=%s, code=%s)", e.Msg, e.Op, e.Code)
	}
	return fmt.Sprintf("cleanq: %s (op=%s)", e.Code, e.Op)
}

func (e *Error) Unwrap() error {
	return e.Inner
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New builds an Error with no underlying cause.
func New(op string, code Code, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// Wrap builds an Error carrying an underlying cause.
func Wrap(op string, code Code, inner error) *Error {
	return &Error{Op: op, Code: code, Inner: inner}
}

// IsCode reports whether err is a *Error with the given Code.
func IsCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
