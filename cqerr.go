package cleanq

import "github.com/cleanq-go/cleanq/cqerr"

// Code identifies the category of a queue operation failure. It mirrors
// the CLEANQ_ERR_* enumeration of the reference implementation. The
// type itself lives in cqerr, a leaf package with no dependency on
// this one, so that region can return the same error taxonomy without
// importing the frontend.
type Code = cqerr.Code

const (
	CodeOK                 = cqerr.CodeOK
	CodeInitQueue          = cqerr.CodeInitQueue
	CodeBufferID           = cqerr.CodeBufferID
	CodeBufferNotInRegion  = cqerr.CodeBufferNotInRegion
	CodeBufferAlreadyInUse = cqerr.CodeBufferAlreadyInUse
	CodeInvalidBufferArgs  = cqerr.CodeInvalidBufferArgs
	CodeInvalidRegionID    = cqerr.CodeInvalidRegionID
	CodeRegionDestroy      = cqerr.CodeRegionDestroy
	CodeInvalidRegionArgs  = cqerr.CodeInvalidRegionArgs
	CodeQueueEmpty         = cqerr.CodeQueueEmpty
	CodeQueueFull          = cqerr.CodeQueueFull
	CodeBufferNotInUse     = cqerr.CodeBufferNotInUse
	CodeMallocFail         = cqerr.CodeMallocFail
)

// Error is the structured error type returned by every queue operation.
// It is an alias for cqerr.Error so that errors built by region (which
// uses cqerr directly) and errors built here compare and unwrap
// identically.
type Error = cqerr.Error

// New builds an Error with no underlying cause.
func New(op string, code Code, msg string) *Error {
	return cqerr.New(op, code, msg)
}

// Wrap builds an Error carrying an underlying cause.
func Wrap(op string, code Code, inner error) *Error {
	return cqerr.Wrap(op, code, inner)
}

// IsCode reports whether err is a *Error with the given Code.
func IsCode(err error, code Code) bool {
	return cqerr.IsCode(err, code)
}
