package sync

import (
	"errors"
	"fmt"
)

// Kind classifies why reconciling an object failed.
type Kind string

const (
	// KindTransport is any destination failure other than not-found.
	KindTransport Kind = "TRANSPORT_ERROR"
	// KindValidation is a request the destination model cannot satisfy, or
	// an inconsistency between recorded state and the destination.
	KindValidation Kind = "VALIDATION_ERROR"
	// KindRecreateFailed means a checksummed object was deleted for rewrite
	// but could not be recreated; it is absent on the destination.
	KindRecreateFailed Kind = "RECREATE_FAILED"
	// KindSource is a failure reading the source content stream.
	KindSource Kind = "SOURCE_ERROR"
)

var (
	ErrChecksumUpdateByID = errors.New("cannot update checksummed object by opaque id, only path-addressed objects are supported")
	ErrTargetIDNotFound   = errors.New("recorded target id not found on destination")
)

// Error is the failure of reconciling a single object.
type Error struct {
	Kind   Kind
	Op     string // timed operation that failed, if any
	Source string
	Target string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("sync %s", e.Source)
	if e.Target != "" {
		msg += " -> " + e.Target
	}
	if e.Op != "" {
		msg += " (" + e.Op + ")"
	}
	return fmt.Sprintf("%s: %s: %v", msg, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == kind
}

// opError attaches the failed operation name to a destination error.
type opError struct {
	op  string
	err error
}

func (e *opError) Error() string { return e.op + ": " + e.err.Error() }
func (e *opError) Unwrap() error { return e.err }

func newError(kind Kind, obj *SourceObject, target Identity, err error) *Error {
	e := &Error{Kind: kind, Source: obj.RelativePath, Target: target.String(), Err: err}
	var oe *opError
	if errors.As(err, &oe) {
		e.Op = oe.op
		e.Err = oe.err
	}
	return e
}

// asError classifies err for the per-object caller, keeping an existing
// *Error as-is.
func asError(obj *SourceObject, target Identity, err error) *Error {
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	var re *readError
	if errors.As(err, &re) {
		return newError(KindSource, obj, target, re.err)
	}
	var rc *recreateError
	if errors.As(err, &rc) {
		return newError(KindRecreateFailed, obj, target, rc.err)
	}
	return newError(KindTransport, obj, target, err)
}

// readError marks a failure reading the source stream.
type readError struct{ err error }

func (e *readError) Error() string { return "read source: " + e.err.Error() }
func (e *readError) Unwrap() error { return e.err }

// recreateError marks a failure after a checksummed object was deleted for
// rewrite.
type recreateError struct{ err error }

func (e *recreateError) Error() string {
	return "object deleted but not fully recreated: " + e.err.Error()
}
func (e *recreateError) Unwrap() error { return e.err }
