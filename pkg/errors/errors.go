package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents the different kinds of failures a gallery run can hit
type ErrorType string

const (
	ErrorTypeInventory  ErrorType = "inventory"
	ErrorTypeTemplate   ErrorType = "template"
	ErrorTypeCacheWrite ErrorType = "cache_write"
	ErrorTypeArchive    ErrorType = "archive"
	ErrorTypeUpload     ErrorType = "upload"
	ErrorTypeCapture    ErrorType = "capture"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeUnknown    ErrorType = "unknown"
)

// Error is a typed error carrying the operation that failed
type Error struct {
	Type ErrorType
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s error: %s", e.Type, e.Op)
	}
	return fmt.Sprintf("%s error: %s: %v", e.Type, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New wraps err with a type and operation description
func New(t ErrorType, op string, err error) *Error {
	return &Error{Type: t, Op: op, Err: err}
}

// Inventory wraps a failure of the inventory source
func Inventory(op string, err error) error { return New(ErrorTypeInventory, op, err) }

// Template wraps a failure to load or execute the page template
func Template(op string, err error) error { return New(ErrorTypeTemplate, op, err) }

// CacheWrite wraps a failure to persist the cache document
func CacheWrite(op string, err error) error { return New(ErrorTypeCacheWrite, op, err) }

// Archive wraps a failure to write the output archive
func Archive(op string, err error) error { return New(ErrorTypeArchive, op, err) }

// Upload wraps a failure of the upload collaborator
func Upload(op string, err error) error { return New(ErrorTypeUpload, op, err) }

// Capture wraps a per-user capture failure
func Capture(op string, err error) error { return New(ErrorTypeCapture, op, err) }

// Config wraps a configuration failure
func Config(op string, err error) error { return New(ErrorTypeConfig, op, err) }

// TypeOf returns the ErrorType of err, or ErrorTypeUnknown
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsFatal reports whether err must abort the current cycle
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	switch TypeOf(err) {
	case ErrorTypeCapture:
		return false
	default:
		return true
	}
}

// Is reports whether err has the given type anywhere in its chain
func Is(err error, t ErrorType) bool {
	return err != nil && TypeOf(err) == t
}
