package model

import (
	"github.com/pkg/errors"
)

var (
	// ValidationError indicates malformed caller input, such as an
	// unrecognized enum string. Never retried.
	ValidationError = errors.New("validation failed")
	// StateError indicates an operation that is invalid in the current
	// lifecycle state (chip closed, line not exported, request released).
	StateError = errors.New("invalid state")
	// DeviceError indicates a failure reported by the underlying GPIO
	// character device.
	DeviceError = errors.New("device failure")

	IsValidation = isErrorFunc(ValidationError)
	IsState      = isErrorFunc(StateError)
	IsDevice     = isErrorFunc(DeviceError)

	maskAny = errors.WithStack
)

func isErrorFunc(typeOfError error) func(err error) bool {
	return func(err error) bool {
		return err == typeOfError || errors.Cause(err) == typeOfError
	}
}
