package util

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the core. Services wrap these with %w so that
// controllers can classify via errors.Is while keeping a readable message.
var (
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalid             = errors.New("invalid")
	ErrDuplicateIdentifier = errors.New("duplicate identifier")
	ErrTenancyMissing      = errors.New("tenancy missing")
	ErrConflict            = errors.New("conflict")
	ErrTimeoutExceeded     = errors.New("timeout exceeded")
	ErrInternal            = errors.New("internal error")
)

func NotFoundf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
}

func Forbiddenf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrForbidden)...)
}

func Invalidf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrInvalid)...)
}

func Duplicatef(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrDuplicateIdentifier)...)
}

func Conflictf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrConflict)...)
}

func TenancyMissingf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrTenancyMissing)...)
}
