package domain

import "errors"

// Error kinds surfaced to API clients. Callers wrap them with context using
// fmt.Errorf("...: %w", ErrX) and match with errors.Is.
var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidRelationship = errors.New("invalid relationship")
	ErrSchedulingConflict  = errors.New("time slot conflicts with an existing visit")
	ErrPrecondition        = errors.New("precondition failed")
	ErrDuplicateEmail      = errors.New("email already registered")
	ErrDeliveryUnavailable = errors.New("couldn't send email")
	ErrValidation          = errors.New("validation failed")
	ErrInvalidInterval     = errors.New("start time must be before end time")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrForbidden           = errors.New("access forbidden")
	ErrScheduleBusy        = errors.New("clinic schedule is busy, retry later")
)
