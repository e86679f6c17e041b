package database

import "errors"

var (
	ErrNotFound               = errors.New("booking not found")
	ErrNotAvailable           = errors.New("no capacity left on the requested dates")
	ErrPastDate               = errors.New("start date is in the past")
	ErrDateTooFar             = errors.New("start date is too far ahead")
	ErrInvalidDuration        = errors.New("duration must be a positive number of days")
	ErrUnknownGroup           = errors.New("unknown resource group")
	ErrConcurrentModification = errors.New("booking was modified concurrently")
)
