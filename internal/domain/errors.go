package domain

import "errors"

var (
	ErrTemporarilyUnavailable = errors.New("temporarily unavailable")
	ErrSourceNotFound         = errors.New("script source not found")
	ErrInvalidEntry           = errors.New("invalid script entry")
	ErrSourceTooLarge         = errors.New("script source too large")
)
