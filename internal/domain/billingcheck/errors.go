package billingcheck

import "errors"

var (
	// ErrEmptyCredential is returned when storing an empty credential
	ErrEmptyCredential = errors.New("credential must not be empty")
)
