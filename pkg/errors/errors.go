// Package crm_errors holds the sentinel errors shared by the messaging services. Callers wrap
// them with %w; the HTTP layer maps each one to a status and an envelope code.
package crm_errors

import "errors"

// Request and access.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	// the principal's organization does not own the partition, link or log
	ErrForbidden   = errors.New("forbidden")
	ErrNotFound    = errors.New("not found")
	ErrRateLimited = errors.New("rate limited")
)

// Template links and the automation queue.
var (
	ErrAlreadyExists = errors.New("already exists")
	ErrConflict      = errors.New("conflict")
	// a queue entry or send log is no longer in the state the write expects
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Delivery.
var (
	// no provider adapter is registered for the link's channel
	ErrUnsupportedChannel = errors.New("unsupported channel")
	ErrServiceUnavailable = errors.New("service unavailable")
)
