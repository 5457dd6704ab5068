package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthentication indicates the portal session could not be established.
	ErrAuthentication = errors.New("portal authentication failed")

	// ErrSlotFetch indicates a listing endpoint returned unparseable content.
	ErrSlotFetch = errors.New("slot listing fetch failed")

	// ErrCommitAmbiguous indicates the commit request did not produce a classifiable response.
	ErrCommitAmbiguous = errors.New("reschedule commit outcome unknown")

	// ErrCircuitOpen indicates portal calls are suspended after repeated failures.
	ErrCircuitOpen = errors.New("portal circuit breaker open")

	// ErrInvalidPayload indicates a schedule payload violates slot ordering.
	ErrInvalidPayload = errors.New("invalid schedule payload")
)

// AuthenticationError describes why a session could not be established.
type AuthenticationError struct {
	Reason string
	Err    error
}

func (e *AuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrAuthentication, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrAuthentication, e.Reason)
}

func (e *AuthenticationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrAuthentication, e.Err}
	}
	return []error{ErrAuthentication}
}

// SlotFetchError wraps a failed or malformed listing response.
type SlotFetchError struct {
	URL string
	Err error
}

func (e *SlotFetchError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrSlotFetch, e.URL, e.Err)
}

func (e *SlotFetchError) Unwrap() []error {
	return []error{ErrSlotFetch, e.Err}
}
