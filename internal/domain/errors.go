package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrProviderExists rejects registering over an already-registered id.
	ErrProviderExists = errors.New("provider already registered")

	// ErrUnknownProvider marks operations naming an unregistered provider id.
	ErrUnknownProvider = errors.New("unknown provider")
)

// ProviderError is the failure an adapter operation surfaces: which provider,
// which operation, and the cause. The gateway absorbs these during fan-out
// and degrades the affected branch instead of propagating.
type ProviderError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
