package billing

import "fmt"

// AuthenticityError means a webhook payload could not be attributed to the
// billing provider. Callers must discard the payload without side effects.
type AuthenticityError struct {
	Reason string
}

func (e *AuthenticityError) Error() string {
	return "webhook authenticity: " + e.Reason
}

// ValidationError means remote subscription data was incomplete or
// inconsistent. No local write happens when one is returned.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "subscription data invalid: " + e.Reason
}

// NotFoundError means a referenced account or subscription does not exist.
type NotFoundError struct {
	What string
}

func (e *NotFoundError) Error() string {
	return e.What + " not found"
}

// ProviderError wraps a failed call to the billing provider API.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("billing provider: %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// InternalError wraps a failure in our own persistence or plumbing.
type InternalError struct {
	Op  string
	Err error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("billing internal: %s: %v", e.Op, e.Err)
}

func (e *InternalError) Unwrap() error {
	return e.Err
}
