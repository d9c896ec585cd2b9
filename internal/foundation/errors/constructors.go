package errors

// Convenience constructors for the categories the tide pool core raises.

// ValidationError creates a builder for malformed or missing input.
func ValidationError(message string) *ErrorBuilder {
	return NewError(CategoryValidation, message).UserAction()
}

// AuthError creates a builder for a non-operator sender. These are logged
// and dropped, never surfaced to the sender.
func AuthError(message string) *ErrorBuilder {
	return NewError(CategoryAuth, message)
}

// AlreadyClickedError creates a builder for a duplicate click in the window.
func AlreadyClickedError(message string) *ErrorBuilder {
	return NewError(CategoryRateLimit, message).RateLimit()
}

// LockedError creates a builder for a click rejected during lockdown.
func LockedError(message string) *ErrorBuilder {
	return NewError(CategoryLocked, message).UserAction()
}

// ExpiredConfirmationError creates a builder for a confirmation past its TTL.
func ExpiredConfirmationError(message string) *ErrorBuilder {
	return NewError(CategoryExpired, message).UserAction()
}

// StoreError creates a builder for a durable store failure. Transient by default.
func StoreError(message string) *ErrorBuilder {
	return NewError(CategoryStore, message).Retryable()
}

// NotifyError creates a builder for an outbound notification failure.
func NotifyError(message string) *ErrorBuilder {
	return NewError(CategoryNotify, message).Warning().Retryable()
}

// InternalError creates a builder for unexpected internal failures.
func InternalError(message string) *ErrorBuilder {
	return NewError(CategoryInternal, message)
}
