package privacy

// SanitizedError wraps an error and reports a scrubbed message. The
// original stays reachable through Unwrap for errors.Is and errors.As.
type SanitizedError struct {
	original     error
	sanitizedMsg string
}

// Error returns the sanitized error message.
func (e *SanitizedError) Error() string {
	return e.sanitizedMsg
}

// Unwrap returns the original error.
func (e *SanitizedError) Unwrap() error {
	return e.original
}

// WrapError scrubs the message of err with ScrubMessage. Returns nil for a
// nil error.
//
//	if err := client.Connect(); err != nil {
//	    return privacy.WrapError(err) // broker credentials are scrubbed
//	}
func WrapError(err error) error {
	if err == nil {
		return nil
	}
	return &SanitizedError{
		original:     err,
		sanitizedMsg: ScrubMessage(err.Error()),
	}
}
