package privacy

// ScrubbedError is an error whose message has been through ScrubMessage.
// The cause stays reachable through Unwrap, so errors.Is and errors.As
// keep working across the privacy boundary.
type ScrubbedError struct {
	cause error
	msg   string
}

func (e *ScrubbedError) Error() string { return e.msg }

// Unwrap returns the unscrubbed cause.
func (e *ScrubbedError) Unwrap() error { return e.cause }

// WrapError scrubs err's message for safe logging and telemetry. A nil
// error stays nil.
func WrapError(err error) error {
	if err == nil {
		return nil
	}
	return &ScrubbedError{cause: err, msg: ScrubMessage(err.Error())}
}
