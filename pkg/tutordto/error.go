package tutordto

// DomainError is a service failure translated for the chat layer. Code
// selects the user-facing message.
type DomainError struct {
	Code      string
	Message   string
	Retryable bool
}

func (e DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "tutor service error"
}
