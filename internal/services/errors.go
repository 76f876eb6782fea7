package services

var (
	ErrDuplicateEmail       = &ConflictError{Message: "Email already registered"}
	ErrInvalidCredentials   = &UnauthorizedError{Message: "Incorrect email or password"}
	ErrConversationNotFound = &NotFoundError{Message: "Conversation not found"}
)

// Custom errors
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "Validation error" }

type ConflictError struct{ Message string }

func (e *ConflictError) Error() string { return e.Message }

type NotFoundError struct{ Message string }

func (e *NotFoundError) Error() string { return e.Message }

type UnauthorizedError struct{ Message string }

func (e *UnauthorizedError) Error() string { return e.Message }

// InferenceError wraps a failure of the inference backend. The user message
// that triggered it stays in the log.
type InferenceError struct{ Err error }

func (e *InferenceError) Error() string { return "inference failed: " + e.Err.Error() }

func (e *InferenceError) Unwrap() error { return e.Err }
