package core

// Error is a coded error for invalid input or state.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}
