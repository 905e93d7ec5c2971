package session

import (
	"errors"

	"karaoke-service/internal/observability"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrStoreFailure = errors.New("store failure")
	ErrUnauthorized = errors.New("only the host can do that")
	ErrEmptyMessage = errors.New("message is empty")
	ErrNotInSession = errors.New("not in a session")
	ErrSongNotFound = errors.New("song not found")
)

const hostEndedMessage = "the host ended the session"

// storeError wraps a persistence or bus failure. It matches both ErrStoreFailure and the cause.
type storeError struct {
	op  string
	err error
}

func (e *storeError) Error() string {
	return e.op + ": " + e.err.Error()
}

func (e *storeError) Unwrap() []error {
	return []error{ErrStoreFailure, e.err}
}

func storeFailure(op string, err error) error {
	observability.IncStoreError(op)
	return &storeError{op: op, err: err}
}

// UserMessage renders err as the single string shown to the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var se *storeError
	switch {
	case errors.Is(err, ErrRoomNotFound):
		return "No session with that room code"
	case errors.Is(err, ErrSongNotFound):
		return "That song is not in the catalog"
	case errors.Is(err, ErrUnauthorized):
		return "Only the host can do that"
	case errors.Is(err, ErrEmptyMessage):
		return "Message is empty"
	case errors.Is(err, ErrNotInSession):
		return "You are not in a session"
	case errors.As(err, &se):
		return "Something went wrong: " + se.err.Error()
	default:
		return err.Error()
	}
}
