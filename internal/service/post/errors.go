package post

import (
	"errors"
	"fmt"

	"github.com/zhouzirui/z-blog/backend/internal/storage"
)

// Kind classifies a failed operation for the transport layer.
type Kind int

const (
	KindBadRequest Kind = iota + 1
	KindNotFound
	KindStorageCorrupt
	KindIO
)

// User-facing messages.
const (
	MsgInvalidID       = "identifier must be a number"
	MsgInvalidQueryID  = "id query parameter must be a number"
	MsgRequiredFields  = "title and body are required"
	MsgEmptyUpdate     = "Provide at least one of: title, body, author"
	MsgInvalidJSON     = "Storage file contains invalid JSON"
	MsgNotArray        = "Storage file outermost value must be an array"
	MsgReadFailed      = "Failed to read posts"
	MsgWriteFailed     = "Failed to write posts"
	msgNotFoundPattern = "Post with id %s not found"
)

// Error is returned by every Service operation that fails. Message is safe
// to show to callers; Err holds the underlying cause, if any.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// kindOf extracts the classification of err, or 0 when err is not an *Error.
func kindOf(err error) Kind {
	var opErr *Error
	if errors.As(err, &opErr) {
		return opErr.Kind
	}
	return 0
}

func badRequest(message string) *Error {
	return &Error{Kind: KindBadRequest, Message: message}
}

func notFound(id string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(msgNotFoundPattern, id)}
}

// classifyRead maps a Store.Read failure onto the user-facing taxonomy.
func classifyRead(err error) *Error {
	switch {
	case errors.Is(err, storage.ErrInvalidJSON):
		return &Error{Kind: KindStorageCorrupt, Message: MsgInvalidJSON, Err: err}
	case errors.Is(err, storage.ErrNotArray):
		return &Error{Kind: KindStorageCorrupt, Message: MsgNotArray, Err: err}
	default:
		return &Error{Kind: KindIO, Message: MsgReadFailed, Err: err}
	}
}

func classifyWrite(err error) *Error {
	return &Error{Kind: KindIO, Message: MsgWriteFailed, Err: err}
}
