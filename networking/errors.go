package networking

import (
	"errors"
	"fmt"

	"go_uftp/networking/token"
)

var (
	ErrMalformedFrame    = errors.New("networking: malformed frame")
	ErrShortFrame        = fmt.Errorf("%w: shorter than kind and sequence", ErrMalformedFrame)
	ErrUnknownKind       = fmt.Errorf("%w: unknown frame kind", ErrMalformedFrame)
	ErrUnknownToken      = fmt.Errorf("%w: unknown control token", ErrMalformedFrame)
	ErrPayloadTooLarge   = fmt.Errorf("%w: payload too large", ErrMalformedFrame)
	ErrTimeout           = errors.New("networking: timed out")
	ErrProtocolViolation = errors.New("networking: protocol violation")
	ErrNotFound          = errors.New("networking: file not found")
	ErrExit              = errors.New("networking: session terminated by server")
	ErrClosed            = errors.New("networking: link closed")
)

// StatusError is a status token received in place of the expected reply
type StatusError struct {
	Token token.Token
}

func (e *StatusError) Error() string {
	return "server replied " + string(e.Token)
}

// Is lets NOFILE and DELETE_ERR match ErrNotFound
func (e *StatusError) Is(target error) bool {
	if target == ErrNotFound {
		return e.Token == token.NOFILE || e.Token == token.DELETE_ERR
	}
	return false
}

// StatusToken extracts the status token carried by err, if any
func StatusToken(err error) (token.Token, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Token, true
	}
	return "", false
}

func violation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrProtocolViolation, fmt.Sprintf(format, args...))
}
