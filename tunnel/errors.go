package tunnel

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthFailed means the digests of both peers did not match.
	ErrAuthFailed = errors.New("authentication failed")
	// ErrMalformedUsername means the peer sent a username that is empty or not valid UTF-8.
	ErrMalformedUsername = errors.New("malformed username")
	// ErrUnexpectedResult means the listener answered the digest with something other than 0 or 1.
	ErrUnexpectedResult = errors.New("unexpected authentication result")
)

// HandshakeError describes a failed handshake attempt.
type HandshakeError struct {
	Role Role
	// Op is the handshake step that failed, e.g. "read digest".
	Op  string
	Err error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("handshake (%s): %s: %v", e.Role, e.Op, e.Err)
}

func (e *HandshakeError) Unwrap() error {
	return e.Err
}
