package tunnel

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	// UsernameSize is the size of the buffer a peer username is read into.
	UsernameSize = 32

	authRejected = byte(0)
	authAccepted = byte(1)
)

// Session is an authenticated connection to a peer, ready to be handed to a Tunnel.
type Session struct {
	ID       uuid.UUID
	Role     Role
	Conn     net.Conn
	PeerName string
}

// AcceptHandshake runs the listener side of the handshake on conn. On a digest
// mismatch the connection is closed and an error wrapping ErrAuthFailed is returned.
func AcceptHandshake(conn net.Conn, digest []byte, username string, timeout time.Duration) (*Session, error) {
	fail := func(op string, err error) (*Session, error) {
		return nil, &HandshakeError{Role: Listener, Op: op, Err: err}
	}
	if err := setHandshakeDeadline(conn, timeout); err != nil {
		return fail("set deadline", err)
	}

	buf := make([]byte, len(digest))
	if _, err := io.ReadFull(conn, buf); err != nil {
		return fail("read digest", err)
	}
	valid := bytes.Equal(buf, digest)
	result := authRejected
	if valid {
		result = authAccepted
	}
	if _, err := conn.Write([]byte{result}); err != nil {
		return fail("write result", err)
	}
	if !valid {
		if err := conn.Close(); err != nil {
			log.WithError(err).Debug("AcceptHandshake: failed closing rejected connection")
		}
		return fail("compare digest", ErrAuthFailed)
	}

	peer, err := readUsername(conn)
	if err != nil {
		return fail("read username", err)
	}
	if _, err := conn.Write([]byte(username)); err != nil {
		return fail("write username", err)
	}
	if err := setHandshakeDeadline(conn, 0); err != nil {
		return fail("clear deadline", err)
	}
	return newSession(Listener, conn, peer), nil
}

// ConnectHandshake runs the connector side of the handshake on conn. The caller
// owns conn and has to close it if an error is returned.
func ConnectHandshake(conn net.Conn, digest []byte, username string, timeout time.Duration) (*Session, error) {
	fail := func(op string, err error) (*Session, error) {
		return nil, &HandshakeError{Role: Connector, Op: op, Err: err}
	}
	if err := setHandshakeDeadline(conn, timeout); err != nil {
		return fail("set deadline", err)
	}

	if _, err := conn.Write(digest); err != nil {
		return fail("write digest", err)
	}
	result := make([]byte, 1)
	if _, err := io.ReadFull(conn, result); err != nil {
		return fail("read result", err)
	}
	switch result[0] {
	case authAccepted:
	case authRejected:
		return fail("read result", ErrAuthFailed)
	default:
		return fail("read result", fmt.Errorf("%w: %d", ErrUnexpectedResult, result[0]))
	}

	if _, err := conn.Write([]byte(username)); err != nil {
		return fail("write username", err)
	}
	peer, err := readUsername(conn)
	if err != nil {
		return fail("read username", err)
	}
	if err := setHandshakeDeadline(conn, 0); err != nil {
		return fail("clear deadline", err)
	}
	return newSession(Connector, conn, peer), nil
}

// readUsername does a single read, the protocol has no framing for usernames.
func readUsername(conn net.Conn) (string, error) {
	buf := make([]byte, UsernameSize)
	n, err := conn.Read(buf)
	if err != nil {
		return "", err
	}
	name := buf[:n]
	if n == 0 || !utf8.Valid(name) {
		return "", ErrMalformedUsername
	}
	return string(name), nil
}

func setHandshakeDeadline(conn net.Conn, timeout time.Duration) error {
	if timeout <= 0 {
		return conn.SetDeadline(time.Time{})
	}
	return conn.SetDeadline(time.Now().Add(timeout))
}

func newSession(role Role, conn net.Conn, peer string) *Session {
	s := &Session{
		ID:       uuid.New(),
		Role:     role,
		Conn:     conn,
		PeerName: peer,
	}
	log.WithFields(log.Fields{"session": s.ID, "peer": peer, "remote": conn.RemoteAddr()}).Info("handshake complete")
	return s
}
