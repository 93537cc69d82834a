package tunnel

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultHandshakeTimeout bounds how long a single handshake may take.
const DefaultHandshakeTimeout = 10 * time.Second

// Role selects which side of the handshake this peer plays.
type Role int

const (
	// Listener binds the endpoint and waits for a peer ("host").
	Listener Role = iota
	// Connector dials the endpoint of a listening peer ("client").
	Connector
)

func (r Role) String() string {
	switch r {
	case Listener:
		return "listener"
	case Connector:
		return "connector"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Endpoint is everything needed to establish an authenticated session.
type Endpoint struct {
	Role     Role
	Address  string
	Username string
	// Digest is compared byte for byte with the digest of the peer.
	Digest           []byte
	HandshakeTimeout time.Duration
}

// Establish returns an authenticated Session for the endpoint. A Listener accepts
// connections until one of them passes the handshake and then stops listening.
// A Connector dials exactly once.
func Establish(ctx context.Context, ep Endpoint) (*Session, error) {
	switch ep.Role {
	case Listener:
		var lc net.ListenConfig
		ln, err := lc.Listen(ctx, "tcp", ep.Address)
		if err != nil {
			return nil, fmt.Errorf("Establish: failed to listen on %s: %w", ep.Address, err)
		}
		return AcceptFirst(ctx, ln, ep)
	case Connector:
		return Dial(ctx, ep)
	default:
		return nil, fmt.Errorf("Establish: unknown role %s", ep.Role)
	}
}

// AcceptFirst runs the listener handshake on every connection accepted from ln
// until one succeeds. ln is closed when AcceptFirst returns.
func AcceptFirst(ctx context.Context, ln net.Listener, ep Endpoint) (*Session, error) {
	defer ln.Close()
	stop := context.AfterFunc(ctx, func() {
		ln.Close()
	})
	defer stop()

	log.WithField("address", ln.Addr()).Info("Waiting for incoming connection...")
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return nil, fmt.Errorf("AcceptFirst: listener closed: %w", err)
			}
			log.WithError(err).Error("AcceptFirst: failed accepting connection")
			continue
		}
		logger := log.WithField("remote", conn.RemoteAddr())
		session, err := AcceptHandshake(conn, ep.Digest, ep.Username, ep.HandshakeTimeout)
		if err != nil {
			if errors.Is(err, ErrAuthFailed) {
				logger.Warn("Incorrect password")
			} else {
				logger.WithError(err).Warn("handshake failed")
				conn.Close()
			}
			continue
		}
		return session, nil
	}
}

// Dial connects to the endpoint and runs the connector handshake.
func Dial(ctx context.Context, ep Endpoint) (*Session, error) {
	log.WithField("address", ep.Address).Info("Attempting to connect...")
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", ep.Address)
	if err != nil {
		return nil, fmt.Errorf("Dial: failed to connect to %s: %w", ep.Address, err)
	}
	session, err := ConnectHandshake(conn, ep.Digest, ep.Username, ep.HandshakeTimeout)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return session, nil
}
