package tunnel

import (
	"bytes"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDigest = bytes.Repeat([]byte("a"), 64)

type handshakeResult struct {
	session *Session
	err     error
}

func TestHandshakeSuccess(t *testing.T) {
	listenerConn, connectorConn := net.Pipe()
	defer listenerConn.Close()
	defer connectorConn.Close()

	results := make(chan handshakeResult, 1)
	go func() {
		s, err := AcceptHandshake(listenerConn, testDigest, "alice", time.Second)
		results <- handshakeResult{s, err}
	}()

	connector, err := ConnectHandshake(connectorConn, testDigest, "bob", time.Second)
	require.NoError(t, err)
	listener := <-results
	require.NoError(t, listener.err)

	assert.Equal(t, "alice", connector.PeerName)
	assert.Equal(t, Connector, connector.Role)
	assert.Equal(t, "bob", listener.session.PeerName)
	assert.Equal(t, Listener, listener.session.Role)
	assert.NotEqual(t, connector.ID, listener.session.ID)
}

func TestHandshakeListenerWritesAcceptedByte(t *testing.T) {
	listenerConn, peer := net.Pipe()
	defer peer.Close()

	results := make(chan handshakeResult, 1)
	go func() {
		s, err := AcceptHandshake(listenerConn, testDigest, "alice", time.Second)
		results <- handshakeResult{s, err}
	}()

	_, err := peer.Write(testDigest)
	require.NoError(t, err)
	result := make([]byte, 1)
	_, err = io.ReadFull(peer, result)
	require.NoError(t, err)
	assert.Equal(t, byte(1), result[0])

	_, err = peer.Write([]byte("bob"))
	require.NoError(t, err)
	name := make([]byte, UsernameSize)
	n, err := peer.Read(name)
	require.NoError(t, err)
	assert.Equal(t, "alice", string(name[:n]))

	r := <-results
	require.NoError(t, r.err)
	assert.Equal(t, "bob", r.session.PeerName)
}

func TestHandshakeWrongDigestRejectsAndCloses(t *testing.T) {
	listenerConn, peer := net.Pipe()
	defer peer.Close()

	results := make(chan handshakeResult, 1)
	go func() {
		s, err := AcceptHandshake(listenerConn, testDigest, "alice", time.Second)
		results <- handshakeResult{s, err}
	}()

	_, err := peer.Write(bytes.Repeat([]byte("b"), 64))
	require.NoError(t, err)
	result := make([]byte, 1)
	_, err = io.ReadFull(peer, result)
	require.NoError(t, err)
	assert.Equal(t, byte(0), result[0])

	r := <-results
	assert.Nil(t, r.session)
	assert.ErrorIs(t, r.err, ErrAuthFailed)

	// no username exchange, the listener hung up
	_, err = peer.Read(make([]byte, UsernameSize))
	assert.ErrorIs(t, err, io.EOF)
}

func TestHandshakeConnectorAuthFailure(t *testing.T) {
	listenerConn, connectorConn := net.Pipe()
	defer connectorConn.Close()

	results := make(chan handshakeResult, 1)
	go func() {
		s, err := AcceptHandshake(listenerConn, testDigest, "alice", time.Second)
		results <- handshakeResult{s, err}
	}()

	session, err := ConnectHandshake(connectorConn, bytes.Repeat([]byte("z"), 64), "bob", time.Second)
	assert.Nil(t, session)
	assert.ErrorIs(t, err, ErrAuthFailed)

	var hsErr *HandshakeError
	require.ErrorAs(t, err, &hsErr)
	assert.Equal(t, Connector, hsErr.Role)

	assert.ErrorIs(t, (<-results).err, ErrAuthFailed)
}

func TestHandshakeShortDigest(t *testing.T) {
	listenerConn, peer := net.Pipe()

	results := make(chan handshakeResult, 1)
	go func() {
		s, err := AcceptHandshake(listenerConn, testDigest, "alice", time.Second)
		results <- handshakeResult{s, err}
	}()

	_, err := peer.Write([]byte("short"))
	require.NoError(t, err)
	peer.Close()

	r := <-results
	assert.ErrorIs(t, r.err, io.ErrUnexpectedEOF)
	listenerConn.Close()
}

func TestHandshakeMalformedUsername(t *testing.T) {
	listenerConn, peer := net.Pipe()
	defer listenerConn.Close()
	defer peer.Close()

	results := make(chan handshakeResult, 1)
	go func() {
		s, err := AcceptHandshake(listenerConn, testDigest, "alice", time.Second)
		results <- handshakeResult{s, err}
	}()

	_, err := peer.Write(testDigest)
	require.NoError(t, err)
	_, err = io.ReadFull(peer, make([]byte, 1))
	require.NoError(t, err)
	_, err = peer.Write([]byte{0xff, 0xfe, 0xfd})
	require.NoError(t, err)

	r := <-results
	assert.ErrorIs(t, r.err, ErrMalformedUsername)
}

func TestHandshakeUnexpectedResultByte(t *testing.T) {
	connectorConn, peer := net.Pipe()
	defer connectorConn.Close()
	defer peer.Close()

	go func() {
		_, _ = io.ReadFull(peer, make([]byte, len(testDigest)))
		_, _ = peer.Write([]byte{7})
	}()

	_, err := ConnectHandshake(connectorConn, testDigest, "bob", time.Second)
	assert.ErrorIs(t, err, ErrUnexpectedResult)
}

func TestHandshakeTimeout(t *testing.T) {
	listenerConn, peer := net.Pipe()
	defer listenerConn.Close()
	defer peer.Close()

	_, err := AcceptHandshake(listenerConn, testDigest, "alice", 20*time.Millisecond)
	var netErr net.Error
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout())
}

func TestHandshakeUsernameMergesWithFollowingBytes(t *testing.T) {
	listenerConn, peer := net.Pipe()
	defer listenerConn.Close()
	defer peer.Close()

	results := make(chan handshakeResult, 1)
	go func() {
		s, err := AcceptHandshake(listenerConn, testDigest, "alice", time.Second)
		results <- handshakeResult{s, err}
	}()

	_, err := peer.Write(testDigest)
	require.NoError(t, err)
	_, err = io.ReadFull(peer, make([]byte, 1))
	require.NoError(t, err)

	// username and the first chat bytes in one write, the username is a
	// single read so both end up in the peer name
	_, err = peer.Write([]byte("bobhello"))
	require.NoError(t, err)
	_, err = peer.Read(make([]byte, UsernameSize))
	require.NoError(t, err)

	r := <-results
	require.NoError(t, r.err)
	assert.Equal(t, "bobhello", r.session.PeerName)
}
