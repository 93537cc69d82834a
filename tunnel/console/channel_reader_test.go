package console

import (
	"bytes"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelReaderBuffersLeftovers(t *testing.T) {
	c := make(chan []byte, 1)
	r := NewChannelReader(c)
	c <- []byte("hello")

	b := make([]byte, 3)
	n, err := r.Read(b)
	require.NoError(t, err)
	assert.Equal(t, "hel", string(b[:n]))

	n, err = r.Read(b)
	require.NoError(t, err)
	assert.Equal(t, "lo", string(b[:n]))
}

func TestChannelReaderDeadline(t *testing.T) {
	c := make(chan []byte)
	r := NewChannelReader(c)

	r.SetDeadline(time.Now().Add(20 * time.Millisecond))
	start := time.Now()
	_, err := r.Read(make([]byte, 4))
	assert.ErrorIs(t, err, os.ErrDeadlineExceeded)
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)

	r.SetDeadline(time.Now().Add(-time.Second))
	_, err = r.Read(make([]byte, 4))
	assert.ErrorIs(t, err, os.ErrDeadlineExceeded)
}

func TestChannelReaderEOF(t *testing.T) {
	c := make(chan []byte, 1)
	r := NewChannelReader(c)
	c <- []byte("x")
	close(c)

	b := make([]byte, 4)
	n, err := r.Read(b)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = r.Read(b)
	assert.ErrorIs(t, err, io.EOF)

	_, err = r.Read(nil)
	assert.ErrorIs(t, err, io.ErrShortBuffer)
}

func TestPump(t *testing.T) {
	r := NewChannelReader(Pump(bytes.NewBufferString("pumped")))
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "pumped", string(got))
}
