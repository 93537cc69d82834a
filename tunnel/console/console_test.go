package console

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/termtunnel/termtunnel/tunnel"
)

func fixedSize(rows, cols int) func() (int, int) {
	return func() (int, int) { return rows, cols }
}

func TestConsoleDrawing(t *testing.T) {
	out := &bytes.Buffer{}
	c := New(bytes.NewReader(nil), out, fixedSize(24, 80))

	require.NoError(t, c.MoveCursor(0, 0))
	require.NoError(t, c.ClearToEndOfScreen())
	require.NoError(t, c.MoveCursor(4, 2))
	require.NoError(t, c.ClearLine())
	_, err := c.Write([]byte("hi"))
	require.NoError(t, err)
	assert.Empty(t, out.String(), "nothing is written before Flush")

	require.NoError(t, c.Flush())
	assert.Equal(t, "\x1b[1;1H\x1b[J\x1b[3;5H\x1b[2Khi", out.String())

	rows, cols := c.Size()
	assert.Equal(t, 24, rows)
	assert.Equal(t, 80, cols)
}

func TestConsoleRestore(t *testing.T) {
	out := &bytes.Buffer{}
	c := New(bytes.NewReader(nil), out, fixedSize(10, 40))
	restored := false
	c.restore = func() error {
		restored = true
		return nil
	}

	require.NoError(t, c.Restore())
	assert.True(t, restored)
	assert.Equal(t, "\x1b[10;1H\r\n", out.String())
}

func TestConsoleReadKey(t *testing.T) {
	c := New(bytes.NewBufferString("hé\x1b[A\r"), io.Discard, fixedSize(24, 80))
	ctx := context.Background()

	var keys []tunnel.Key
	for i := 0; i < 4; i++ {
		key, err := c.ReadKey(ctx)
		require.NoError(t, err)
		keys = append(keys, key)
	}
	assert.Equal(t, []tunnel.Key{
		{Kind: tunnel.KeyChar, Rune: 'h'},
		{Kind: tunnel.KeyChar, Rune: 'é'},
		{Kind: tunnel.KeyOther},
		{Kind: tunnel.KeyEnter},
	}, keys)

	_, err := c.ReadKey(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestConsoleReadKeyCancel(t *testing.T) {
	in, w := io.Pipe()
	defer w.Close()
	c := New(in, io.Discard, fixedSize(24, 80))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := c.ReadKey(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
