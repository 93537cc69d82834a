// Package console implements tunnel.Terminal on top of the process terminal.
// It switches stdin to raw mode, reads keystrokes through a ChannelReader so
// that a pending read can be abandoned, and draws with ANSI escape sequences.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/termtunnel/termtunnel/tunnel"
	"golang.org/x/term"
)

const (
	defaultRows = 24
	defaultCols = 80

	keyPollInterval = 50 * time.Millisecond
)

// Console is a raw mode terminal. Call Restore when the session is over.
type Console struct {
	out     *bufio.Writer
	size    func() (int, int)
	keys    *ChannelReader
	pending []byte
	restore func() error
}

// Open puts stdin into raw mode.
func Open() (*Console, error) {
	inFd := int(os.Stdin.Fd())
	if !term.IsTerminal(inFd) {
		return nil, errors.New("Open: stdin is not a terminal")
	}
	state, err := term.MakeRaw(inFd)
	if err != nil {
		return nil, fmt.Errorf("Open: failed to enter raw mode: %w", err)
	}
	outFd := int(os.Stdout.Fd())
	c := New(os.Stdin, os.Stdout, func() (int, int) {
		cols, rows, err := term.GetSize(outFd)
		if err != nil {
			log.WithError(err).Trace("console: failed to get terminal size")
			return defaultRows, defaultCols
		}
		return rows, cols
	})
	c.restore = func() error {
		return term.Restore(inFd, state)
	}
	return c, nil
}

// New creates a Console reading keys from in and drawing to out. size reports
// rows and columns.
func New(in io.Reader, out io.Writer, size func() (int, int)) *Console {
	return &Console{
		out:     bufio.NewWriter(out),
		size:    size,
		keys:    NewChannelReader(Pump(in)),
		restore: func() error { return nil },
	}
}

// Restore leaves raw mode and moves the cursor below the session screen.
func (c *Console) Restore() error {
	rows, _ := c.Size()
	if err := c.MoveCursor(0, rows-1); err == nil {
		c.out.WriteString("\r\n")
	}
	flushErr := c.out.Flush()
	return errors.Join(c.restore(), flushErr)
}

func (c *Console) Size() (int, int) {
	return c.size()
}

func (c *Console) MoveCursor(col int, row int) error {
	_, err := fmt.Fprintf(c.out, "\x1b[%d;%dH", max(row, 0)+1, max(col, 0)+1)
	return err
}

func (c *Console) ClearLine() error {
	_, err := c.out.WriteString("\x1b[2K")
	return err
}

func (c *Console) ClearToEndOfScreen() error {
	_, err := c.out.WriteString("\x1b[J")
	return err
}

func (c *Console) Write(p []byte) (int, error) {
	return c.out.Write(p)
}

func (c *Console) Flush() error {
	return c.out.Flush()
}

// ReadKey returns the next keystroke. It checks ctx at least every
// keyPollInterval while waiting.
func (c *Console) ReadKey(ctx context.Context) (tunnel.Key, error) {
	buf := make([]byte, 64)
	for {
		if key, n := decodeKey(c.pending); n > 0 {
			c.pending = c.pending[n:]
			return key, nil
		}
		if err := ctx.Err(); err != nil {
			return tunnel.Key{}, err
		}
		c.keys.SetDeadline(time.Now().Add(keyPollInterval))
		n, err := c.keys.Read(buf)
		c.pending = append(c.pending, buf[:n]...)
		if err != nil && !errors.Is(err, os.ErrDeadlineExceeded) {
			return tunnel.Key{}, err
		}
	}
}

// ReadPassword prompts on stderr and reads a line from the terminal without echo.
func ReadPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	defer fmt.Fprintln(os.Stderr)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", fmt.Errorf("ReadPassword: %w", err)
	}
	return string(b), nil
}
