package console

import (
	"io"
	"os"
	"time"
)

// A ChannelReader reads byte chunks from a channel and buffers what the caller
// did not consume. It lets a blocking source such as stdin be read with a deadline.
type ChannelReader struct {
	c        <-chan []byte
	buf      []byte
	deadline time.Time
}

// NewChannelReader creates a new ChannelReader
func NewChannelReader(c <-chan []byte) *ChannelReader {
	return &ChannelReader{
		c: c,
	}
}

// Pump copies everything read from r into a new channel until r fails. The
// channel is closed afterwards.
func Pump(r io.Reader) <-chan []byte {
	c := make(chan []byte)
	go func() {
		defer close(c)
		for {
			b := make([]byte, 256)
			n, err := r.Read(b)
			if n > 0 {
				c <- b[:n]
			}
			if err != nil {
				return
			}
		}
	}()
	return c
}

// Read reads from the channel. It should not be called by multiple goroutines.
// It returns os.ErrDeadlineExceeded once the deadline passed and io.EOF after
// the channel was closed and the buffer drained.
func (r *ChannelReader) Read(b []byte) (sz int, err error) {
	if len(b) == 0 {
		return 0, io.ErrShortBuffer
	}

	for {
		if len(r.buf) > 0 {
			sz = copy(b, r.buf)
			r.buf = r.buf[sz:]
			return sz, nil
		}

		var ok bool
		if r.deadline.IsZero() {
			r.buf, ok = <-r.c
		} else {
			wait := time.Until(r.deadline)
			if wait <= 0 {
				return 0, os.ErrDeadlineExceeded
			}
			timer := time.NewTimer(wait)
			select {
			case r.buf, ok = <-r.c:
				timer.Stop()
			case <-timer.C:
				return 0, os.ErrDeadlineExceeded
			}
		}
		if !ok {
			return 0, io.EOF
		}
	}
}

// SetDeadline sets the deadline to read to the channel
func (r *ChannelReader) SetDeadline(deadline time.Time) {
	r.deadline = deadline
}
