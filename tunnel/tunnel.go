package tunnel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
	log "github.com/sirupsen/logrus"
)

const (
	// ChunkSize is the most the listener loop reads from the stream per tick.
	// Each read becomes one message, longer messages arrive split.
	ChunkSize = 64
	// MaxDraftLength is the maximum number of runes in the line being typed.
	MaxDraftLength = 64
	// ExitCommand typed on its own ends the session locally.
	ExitCommand = "exit"

	PeerMarker  = "~"
	LocalMarker = "o"

	DefaultWriteTimeout = 5 * time.Second

	headerRow       = 0
	firstMessageRow = 1
	// header, separator and draft line
	reservedRows = 3
)

// Options tunes a Tunnel. Zero values select the defaults.
type Options struct {
	TickInterval time.Duration
	// WriteTimeout bounds a single outbound write, a stalled peer ends the session.
	WriteTimeout time.Duration
}

// Tunnel runs a chat session on an authenticated Session. It owns the
// connection and closes it when Run returns.
type Tunnel struct {
	session *Session
	conn    net.Conn
	term    Terminal
	opts    Options
	log     *log.Entry

	queue  *MessageQueue
	height *Shared[int]
	draft  *Shared[[]rune]
	alive  *Shared[bool]

	ctx    context.Context
	cancel context.CancelFunc

	// only touched by the listener loop
	readBuf []byte

	// only touched by the renderer loop
	rows, cols   int
	drawnVersion uint64
	drawnDraft   string
	drawn        bool
	disconnected sync.Once
}

// New prepares a Tunnel for session. Nothing runs until Run is called.
func New(session *Session, term Terminal, opts Options) *Tunnel {
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	rows, _ := term.Size()
	ctx, cancel := context.WithCancel(context.Background())
	return &Tunnel{
		session: session,
		conn:    session.Conn,
		term:    term,
		opts:    opts,
		log:     log.WithFields(log.Fields{"session": session.ID, "peer": session.PeerName}),
		queue:   NewMessageQueue(messageRows(rows)),
		height:  NewShared(rows),
		draft:   NewShared[[]rune](nil),
		alive:   NewShared(true),
		ctx:     ctx,
		cancel:  cancel,
		readBuf: make([]byte, ChunkSize),
	}
}

// Run starts the listener and renderer loops and reads keys until the user
// exits or the peer disconnects. A disconnect is not an error; a failure of
// the renderer, which owns the only write path to the peer, is returned.
func (t *Tunnel) Run() error {
	t.log.Info("session started")
	listener := StartTicker(t.opts.TickInterval, t.listenStep)
	renderer := StartTicker(t.opts.TickInterval, t.renderStep)
	go func() {
		<-renderer.Done()
		t.stop()
	}()

	inputErr := t.inputLoop()
	t.stop()

	renderErr := renderer.Wait()
	listenErr := listener.Wait()
	if renderErr == nil {
		if err := t.flushPending(); err != nil && !isDisconnect(err) {
			t.log.WithError(err).Warn("failed sending queued messages")
		}
	}
	if err := t.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		t.log.WithError(err).Debug("failed closing connection")
	}
	t.log.Info("session ended")

	switch {
	case renderErr != nil:
		return fmt.Errorf("Run: renderer failed: %w", renderErr)
	case listenErr != nil:
		return fmt.Errorf("Run: listener failed: %w", listenErr)
	case inputErr != nil:
		return fmt.Errorf("Run: reading keys failed: %w", inputErr)
	}
	return nil
}

func (t *Tunnel) stop() {
	t.alive.Store(false)
	t.cancel()
}

// Queue returns the transcript of the session.
func (t *Tunnel) Queue() *MessageQueue {
	return t.queue
}

// Alive reports whether the session is still running.
func (t *Tunnel) Alive() bool {
	return t.alive.Load()
}

// Draft returns the line currently being typed.
func (t *Tunnel) Draft() string {
	var s string
	t.draft.Read(func(d []rune) {
		s = string(d)
	})
	return s
}

// ViewportHeight is the terminal height seen by the last render tick.
func (t *Tunnel) ViewportHeight() int {
	return t.height.Load()
}

func (t *Tunnel) listenStep() (bool, error) {
	if !t.alive.Load() {
		return false, nil
	}
	if err := t.conn.SetReadDeadline(time.Now().Add(t.opts.TickInterval)); err != nil {
		if isDisconnect(err) {
			t.peerGone(err)
			return false, nil
		}
		t.log.WithError(err).Error("listener: failed setting read deadline")
		return true, nil
	}
	n, err := t.conn.Read(t.readBuf)
	if n > 0 {
		t.queue.Enqueue(decodeChunk(t.readBuf[:n]), PeerMarker, Delivered)
	}
	switch {
	case err == nil:
	case errors.Is(err, os.ErrDeadlineExceeded):
	case isDisconnect(err):
		t.peerGone(err)
		return false, nil
	default:
		t.log.WithError(err).Error("listener: unexpected read error")
	}
	return true, nil
}

func (t *Tunnel) peerGone(err error) {
	t.log.WithError(err).Info("peer disconnected")
	t.stop()
}

func (t *Tunnel) renderStep() (bool, error) {
	if !t.alive.Load() {
		return false, t.drawDisconnected()
	}

	rows, cols := t.term.Size()
	t.height.Store(rows)
	t.queue.SetCapacity(messageRows(rows))

	resized := !t.drawn || rows != t.rows || cols != t.cols
	if resized {
		t.rows, t.cols = rows, cols
		if err := t.drawHeader(); err != nil {
			return false, err
		}
	}

	version := t.queue.Version()
	draft := t.Draft()
	redraw := resized || version != t.drawnVersion || draft != t.drawnDraft

	row := firstMessageRow
	last := lastMessageRow(rows)
	err := t.queue.VisitInOrder(func(m *Message) error {
		if m.MarkSent() {
			if err := t.send(m); err != nil {
				return err
			}
		}
		if !redraw || row > last {
			return nil
		}
		if err := t.drawLine(row, formatLine(m, cols)); err != nil {
			return err
		}
		row++
		return nil
	})
	if err != nil {
		return false, err
	}

	if redraw {
		if err := t.drawLine(draftRow(rows), runewidth.Truncate(draft, max(cols-1, 0), "")); err != nil {
			return false, err
		}
		t.drawnVersion = version
		t.drawnDraft = draft
		t.drawn = true
	}
	if err := t.term.Flush(); err != nil {
		return false, err
	}
	return true, nil
}

func (t *Tunnel) send(m *Message) error {
	if err := t.conn.SetWriteDeadline(time.Now().Add(t.opts.WriteTimeout)); err != nil {
		return err
	}
	if _, err := t.conn.Write([]byte(m.Content())); err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	t.log.WithField("bytes", len(m.Content())).Trace("message sent")
	return nil
}

// flushPending sends messages queued after the renderer's last tick, e.g. a
// line typed right before "exit" arriving in the same chunk. Oldest first.
func (t *Tunnel) flushPending() error {
	messages := t.queue.Messages()
	for i := len(messages) - 1; i >= 0; i-- {
		if !messages[i].MarkSent() {
			continue
		}
		if err := t.send(messages[i]); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tunnel) drawHeader() error {
	if err := t.term.MoveCursor(0, headerRow); err != nil {
		return err
	}
	if err := t.term.ClearToEndOfScreen(); err != nil {
		return err
	}
	_, err := t.term.Write([]byte(formatHeader(t.session.PeerName, t.cols)))
	return err
}

func (t *Tunnel) drawLine(row int, line string) error {
	if err := t.term.MoveCursor(0, row); err != nil {
		return err
	}
	if err := t.term.ClearLine(); err != nil {
		return err
	}
	_, err := t.term.Write([]byte(line))
	return err
}

// drawDisconnected shows the end of the session once, later calls do nothing.
func (t *Tunnel) drawDisconnected() error {
	var err error
	t.disconnected.Do(func() {
		rows := t.rows
		if !t.drawn {
			rows, _ = t.term.Size()
		}
		if err = t.drawLine(draftRow(rows), disconnectedStyle.Render("Disconnected")); err != nil {
			return
		}
		err = t.term.Flush()
	})
	return err
}

func (t *Tunnel) inputLoop() error {
	for t.alive.Load() {
		key, err := t.term.ReadKey(t.ctx)
		if err != nil {
			if t.ctx.Err() != nil {
				return nil
			}
			return err
		}
		if !t.handleKey(key) {
			t.log.Info("local exit")
			return nil
		}
	}
	return nil
}

// handleKey applies a keystroke to the draft and returns false when the user
// asked to leave the session.
func (t *Tunnel) handleKey(key Key) bool {
	cont := true
	switch key.Kind {
	case KeyBackspace:
		t.draft.Update(func(d *[]rune) {
			if len(*d) > 0 {
				*d = (*d)[:len(*d)-1]
			}
		})
	case KeyChar:
		t.draft.Update(func(d *[]rune) {
			if len(*d) < MaxDraftLength && (len(*d) > 0 || !unicode.IsSpace(key.Rune)) {
				*d = append(*d, key.Rune)
			}
		})
	case KeyEnter:
		t.draft.Update(func(d *[]rune) {
			if len(*d) == 0 {
				return
			}
			text := string(*d)
			if text == ExitCommand {
				cont = false
				return
			}
			t.queue.Enqueue(text, LocalMarker, PendingSend)
			*d = nil
		})
	case KeyInterrupt:
		cont = false
	}
	return cont
}

// decodeChunk turns raw bytes into text. A chunk boundary may split a multi
// byte character, the broken pieces are replaced.
func decodeChunk(b []byte) string {
	return strings.ToValidUTF8(string(b), string(utf8.RuneError))
}

func isDisconnect(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, syscall.EPIPE)
}

func messageRows(rows int) int {
	return max(rows-reservedRows, 1)
}

func lastMessageRow(rows int) int {
	return firstMessageRow + messageRows(rows) - 1
}

func draftRow(rows int) int {
	return max(rows-1, lastMessageRow(rows)+1)
}
