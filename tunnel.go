package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/termtunnel/termtunnel/tunnel"
	"github.com/termtunnel/termtunnel/tunnel/config"
	"github.com/termtunnel/termtunnel/tunnel/console"
)

// tunnelRunner drives one program run: establish the session, take over the
// terminal, chat, give the terminal back.
type tunnelRunner struct {
	es establisher
	to terminalOpener
	sr sessionRunner
	// logs is where log output goes while the session owns the screen. Nil
	// means logs are written as usual.
	logs io.Writer
}

type establisher interface {
	Establish(ctx context.Context, ep tunnel.Endpoint) (*tunnel.Session, error)
}

type terminalOpener interface {
	Open() (sessionTerminal, error)
}

type sessionTerminal interface {
	tunnel.Terminal
	Restore() error
}

type sessionRunner interface {
	Run(session *tunnel.Session, term tunnel.Terminal, opts tunnel.Options) error
}

func newTunnelRunner(cfg config.Config) *tunnelRunner {
	r := &tunnelRunner{
		es: tcpEstablisher{},
		to: consoleOpener{},
		sr: tunnelSession{},
	}
	if cfg.LogFile == "" {
		r.logs = os.Stderr
	}
	return r
}

// Start blocks until the session is over. Handshake failures are returned
// unchanged so callers can check for tunnel.ErrAuthFailed.
func (r *tunnelRunner) Start(ctx context.Context, cfg config.Config) error {
	session, err := r.es.Establish(ctx, cfg.Endpoint())
	if err != nil {
		return err
	}
	logger := log.WithFields(log.Fields{"session": session.ID, "peer": session.PeerName})

	term, err := r.to.Open()
	if err != nil {
		session.Conn.Close()
		return fmt.Errorf("Start: failed to open terminal: %w", err)
	}
	if r.logs != nil {
		defer holdLogs(r.logs)()
	}
	defer func() {
		if err := term.Restore(); err != nil {
			logger.WithError(err).Error("failed to restore terminal")
		}
	}()

	if err := r.sr.Run(session, term, tunnel.Options{TickInterval: cfg.TickInterval}); err != nil {
		return fmt.Errorf("Start: session with %s failed: %w", session.PeerName, err)
	}
	return nil
}

// holdLogs buffers log output while the session draws on the screen and
// writes it to w once the returned function is called.
func holdLogs(w io.Writer) func() {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	return func() {
		log.SetOutput(w)
		if _, err := w.Write(buf.Bytes()); err != nil {
			log.WithError(err).Error("failed to write held log output")
		}
	}
}

type tcpEstablisher struct{}

func (tcpEstablisher) Establish(ctx context.Context, ep tunnel.Endpoint) (*tunnel.Session, error) {
	return tunnel.Establish(ctx, ep)
}

type consoleOpener struct{}

func (consoleOpener) Open() (sessionTerminal, error) {
	return console.Open()
}

type tunnelSession struct{}

func (tunnelSession) Run(session *tunnel.Session, term tunnel.Terminal, opts tunnel.Options) error {
	return tunnel.New(session, term, opts).Run()
}
