// Package transport provides the byte stream a describe connection runs
// over: a net.Conn that starts in plaintext and can be upgraded to TLS once.
package transport

import (
	"context"
	"crypto/tls"
	"net"
	"sync"
	"time"

	"github.com/koustreak/pgdescribe/internal/errs"
)

// State is the security state of a Stream.
type State int32

const (
	StateRaw           State = iota // plaintext
	StateSecure                     // TLS established
	StateTransitioning              // handshake running inside Upgrade
	StateAborted                    // handshake failed, no usable connection
)

func (s State) String() string {
	switch s {
	case StateRaw:
		return "raw"
	case StateSecure:
		return "secure"
	case StateTransitioning:
		return "transitioning"
	case StateAborted:
		return "aborted"
	default:
		return "invalid"
	}
}

var (
	// ErrAborted is returned by every operation on a stream whose upgrade failed.
	ErrAborted = errs.New(errs.ErrKindConnectionAborted, "stream aborted after failed TLS upgrade")

	// ErrUpgrading is returned by I/O issued while the handshake is running.
	ErrUpgrading = errs.New(errs.ErrKindMisuse, "I/O attempted during TLS upgrade")
)

// Stream is a net.Conn that can be upgraded from plaintext to TLS in place.
// Reads and writes never block on the state lock for longer than a state
// check; I/O during an upgrade fails instead of waiting for it.
type Stream struct {
	mu    sync.Mutex
	state State
	raw   net.Conn
	tls   *tls.Conn
}

// NewStream wraps an established plaintext connection.
func NewStream(c net.Conn) *Stream {
	return &Stream{raw: c}
}

// State returns the current state.
func (s *Stream) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsSecure reports whether the stream is running over TLS.
func (s *Stream) IsSecure() bool {
	return s.State() == StateSecure
}

// Upgrade performs a client TLS handshake over the plaintext connection.
// Upgrading a secure stream is a no-op. A failed handshake closes the
// underlying connection and leaves the stream aborted; there is no way back
// to plaintext.
func (s *Stream) Upgrade(ctx context.Context, host string, cfg *tls.Config) error {
	s.mu.Lock()
	switch s.state {
	case StateSecure:
		s.mu.Unlock()
		return nil
	case StateTransitioning:
		s.mu.Unlock()
		return ErrUpgrading
	case StateAborted:
		s.mu.Unlock()
		return ErrAborted
	}
	s.state = StateTransitioning
	raw := s.raw
	s.mu.Unlock()

	if cfg == nil {
		cfg = &tls.Config{}
	} else {
		cfg = cfg.Clone()
	}
	if cfg.ServerName == "" {
		cfg.ServerName = host
	}

	tc := tls.Client(raw, cfg)
	err := tc.HandshakeContext(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = StateAborted
		_ = raw.Close()
		return errs.Wrap(errs.ErrKindConnectionFailed, "TLS handshake with "+host+" failed", err)
	}
	s.tls = tc
	s.state = StateSecure
	return nil
}

// conn returns the connection I/O should go to in the current state.
func (s *Stream) conn() (net.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateRaw:
		return s.raw, nil
	case StateSecure:
		return s.tls, nil
	case StateTransitioning:
		return nil, ErrUpgrading
	default:
		return nil, ErrAborted
	}
}

func (s *Stream) Read(p []byte) (int, error) {
	c, err := s.conn()
	if err != nil {
		return 0, err
	}
	return c.Read(p)
}

func (s *Stream) Write(p []byte) (int, error) {
	c, err := s.conn()
	if err != nil {
		return 0, err
	}
	return c.Write(p)
}

// Close closes the stream. Closing an aborted stream is a no-op.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateSecure:
		return s.tls.Close()
	case StateAborted:
		return nil
	default:
		return s.raw.Close()
	}
}

func (s *Stream) LocalAddr() net.Addr  { return s.raw.LocalAddr() }
func (s *Stream) RemoteAddr() net.Addr { return s.raw.RemoteAddr() }

func (s *Stream) SetDeadline(t time.Time) error {
	c, err := s.conn()
	if err != nil {
		return err
	}
	return c.SetDeadline(t)
}

func (s *Stream) SetReadDeadline(t time.Time) error {
	c, err := s.conn()
	if err != nil {
		return err
	}
	return c.SetReadDeadline(t)
}

func (s *Stream) SetWriteDeadline(t time.Time) error {
	c, err := s.conn()
	if err != nil {
		return err
	}
	return c.SetWriteDeadline(t)
}

var _ net.Conn = (*Stream)(nil)
