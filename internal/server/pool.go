package server

import (
	"context"
	"sync"

	"github.com/koustreak/pgdescribe/internal/describe"
	"github.com/koustreak/pgdescribe/internal/errs"
	"github.com/koustreak/pgdescribe/internal/logger"
)

// Session is one describe connection owned by the pool.
type Session interface {
	Describe(ctx context.Context, sql string) (*describe.Result, error)
	// Err returns non-nil once the session can no longer be used.
	Err() error
	Close(ctx context.Context) error
}

// DialFunc opens a new Session.
type DialFunc func(ctx context.Context) (Session, error)

// Pool hands out at most size Sessions at a time. Sessions are opened on
// demand and reused; a session whose Err is set is closed on release
// instead of being returned to the idle set.
type Pool struct {
	dial  DialFunc
	log   *logger.Logger
	slots chan struct{}
	idle  chan Session

	mu     sync.Mutex
	closed bool
}

// NewPool returns a Pool of up to size sessions opened with dial.
func NewPool(size int, dial DialFunc, log *logger.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Pool{
		dial:  dial,
		log:   log,
		slots: make(chan struct{}, size),
		idle:  make(chan Session, size),
	}
}

// Acquire returns an idle session or opens a new one, waiting for a free
// slot while all sessions are in use.
func (p *Pool) Acquire(ctx context.Context) (Session, error) {
	if p.isClosed() {
		return nil, errs.New(errs.ErrKindMisuse, "pool is closed")
	}
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, errs.Wrap(errs.ErrKindTimeout, "waiting for a connection", ctx.Err())
	}

	select {
	case s := <-p.idle:
		return s, nil
	default:
	}

	s, err := p.dial(ctx)
	if err != nil {
		<-p.slots
		return nil, err
	}
	p.log.Debug("opened describe session")
	return s, nil
}

// Release gives s back to the pool.
func (p *Pool) Release(ctx context.Context, s Session) {
	defer func() { <-p.slots }()

	if err := s.Err(); err != nil {
		p.log.With().Err(err).Logger().Warn("discarding broken session")
		p.closeSession(ctx, s)
		return
	}

	p.mu.Lock()
	kept := false
	if !p.closed {
		select {
		case p.idle <- s:
			kept = true
		default:
		}
	}
	p.mu.Unlock()
	if !kept {
		p.closeSession(ctx, s)
	}
}

// Close closes every idle session. Sessions still checked out are closed
// when they are released.
func (p *Pool) Close(ctx context.Context) {
	p.mu.Lock()
	p.closed = true
	var drained []Session
	for done := false; !done; {
		select {
		case s := <-p.idle:
			drained = append(drained, s)
		default:
			done = true
		}
	}
	p.mu.Unlock()

	for _, s := range drained {
		p.closeSession(ctx, s)
	}
}

func (p *Pool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Pool) closeSession(ctx context.Context, s Session) {
	if err := s.Close(ctx); err != nil {
		p.log.WarnWith("closing session failed", err, nil)
	}
}
