// Package session wires one Postgres connection to a describe.Conn.
package session

import (
	"context"

	"github.com/koustreak/pgdescribe/internal/catalog"
	"github.com/koustreak/pgdescribe/internal/database"
	"github.com/koustreak/pgdescribe/internal/database/postgres"
	"github.com/koustreak/pgdescribe/internal/describe"
	"github.com/koustreak/pgdescribe/internal/errs"
	"github.com/koustreak/pgdescribe/internal/server"
)

// Session is a describe.Conn together with the connection it runs on.
// Like describe.Conn it is not safe for concurrent use.
type Session struct {
	*describe.Conn
	db *postgres.Conn
}

// Open connects with cfg and returns a ready Session.
func Open(ctx context.Context, cfg *database.Config, opts describe.Options) (*Session, error) {
	db, err := postgres.Connect(ctx, cfg, opts.Logger)
	if err != nil {
		return nil, err
	}
	return &Session{
		Conn: describe.New(db, catalog.New(db), opts),
		db:   db,
	}, nil
}

// Err reports why the session can no longer be used, or nil.
func (s *Session) Err() error {
	if err := s.Conn.Err(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return errs.New(errs.ErrKindConnectionAborted, "connection closed")
	}
	return nil
}

// IsSecure reports whether the connection runs over TLS.
func (s *Session) IsSecure() bool {
	return s.db.IsSecure()
}

// Close terminates the connection.
func (s *Session) Close(ctx context.Context) error {
	return s.db.Close(ctx)
}

var _ server.Session = (*Session)(nil)
