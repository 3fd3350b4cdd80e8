// Package postgres adapts a single pgx connection to the database package
// interfaces used by the catalog and describe layers.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/koustreak/pgdescribe/internal/database"
	"github.com/koustreak/pgdescribe/internal/errs"
	"github.com/koustreak/pgdescribe/internal/logger"
	"github.com/koustreak/pgdescribe/internal/transport"
)

// Conn is one exclusively-owned Postgres connection.
// It is NOT safe for concurrent use.
type Conn struct {
	conn *pgx.Conn
	log  *logger.Logger
}

// Connect dials the server described by cfg. TLS negotiation is done by a
// transport.Dialer rather than by pgx, so any sslmode in the DSN is replaced
// by cfg.TLSMode.
func Connect(ctx context.Context, cfg *database.Config, log *logger.Logger) (*Conn, error) {
	if log == nil {
		log = logger.Nop()
	}

	connCfg, err := pgx.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "invalid DSN", err)
	}

	mode := cfg.TLSMode
	if mode == "" {
		mode = database.TLSPrefer
	}
	dialer := &transport.Dialer{
		Mode:    mode,
		Timeout: cfg.ConnectTimeout,
		Log:     log,
	}
	// Keep sslrootcert and friends from the DSN when verifying.
	if mode == database.TLSVerifyFull && connCfg.TLSConfig != nil && !connCfg.TLSConfig.InsecureSkipVerify {
		dialer.TLSConfig = connCfg.TLSConfig
	}

	connCfg.DialFunc = dialer.DialContext
	connCfg.TLSConfig = nil
	connCfg.Fallbacks = nil
	if cfg.ConnectTimeout > 0 {
		connCfg.ConnectTimeout = cfg.ConnectTimeout
	}

	conn, err := pgx.ConnectConfig(ctx, connCfg)
	if err != nil {
		return nil, mapError(err, "failed to connect")
	}

	c := &Conn{conn: conn, log: log}
	log.With().
		Str("host", connCfg.Host).
		Str("database", connCfg.Database).
		Bool("tls", c.IsSecure()).
		Logger().Debug("connected")
	return c, nil
}

// Ping verifies the connection is alive.
func (c *Conn) Ping(ctx context.Context) error {
	return mapError(c.conn.Ping(ctx), "ping failed")
}

// Close terminates the connection.
func (c *Conn) Close(ctx context.Context) error {
	return mapError(c.conn.Close(ctx), "close failed")
}

// IsClosed reports whether the connection has been closed or broken.
func (c *Conn) IsClosed() bool {
	return c.conn.IsClosed()
}

// IsSecure reports whether the connection runs over TLS.
func (c *Conn) IsSecure() bool {
	s, ok := c.conn.PgConn().Conn().(*transport.Stream)
	return ok && s.IsSecure()
}

// Query executes a SQL statement that returns multiple rows.
func (c *Conn) Query(ctx context.Context, sql string, args ...any) (database.Rows, error) {
	rows, err := c.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, c.mapError(err, "query failed")
	}
	return &pgxRows{rows: rows, c: c}, nil
}

// QueryRow executes a SQL statement expected to return at most one row.
func (c *Conn) QueryRow(ctx context.Context, sql string, args ...any) database.Row {
	return &pgxRow{row: c.conn.QueryRow(ctx, sql, args...), c: c}
}

// Prepare parses and describes sql as the named statement.
func (c *Conn) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	sd, err := c.conn.Prepare(ctx, name, sql)
	if err != nil {
		return nil, c.mapError(err, "prepare failed")
	}
	return sd, nil
}

// Deallocate releases the named statement.
func (c *Conn) Deallocate(ctx context.Context, name string) error {
	return c.mapError(c.conn.Deallocate(ctx, name), "deallocate failed")
}

// mapError classifies err, treating any failure after which pgx has closed
// the connection as a connection failure.
func (c *Conn) mapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return classify(err, msg, c.conn.IsClosed())
}

var _ database.Session = (*Conn)(nil)

// --- pgx type wrappers ---

// pgxRows wraps pgx.Rows to satisfy database.Rows.
type pgxRows struct {
	rows pgx.Rows
	c    *Conn
}

func (r *pgxRows) Next() bool             { return r.rows.Next() }
func (r *pgxRows) Scan(dest ...any) error { return r.c.mapError(r.rows.Scan(dest...), "scan failed") }
func (r *pgxRows) Close()                 { r.rows.Close() }
func (r *pgxRows) Err() error             { return r.c.mapError(r.rows.Err(), "row iteration failed") }

// pgxRow wraps pgx.Row to satisfy database.Row.
type pgxRow struct {
	row pgx.Row
	c   *Conn
}

func (r *pgxRow) Scan(dest ...any) error { return r.c.mapError(r.row.Scan(dest...), "scan failed") }
