package postgres

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/koustreak/pgdescribe/internal/errs"
)

// SQLSTATE codes given their own kind.
// Full list: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgErrInsufficientPrivilege = "42501"
	pgErrInvalidPassword       = "28P01"
	pgErrInvalidAuthorization  = "28000"
)

// mapError translates pgx / pgconn native errors into *errs.Error.
func mapError(err error, msg string) error {
	return classify(err, msg, false)
}

// classify is mapError with knowledge of whether the connection has since
// closed. ConnectionFailed is reserved for failures that leave the
// connection unusable; anything else is QueryFailed.
func classify(err error, msg string, closed bool) error {
	if err == nil {
		return nil
	}

	// Already classified below us (transport stream, dialer).
	if errs.KindOf(err) != errs.ErrKindUnknown {
		var e *errs.Error
		errors.As(err, &e)
		if e != err {
			return errs.Wrap(e.Kind, msg, err)
		}
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		kind := errs.ErrKindQueryFailed
		switch {
		// Class 08 — connection errors
		case len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08":
			kind = errs.ErrKindConnectionFailed
		case pgErr.Code == pgErrInsufficientPrivilege,
			pgErr.Code == pgErrInvalidPassword,
			pgErr.Code == pgErrInvalidAuthorization:
			kind = errs.ErrKindPermissionDenied
		}
		return errs.Wrap(kind, fmt.Sprintf("%s: %s", msg, pgErr.Message), err)
	}

	if closed || brokenConn(err) {
		return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
	}

	// Client-side scan and decode failures leave the protocol in step.
	return errs.Wrap(errs.ErrKindQueryFailed, msg, err)
}

// brokenConn reports whether err came from the network or from pgx refusing
// to use a connection that is closed or was never established.
func brokenConn(err error) bool {
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	// Set for errors raised before anything was sent, such as on a closed
	// connection.
	return pgconn.SafeToRetry(err)
}
