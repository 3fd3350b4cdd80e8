package transport

import (
	"context"
	"crypto/tls"
	"encoding/binary"
	"io"
	"net"
	"time"

	"github.com/koustreak/pgdescribe/internal/database"
	"github.com/koustreak/pgdescribe/internal/errs"
	"github.com/koustreak/pgdescribe/internal/logger"
)

// See https://www.postgresql.org/docs/current/protocol-flow.html#PROTOCOL-FLOW-SSL
const sslRequestCode = 80877103

// Dialer opens Streams and negotiates TLS with the Postgres SSLRequest
// before any startup message is sent. DialContext matches the signature of
// pgconn.DialFunc.
type Dialer struct {
	Mode      database.TLSMode
	TLSConfig *tls.Config // base config; ServerName defaults to the dialed host
	Timeout   time.Duration
	Log       *logger.Logger
}

// DialContext connects to addr and upgrades the stream as Mode demands.
func (d *Dialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	nd := &net.Dialer{Timeout: d.Timeout, KeepAlive: 5 * time.Minute}
	c, err := nd.DialContext(ctx, network, addr)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "dial "+addr+" failed", err)
	}
	s := NewStream(c)

	if d.Mode == "" || d.Mode == database.TLSDisable || network == "unix" {
		return s, nil
	}

	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	accepted, err := requestTLS(ctx, s)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	if !accepted {
		if d.Mode == database.TLSPrefer {
			d.log().With().Str("addr", addr).Logger().Debug("server declined TLS, continuing in plaintext")
			return s, nil
		}
		_ = s.Close()
		return nil, errs.New(errs.ErrKindConnectionFailed, "server at "+addr+" does not support TLS")
	}

	if err := s.Upgrade(ctx, host, d.tlsConfig()); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (d *Dialer) tlsConfig() *tls.Config {
	var cfg *tls.Config
	if d.TLSConfig != nil {
		cfg = d.TLSConfig.Clone()
	} else {
		cfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	if d.Mode != database.TLSVerifyFull {
		cfg.InsecureSkipVerify = true
	}
	return cfg
}

func (d *Dialer) log() *logger.Logger {
	if d.Log == nil {
		return logger.Nop()
	}
	return d.Log
}

// requestTLS sends SSLRequest and reports whether the server answered 'S'.
func requestTLS(ctx context.Context, s *Stream) (bool, error) {
	if deadline, ok := ctx.Deadline(); ok {
		if err := s.SetDeadline(deadline); err != nil {
			return false, errs.Wrap(errs.ErrKindConnectionFailed, "set deadline", err)
		}
		defer s.SetDeadline(time.Time{})
	}

	var msg [8]byte
	binary.BigEndian.PutUint32(msg[0:4], 8)
	binary.BigEndian.PutUint32(msg[4:8], sslRequestCode)
	if _, err := s.Write(msg[:]); err != nil {
		return false, errs.Wrap(errs.ErrKindConnectionFailed, "send SSLRequest", err)
	}

	var reply [1]byte
	if _, err := io.ReadFull(s, reply[:]); err != nil {
		return false, errs.Wrap(errs.ErrKindConnectionFailed, "read SSLRequest reply", err)
	}
	switch reply[0] {
	case 'S':
		return true, nil
	case 'N':
		return false, nil
	default:
		return false, errs.Newf(errs.ErrKindProtocol, "unexpected SSLRequest reply %q", reply[0])
	}
}
