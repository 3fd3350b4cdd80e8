package transport

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"io"
	"math/big"
	"net"
	"testing"
	"time"

	"github.com/koustreak/pgdescribe/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// selfSignedCert returns a server certificate valid for localhost and 127.0.0.1.
func selfSignedCert(t *testing.T) tls.Certificate {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:     []string{"localhost"},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}
}

// echoTLS runs a TLS server on c that echoes one message back.
func echoTLS(t *testing.T, c net.Conn, cert tls.Certificate) {
	t.Helper()
	go func() {
		defer c.Close()
		srv := tls.Server(c, &tls.Config{Certificates: []tls.Certificate{cert}})
		buf := make([]byte, 64)
		n, err := srv.Read(buf)
		if err != nil {
			return
		}
		_, _ = srv.Write(buf[:n])
	}()
}

func TestStream_UpgradeSucceeds(t *testing.T) {
	client, server := net.Pipe()
	echoTLS(t, server, selfSignedCert(t))

	s := NewStream(client)
	defer s.Close()
	assert.Equal(t, StateRaw, s.State())
	assert.False(t, s.IsSecure())

	err := s.Upgrade(context.Background(), "localhost", &tls.Config{InsecureSkipVerify: true})
	require.NoError(t, err)
	assert.Equal(t, StateSecure, s.State())
	assert.True(t, s.IsSecure())

	_, err = s.Write([]byte("ping"))
	require.NoError(t, err)
	buf := make([]byte, 4)
	_, err = io.ReadFull(s, buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf))
}

func TestStream_UpgradeSecureIsNoop(t *testing.T) {
	client, server := net.Pipe()
	echoTLS(t, server, selfSignedCert(t))

	s := NewStream(client)
	defer s.Close()
	require.NoError(t, s.Upgrade(context.Background(), "localhost", &tls.Config{InsecureSkipVerify: true}))

	// No handshake partner is left; a second handshake would hang or fail.
	require.NoError(t, s.Upgrade(context.Background(), "localhost", nil))
	assert.Equal(t, StateSecure, s.State())
}

func TestStream_FailedUpgradeAborts(t *testing.T) {
	client, server := net.Pipe()
	// Peer hangs up before the handshake.
	server.Close()

	s := NewStream(client)
	err := s.Upgrade(context.Background(), "localhost", &tls.Config{InsecureSkipVerify: true})
	require.Error(t, err)
	assert.True(t, errs.IsConnectionFailed(err))
	assert.Equal(t, StateAborted, s.State())
	assert.False(t, s.IsSecure())

	_, err = s.Read(make([]byte, 1))
	assert.True(t, errs.IsConnectionAborted(err))
	_, err = s.Write([]byte("x"))
	assert.True(t, errs.IsConnectionAborted(err))
	assert.True(t, errs.IsConnectionAborted(s.SetDeadline(time.Now())))

	err = s.Upgrade(context.Background(), "localhost", nil)
	assert.True(t, errs.IsConnectionAborted(err))
	assert.NoError(t, s.Close())
}

func TestStream_UpgradeUntrustedCertificateAborts(t *testing.T) {
	client, server := net.Pipe()
	echoTLS(t, server, selfSignedCert(t))

	s := NewStream(client)
	err := s.Upgrade(context.Background(), "localhost", &tls.Config{})
	require.Error(t, err)
	assert.Equal(t, StateAborted, s.State())
}

func TestStream_IOWhileTransitioningIsMisuse(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	s := NewStream(client)
	defer client.Close()

	s.mu.Lock()
	s.state = StateTransitioning
	s.mu.Unlock()

	_, err := s.Read(make([]byte, 1))
	assert.True(t, errs.IsMisuse(err))
	_, err = s.Write([]byte("x"))
	assert.True(t, errs.IsMisuse(err))
	assert.True(t, errs.IsMisuse(s.Upgrade(context.Background(), "localhost", nil)))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "raw", StateRaw.String())
	assert.Equal(t, "secure", StateSecure.String())
	assert.Equal(t, "transitioning", StateTransitioning.String())
	assert.Equal(t, "aborted", StateAborted.String())
	assert.Equal(t, "invalid", State(42).String())
}
