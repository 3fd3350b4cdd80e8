package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/koustreak/pgdescribe/internal/describe"
	"github.com/koustreak/pgdescribe/internal/errs"
	"github.com/koustreak/pgdescribe/internal/filestore"
	"github.com/koustreak/pgdescribe/internal/filestore/local"
	"github.com/koustreak/pgdescribe/internal/logger"
	"github.com/koustreak/pgdescribe/internal/offline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tweetResult = `{
	"columns":[
		{"ordinal":0,"name":"id","type":{"oid":20,"name":"int8","kind":"builtin"},"relation_id":16390,"attribute_number":1,"nullable":false},
		{"ordinal":1,"name":"text","type":{"oid":25,"name":"text","kind":"builtin"},"relation_id":16390,"attribute_number":2,"nullable":true}
	],
	"parameters":[]
}`

type fakeSession struct {
	mu     sync.Mutex
	err    error // returned by Describe, and by Err when poison is set
	poison bool
	dead   error
	calls  int
	closed bool
}

func (s *fakeSession) Describe(_ context.Context, sql string) (*describe.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		if s.poison {
			s.dead = s.err
		}
		return nil, s.err
	}
	var res describe.Result
	if err := json.Unmarshal([]byte(tweetResult), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *fakeSession) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dead
}

func (s *fakeSession) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type fakeDialer struct {
	mu       sync.Mutex
	sessions []*fakeSession
	next     func() *fakeSession
	fail     error
}

func (d *fakeDialer) dial(context.Context) (Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail != nil {
		return nil, d.fail
	}
	s := &fakeSession{}
	if d.next != nil {
		s = d.next()
	}
	d.sessions = append(d.sessions, s)
	return s, nil
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sessions)
}

func newTestServer(t *testing.T, d *fakeDialer, withCache bool) (*Server, *offline.Cache) {
	t.Helper()
	opts := Options{QueryTimeout: time.Second}
	if withCache {
		store, err := local.New(&filestore.Config{Provider: filestore.ProviderLocal, Dir: t.TempDir()})
		require.NoError(t, err)
		opts.Cache = offline.New(store, nil)
	}
	pool := NewPool(2, d.dial, nil)
	t.Cleanup(func() { pool.Close(context.Background()) })
	return New(pool, opts), opts.Cache
}

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/describe", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_Healthz(t *testing.T) {
	srv, _ := newTestServer(t, &fakeDialer{}, false)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServer_Describe(t *testing.T) {
	d := &fakeDialer{}
	srv, _ := newTestServer(t, d, false)

	rec := post(t, srv, `{"sql":"SELECT id, text FROM tweet"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var res describe.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Len(t, res.Columns, 2)
	assert.Equal(t, describe.NotNull, res.Columns[0].Nullable)
	assert.Equal(t, describe.Nullable, res.Columns[1].Nullable)
	assert.Contains(t, rec.Body.String(), `"display":"BIGINT"`)

	// the session is reused
	rec = post(t, srv, `{"sql":"SELECT 1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, d.count())
}

func TestServer_BadRequests(t *testing.T) {
	srv, _ := newTestServer(t, &fakeDialer{}, false)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"not json", `SELECT 1`, http.StatusBadRequest},
		{"unknown field", `{"query":"SELECT 1"}`, http.StatusBadRequest},
		{"empty sql", `{"sql":"   "}`, http.StatusBadRequest},
		{"save without cache", `{"sql":"SELECT 1","save":true}`, http.StatusBadRequest},
		{"too large", `{"sql":"` + strings.Repeat("x", maxBodyBytes) + `"}`, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, srv, tt.body)
			assert.Equal(t, tt.want, rec.Code)
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestServer_ErrorStatus(t *testing.T) {
	tests := []struct {
		kind errs.ErrKind
		want int
	}{
		{errs.ErrKindQueryFailed, http.StatusUnprocessableEntity},
		{errs.ErrKindTypeResolution, http.StatusUnprocessableEntity},
		{errs.ErrKindPermissionDenied, http.StatusForbidden},
		{errs.ErrKindTimeout, http.StatusGatewayTimeout},
		{errs.ErrKindConnectionAborted, http.StatusServiceUnavailable},
		{errs.ErrKindPlanParse, http.StatusBadGateway},
		{errs.ErrKindMisuse, http.StatusConflict},
		{errs.ErrKindUnknown, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			d := &fakeDialer{next: func() *fakeSession {
				return &fakeSession{err: errs.New(tt.kind, "boom")}
			}}
			srv, _ := newTestServer(t, d, false)

			rec := post(t, srv, `{"sql":"SELECT 1"}`)
			assert.Equal(t, tt.want, rec.Code)
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.kind.String(), body.Kind)
		})
	}
}

func TestServer_DiscardsPoisonedSession(t *testing.T) {
	var n atomic.Int32
	d := &fakeDialer{next: func() *fakeSession {
		if n.Add(1) == 1 {
			return &fakeSession{err: errs.New(errs.ErrKindTimeout, "deadline"), poison: true}
		}
		return &fakeSession{}
	}}
	srv, _ := newTestServer(t, d, false)

	rec := post(t, srv, `{"sql":"SELECT pg_sleep(10)"}`)
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)

	rec = post(t, srv, `{"sql":"SELECT 1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 2, d.count())
	assert.True(t, d.sessions[0].closed)
	assert.False(t, d.sessions[1].closed)
}

func TestServer_DialFailure(t *testing.T) {
	d := &fakeDialer{fail: errs.New(errs.ErrKindConnectionFailed, "refused")}
	srv, _ := newTestServer(t, d, false)

	rec := post(t, srv, `{"sql":"SELECT 1"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_SaveAndOffline(t *testing.T) {
	d := &fakeDialer{}
	srv, cache := newTestServer(t, d, true)

	rec := post(t, srv, `{"sql":"SELECT id, text FROM tweet","offline":true}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = post(t, srv, `{"sql":"SELECT id, text FROM tweet","save":true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	saved, err := cache.Load(context.Background(), "SELECT id, text FROM tweet")
	require.NoError(t, err)
	assert.Len(t, saved.Columns, 2)

	calls := d.sessions[0].calls
	rec = post(t, srv, `{"sql":"SELECT id, text FROM tweet","offline":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, calls, d.sessions[0].calls, "offline describe must not touch the database")

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/saved", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []offline.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "SELECT id, text FROM tweet", entries[0].Query)
}

func TestServer_LogsFailuresWithRequestID(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&logger.Config{Level: "info", Format: "json", Output: &buf})
	d := &fakeDialer{next: func() *fakeSession {
		return &fakeSession{err: errs.New(errs.ErrKindUnknown, "boom")}
	}}
	pool := NewPool(1, d.dial, log)
	t.Cleanup(func() { pool.Close(context.Background()) })
	srv := New(pool, Options{Logger: log})

	req := httptest.NewRequest(http.MethodPost, "/describe", strings.NewReader(`{"sql":"SELECT 1"}`))
	req.Header.Set(middleware.RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var failure map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		if entry["message"] == "describe request failed" {
			failure = entry
		}
	}
	require.NotNil(t, failure, "no failure log line in %s", buf.String())
	assert.Equal(t, "error", failure["level"])
	assert.Equal(t, "req-42", failure["request_id"])
	assert.Contains(t, failure["error"], "boom")
}
