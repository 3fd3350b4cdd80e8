// Package server exposes statement describes over HTTP.
//
// Routes:
//
//	POST /describe   {"sql": "...", "save": bool, "offline": bool}
//	GET  /saved      every result in the offline cache
//	GET  /healthz    liveness
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/koustreak/pgdescribe/internal/describe"
	"github.com/koustreak/pgdescribe/internal/errs"
	"github.com/koustreak/pgdescribe/internal/logger"
	"github.com/koustreak/pgdescribe/internal/offline"
)

const maxBodyBytes = 1 << 20

// Options configures a Server.
type Options struct {
	Logger *logger.Logger

	// Cache enables "save" and "offline" requests and GET /saved. Nil
	// disables them.
	Cache *offline.Cache

	// QueryTimeout bounds each describe. Zero means no limit beyond the
	// request's own context.
	QueryTimeout time.Duration
}

// Server routes HTTP requests to pooled describe sessions.
type Server struct {
	pool   *Pool
	cache  *offline.Cache
	log    *logger.Logger
	limit  time.Duration
	router chi.Router
}

// DescribeRequest is the body of POST /describe.
type DescribeRequest struct {
	SQL     string `json:"sql"`
	Save    bool   `json:"save,omitempty"`
	Offline bool   `json:"offline,omitempty"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// New returns a Server drawing sessions from pool.
func New(pool *Pool, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	s := &Server{
		pool:  pool,
		cache: opts.Cache,
		log:   opts.Logger,
		limit: opts.QueryTimeout,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.log))

	r.Get("/healthz", s.handleHealth)
	r.Post("/describe", s.handleDescribe)
	r.Get("/saved", s.handleSaved)
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDescribe(w http.ResponseWriter, r *http.Request) {
	var req DescribeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, r, errs.Wrap(errs.ErrKindInvalidInput, "invalid request body", err))
		return
	}
	if strings.TrimSpace(req.SQL) == "" {
		s.writeError(w, r, errs.New(errs.ErrKindInvalidInput, "sql is required"))
		return
	}
	if (req.Save || req.Offline) && s.cache == nil {
		s.writeError(w, r, errs.New(errs.ErrKindInvalidInput, "offline cache is not configured"))
		return
	}

	ctx := r.Context()
	if s.limit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.limit)
		defer cancel()
	}

	if req.Offline {
		res, err := s.cache.Load(ctx, req.SQL)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
		return
	}

	res, err := s.describe(ctx, req.SQL)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Save {
		if err := s.cache.Save(ctx, req.SQL, res); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) describe(ctx context.Context, sql string) (*describe.Result, error) {
	sess, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	// Release may need to close a poisoned session after ctx has ended.
	defer s.pool.Release(context.WithoutCancel(ctx), sess)
	return sess.Describe(ctx, sql)
}

func (s *Server) handleSaved(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		s.writeError(w, r, errs.New(errs.ErrKindNotFound, "offline cache is not configured"))
		return
	}
	entries, err := s.cache.Entries(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).ErrorWith("describe request failed", err, nil)
	}
	kind := errs.KindOf(err)
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Kind: kind.String()})
}

// statusFor maps an error kind to the HTTP status reported to clients.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return http.StatusRequestEntityTooLarge
	}
	switch errs.KindOf(err) {
	case errs.ErrKindInvalidInput:
		return http.StatusBadRequest
	case errs.ErrKindNotFound:
		return http.StatusNotFound
	case errs.ErrKindPermissionDenied:
		return http.StatusForbidden
	case errs.ErrKindQueryFailed, errs.ErrKindTypeResolution:
		return http.StatusUnprocessableEntity
	case errs.ErrKindMisuse:
		return http.StatusConflict
	case errs.ErrKindTimeout:
		return http.StatusGatewayTimeout
	case errs.ErrKindConnectionFailed, errs.ErrKindConnectionAborted:
		return http.StatusServiceUnavailable
	case errs.ErrKindProtocol, errs.ErrKindPlanParse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
