// Package asyncclient provides the runtime shared by generated dual-mode
// clients: a lazily created, context-aware HTTP session and a streaming
// content handle for binary endpoints.
//
// A Session replaces the reference client's blocking transport on the async
// path. It owns its connection pool, honors context cancellation and
// deadlines, and returns the transport's response and error unchanged, so
// the generated twins keep exact behavioral and error parity with the
// synchronous surface.
package asyncclient

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"
)

// ErrSessionClosed is returned by Do after Close has released the session.
var ErrSessionClosed = errors.New("asyncclient: session is closed")

// RateLimiter gates request admission. *rate.Limiter from
// golang.org/x/time/rate satisfies it.
type RateLimiter interface {
	Wait(ctx context.Context) error
}

// BeforeHook runs before a request is sent.
type BeforeHook func(ctx context.Context, req *http.Request)

// AfterHook runs after a response (or transport error) is received.
type AfterHook func(ctx context.Context, req *http.Request, resp *http.Response, err error, elapsed time.Duration)

// Session is the shared non-blocking transport behind a generated client's
// async surface. Create one with NewSession, or let the generated client
// create it lazily on first async use. A Session is safe for concurrent use
// and must be released with Close when the async surface is done.
type Session struct {
	cfg config

	mu sync.Mutex

	// client and its pooled transport are built on the first request, so a
	// session closed before any use never allocates a connection pool.
	client *http.Client

	// owned is the transport whose idle pool Close releases. Nil until the
	// first request, and nil when the caller supplied its own transport via
	// WithTransport.
	owned *http.Transport

	closed bool
}

// NewSession creates a session. Its pooled transport is created on the first
// request.
func NewSession(opts ...Option) *Session {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Session{cfg: cfg}
}

// httpClient returns the underlying client, building it on first use.
func (s *Session) httpClient() (*http.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.client == nil {
		transport := s.cfg.transport
		if transport == nil {
			if base, ok := http.DefaultTransport.(*http.Transport); ok {
				s.owned = base.Clone()
			} else {
				s.owned = &http.Transport{}
			}
			transport = s.owned
		}
		s.client = &http.Client{
			Transport: transport,
			Timeout:   s.cfg.timeout,
		}
	}
	return s.client, nil
}

// Do sends the request on the caller's context. The request is decorated
// with the configured user agent and request ID header, gated by the rate
// limiter, and surrounded by the registered hooks. The underlying client's
// response and error are returned unchanged; cancelling ctx aborts the
// in-flight request.
func (s *Session) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	client, err := s.httpClient()
	if err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if s.cfg.limiter != nil {
		if err := s.cfg.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req = req.WithContext(ctx)
	if s.cfg.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", s.cfg.userAgent)
	}
	if s.cfg.requestIDHeader != "" && req.Header.Get(s.cfg.requestIDHeader) == "" {
		req.Header.Set(s.cfg.requestIDHeader, s.cfg.newRequestID())
	}

	for _, hook := range s.cfg.before {
		hook(ctx, req)
	}

	start := time.Now()
	resp, err := client.Do(req)
	elapsed := time.Since(start)

	evt := s.cfg.logger.Debug().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Dur("elapsed", elapsed)
	if err != nil {
		evt.Err(err).Msg("request failed")
	} else {
		evt.Int("status", resp.StatusCode).Msg("request done")
	}

	for _, hook := range s.cfg.after {
		hook(ctx, req, resp, err, elapsed)
	}
	return resp, err
}

// Close releases the session's connection pool. Close is idempotent; Do
// calls made after Close fail with ErrSessionClosed.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.owned != nil {
		s.owned.CloseIdleConnections()
	}
	return nil
}
