package asyncclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func TestSessionDo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "ok")
	}))
	defer server.Close()

	s := NewSession()
	defer s.Close()

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := s.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "ok" {
		t.Errorf("body = %q, want %q", body, "ok")
	}
}

func TestSessionHeaders(t *testing.T) {
	var gotUA, gotID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotID = r.Header.Get("X-Request-Id")
	}))
	defer server.Close()

	s := NewSession(
		WithUserAgent("asyncclient-test/1.0"),
		WithRequestID("X-Request-Id", func() string { return "fixed-id" }),
	)
	defer s.Close()

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	resp, err := s.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	resp.Body.Close()

	if gotUA != "asyncclient-test/1.0" {
		t.Errorf("User-Agent = %q, want %q", gotUA, "asyncclient-test/1.0")
	}
	if gotID != "fixed-id" {
		t.Errorf("X-Request-Id = %q, want %q", gotID, "fixed-id")
	}

	// Caller-set headers win.
	req, _ = http.NewRequest(http.MethodGet, server.URL, nil)
	req.Header.Set("User-Agent", "caller/2.0")
	req.Header.Set("X-Request-Id", "caller-id")
	resp, err = s.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	resp.Body.Close()

	if gotUA != "caller/2.0" {
		t.Errorf("User-Agent = %q, want caller override", gotUA)
	}
	if gotID != "caller-id" {
		t.Errorf("X-Request-Id = %q, want caller override", gotID)
	}
}

func TestSessionDefaultRequestID(t *testing.T) {
	ids := make(map[string]bool)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids[r.Header.Get("X-Request-Id")] = true
	}))
	defer server.Close()

	s := NewSession(WithRequestIDHeader("X-Request-Id"))
	defer s.Close()

	for i := 0; i < 3; i++ {
		req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
		resp, err := s.Do(context.Background(), req)
		if err != nil {
			t.Fatalf("Do() error = %v", err)
		}
		resp.Body.Close()
	}
	if len(ids) != 3 {
		t.Errorf("got %d distinct request IDs, want 3", len(ids))
	}
	if ids[""] {
		t.Error("request sent without a request ID")
	}
}

func TestSessionLazyTransport(t *testing.T) {
	s := NewSession()
	if s.client != nil || s.owned != nil {
		t.Fatal("connection pool built before the first request")
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if s.client != nil || s.owned != nil {
		t.Error("closing an unused session built the connection pool")
	}

	req, _ := http.NewRequest(http.MethodGet, "http://127.0.0.1:0", nil)
	if _, err := s.Do(context.Background(), req); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Do() after Close = %v, want ErrSessionClosed", err)
	}
}

func TestSessionClosed(t *testing.T) {
	s := NewSession()
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	req, _ := http.NewRequest(http.MethodGet, "http://127.0.0.1:0", nil)
	if _, err := s.Do(context.Background(), req); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Do() after Close = %v, want ErrSessionClosed", err)
	}
}

func TestSessionCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	s := NewSession()
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	_, err := s.Do(ctx, req)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Do() error = %v, want context.DeadlineExceeded", err)
	}
}

type stubLimiter struct {
	calls int
	err   error
}

func (l *stubLimiter) Wait(ctx context.Context) error {
	l.calls++
	return l.err
}

func TestSessionRateLimiter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	limiter := &stubLimiter{}
	s := NewSession(WithRateLimiter(limiter))
	defer s.Close()

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	resp, err := s.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	resp.Body.Close()
	if limiter.calls != 1 {
		t.Errorf("limiter called %d times, want 1", limiter.calls)
	}

	limiter.err = errors.New("rate limit budget exhausted")
	if _, err := s.Do(context.Background(), req.Clone(context.Background())); !errors.Is(err, limiter.err) {
		t.Errorf("Do() error = %v, want limiter error", err)
	}
}

func TestSessionHooks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer server.Close()

	var beforeCalled bool
	var afterStatus int
	var afterElapsed time.Duration
	s := NewSession(
		WithBeforeHook(func(ctx context.Context, req *http.Request) {
			beforeCalled = true
		}),
		WithAfterHook(func(ctx context.Context, req *http.Request, resp *http.Response, err error, elapsed time.Duration) {
			if resp != nil {
				afterStatus = resp.StatusCode
			}
			afterElapsed = elapsed
		}),
	)
	defer s.Close()

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	resp, err := s.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	resp.Body.Close()

	if !beforeCalled {
		t.Error("before hook not called")
	}
	if afterStatus != http.StatusTeapot {
		t.Errorf("after hook status = %d, want %d", afterStatus, http.StatusTeapot)
	}
	if afterElapsed <= 0 {
		t.Errorf("after hook elapsed = %v, want > 0", afterElapsed)
	}
}

func TestSessionTransportErrorPassthrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := server.URL
	server.Close()

	s := NewSession()
	defer s.Close()

	req, _ := http.NewRequest(http.MethodGet, target, nil)
	_, err := s.Do(context.Background(), req)
	if err == nil {
		t.Fatal("Do() against closed server succeeded")
	}
	// The transport's error shape is preserved, matching what a blocking
	// http.Client returns on the synchronous path.
	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		t.Errorf("Do() error = %T, want *url.Error", err)
	}
}
