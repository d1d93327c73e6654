package asyncclient

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

type config struct {
	timeout         time.Duration
	transport       http.RoundTripper
	userAgent       string
	requestIDHeader string
	newRequestID    func() string
	limiter         RateLimiter
	logger          zerolog.Logger
	before          []BeforeHook
	after           []AfterHook
}

func defaultConfig() config {
	return config{
		newRequestID: uuid.NewString,
		logger:       zerolog.Nop(),
	}
}

// Option configures a Session at creation time.
type Option func(*config)

// WithTimeout bounds each request end to end, mirroring the reference
// client's http.Client timeout. Zero means no timeout; per-request deadlines
// come from the caller's context either way.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithTransport replaces the session's own pooled transport. The session no
// longer owns the pool; the caller is responsible for releasing it.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *config) {
		c.transport = rt
	}
}

// WithUserAgent sets the User-Agent header on requests that do not carry one.
func WithUserAgent(ua string) Option {
	return func(c *config) {
		c.userAgent = ua
	}
}

// WithRateLimit gates requests at rps requests per second with the given
// burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *config) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRateLimiter installs a custom rate limiter.
func WithRateLimiter(l RateLimiter) Option {
	return func(c *config) {
		c.limiter = l
	}
}

// WithRequestIDHeader injects a fresh UUID into the named header on every
// request that does not already carry one.
func WithRequestIDHeader(header string) Option {
	return func(c *config) {
		c.requestIDHeader = header
	}
}

// WithRequestID is WithRequestIDHeader with a custom ID generator.
func WithRequestID(header string, fn func() string) Option {
	return func(c *config) {
		c.requestIDHeader = header
		c.newRequestID = fn
	}
}

// WithLogger enables debug logging of requests through the given logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithBeforeHook registers a hook run before each request is sent.
func WithBeforeHook(h BeforeHook) Option {
	return func(c *config) {
		c.before = append(c.before, h)
	}
}

// WithAfterHook registers a hook run after each response or transport error.
func WithAfterHook(h AfterHook) Option {
	return func(c *config) {
		c.after = append(c.after, h)
	}
}
