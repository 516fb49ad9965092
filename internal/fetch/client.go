package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/Raam977/citius-scraper/internal/query"
	"github.com/Raam977/citius-scraper/internal/session"
)

const (
	// DefaultURL is the insolvency notices search page.
	DefaultURL = "https://www.citius.mj.pt/portal/consultas/ConsultasCire.aspx"

	// DefaultUserAgent mimics a desktop browser; the portal serves a
	// reduced page to unknown agents.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

	// DefaultTimeout bounds a single HTTP exchange.
	DefaultTimeout = 30 * time.Second

	// DefaultMinDelay separates consecutive requests.
	DefaultMinDelay = 1 * time.Second

	// DefaultMaxBodySize limits response bodies to 10MB.
	DefaultMaxBodySize = 10 * 1024 * 1024

	// StatusLoginTimeout is the IIS status for an expired session.
	StatusLoginTimeout = 440
)

// defaultExpiredMarkers are body fragments the portal shows instead of
// results once the server-side session is gone. Matching is case-insensitive.
var defaultExpiredMarkers = []string{
	"a sua sessão expirou",
	"sessão expirada",
	"a sessão terminou",
	"session has expired",
	"viewstate mac failed",
	"validation of viewstate mac failed",
}

// defaultExpiredPaths are redirect targets that signal an expired session.
var defaultExpiredPaths = []string{
	"sessaoexpirada",
	"/erro.aspx",
}

// Method is the HTTP method of a request.
type Method string

// Supported methods.
const (
	MethodGet  Method = http.MethodGet
	MethodPost Method = http.MethodPost
)

// Request describes one exchange.
type Request struct {
	// Method is GET for the initial form and POST for submissions.
	Method Method

	// Form holds the submitted values. Ignored for GET.
	Form query.Payload

	// Step labels the request in logs, metrics and debug dumps.
	Step string
}

// Page is a fetched portal page.
type Page struct {
	// Body is the raw response body.
	Body []byte

	// State is the continuation state carried by the page.
	State session.State

	// StatusCode is the HTTP status of the response.
	StatusCode int

	// URL is the final URL after redirects.
	URL string
}

// Client talks to the portal. It is safe for concurrent use; the minimum
// delay between requests is enforced across all callers.
type Client struct {
	url            string
	http           *resty.Client
	limiter        *rate.Limiter
	retry          RetryConfig
	logger         *slog.Logger
	metrics        *Metrics
	maxBodySize    int
	expiredMarkers []string
	dumper         *Dumper
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRetryConfig replaces the retry policy.
func WithRetryConfig(cfg RetryConfig) Option {
	return func(c *Client) {
		c.retry = cfg
	}
}

// WithMinDelay sets the minimum delay between consecutive requests.
// Zero disables the delay.
func WithMinDelay(d time.Duration) Option {
	return func(c *Client) {
		c.limiter = newLimiter(d)
	}
}

// WithTimeout sets the per-exchange HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.SetTimeout(d)
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.http.SetHeader("User-Agent", ua)
		}
	}
}

// WithMaxBodySize limits accepted response bodies.
func WithMaxBodySize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBodySize = n
		}
	}
}

// WithMetrics sets the Prometheus collectors to update.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithExpiredMarkers adds body fragments that signal an expired session.
func WithExpiredMarkers(markers ...string) Option {
	return func(c *Client) {
		for _, m := range markers {
			if m = strings.TrimSpace(m); m != "" {
				c.expiredMarkers = append(c.expiredMarkers, strings.ToLower(m))
			}
		}
	}
}

// WithDumper writes every fetched body through d.
func WithDumper(d *Dumper) Option {
	return func(c *Client) {
		c.dumper = d
	}
}

// NewClient creates a Client for the search page at pageURL.
func NewClient(pageURL string, opts ...Option) *Client {
	if pageURL == "" {
		pageURL = DefaultURL
	}

	httpClient := resty.New()
	// The session cookie travels in session.State, not in a shared jar.
	httpClient.SetCookieJar(nil)
	httpClient.SetTimeout(DefaultTimeout)
	httpClient.SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))
	httpClient.SetHeaders(map[string]string{
		"User-Agent":                DefaultUserAgent,
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language":           "pt-PT,pt;q=0.9,en-US;q=0.8,en;q=0.7",
		"Upgrade-Insecure-Requests": "1",
		"Cache-Control":             "max-age=0",
	})

	c := &Client{
		url:            pageURL,
		http:           httpClient,
		limiter:        newLimiter(DefaultMinDelay),
		retry:          DefaultRetryConfig(),
		maxBodySize:    DefaultMaxBodySize,
		expiredMarkers: append([]string(nil), defaultExpiredMarkers...),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.metrics == nil {
		c.metrics = NewMetrics(prometheus.NewRegistry())
	}

	return c
}

// Fetch sends req carrying state and returns the resulting page with its
// new continuation state. The given state is never modified.
func (c *Client) Fetch(ctx context.Context, req Request, state session.State) (*Page, error) {
	if req.Method == "" {
		req.Method = MethodPost
	}
	if req.Step == "" {
		req.Step = strings.ToLower(string(req.Method))
	}

	var page *Page
	err := c.retryWithBackoff(ctx, req.Step, func() error {
		p, err := c.do(ctx, req, state)
		if err != nil {
			return err
		}
		page = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	if c.dumper != nil {
		if err := c.dumper.Dump(req.Step, page.Body); err != nil {
			c.logger.Warn("failed to write debug dump", "step", req.Step, "error", err)
		}
	}

	return page, nil
}

// do performs one attempt.
func (c *Client) do(ctx context.Context, req Request, state session.State) (*Page, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// The limiter refuses to wait past the context deadline.
		if _, ok := ctx.Deadline(); ok {
			return nil, fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
		}
		return nil, err
	}

	r := c.http.R().SetContext(ctx).SetDoNotParseResponse(true)
	if id := state.SessionID(); id != "" {
		r.SetCookie(&http.Cookie{Name: session.CookieName, Value: id})
	}

	start := time.Now()
	var (
		res *resty.Response
		err error
	)
	switch req.Method {
	case MethodGet:
		res, err = r.Get(c.url)
	default:
		res, err = r.SetFormData(req.Form).Post(c.url)
	}
	elapsed := time.Since(start)
	c.metrics.duration.WithLabelValues(req.Step).Observe(elapsed.Seconds())

	if err != nil {
		c.metrics.requests.WithLabelValues(req.Step, "error").Inc()
		if res != nil && res.RawResponse != nil {
			res.RawResponse.Body.Close()
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &attemptError{class: ErrorClassNetwork, err: err}
	}

	status := res.StatusCode()
	c.metrics.requests.WithLabelValues(req.Step, fmt.Sprint(status)).Inc()
	c.logger.Debug("portal response", logAttrs(req.Step, status, elapsed)...)

	finalURL := c.url
	if res.RawResponse != nil && res.RawResponse.Request != nil && res.RawResponse.Request.URL != nil {
		finalURL = res.RawResponse.Request.URL.String()
	}

	body, err := readBody(res.RawBody(), c.maxBodySize)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, ErrBodyTooLarge) {
			return nil, &attemptError{class: ErrorClassMalformed, statusCode: status, err: err}
		}
		return nil, &attemptError{class: ErrorClassNetwork, statusCode: status, err: err}
	}

	if reason, expired := c.expired(status, finalURL, body); expired {
		c.metrics.sessionExpired.Inc()
		return nil, &SessionError{Step: req.Step, Reason: reason}
	}

	switch {
	case status >= http.StatusInternalServerError:
		return nil, &attemptError{class: ErrorClassServer, statusCode: status, err: fmt.Errorf("server returned %d", status)}
	case status >= http.StatusBadRequest:
		return nil, &attemptError{class: ErrorClassClient, statusCode: status, err: fmt.Errorf("server returned %d", status)}
	}

	sessionID := state.SessionID()
	for _, cookie := range res.Cookies() {
		if cookie.Name == session.CookieName && cookie.Value != "" {
			sessionID = cookie.Value
		}
	}

	next, err := session.ParseBytes(body, sessionID)
	if err == nil {
		err = next.Validate()
	}
	if err != nil {
		return nil, &attemptError{class: ErrorClassMalformed, statusCode: status, err: fmt.Errorf("%w: %w", ErrMalformedResponse, err)}
	}

	return &Page{Body: body, State: next, StatusCode: status, URL: finalURL}, nil
}

// readBody reads at most limit bytes and closes rc. A body longer than
// limit is an error; nothing beyond limit+1 bytes is buffered.
func readBody(rc io.ReadCloser, limit int) ([]byte, error) {
	if rc == nil {
		return nil, nil
	}
	defer rc.Close()
	body, err := io.ReadAll(io.LimitReader(rc, int64(limit)+1))
	if err != nil {
		return nil, err
	}
	if len(body) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, limit)
	}
	return body, nil
}

// expired matches the session-expired signatures.
func (c *Client) expired(status int, finalURL string, body []byte) (string, bool) {
	if status == StatusLoginTimeout {
		return "status 440", true
	}
	lowerURL := strings.ToLower(finalURL)
	for _, p := range defaultExpiredPaths {
		if strings.Contains(lowerURL, p) {
			return "redirected to " + finalURL, true
		}
	}
	lowerBody := bytes.ToLower(body)
	for _, m := range c.expiredMarkers {
		if bytes.Contains(lowerBody, []byte(m)) {
			return fmt.Sprintf("page contains %q", m), true
		}
	}
	return "", false
}

func newLimiter(d time.Duration) *rate.Limiter {
	if d <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(d), 1)
}

// IsSessionError reports whether err is or wraps a *SessionError.
func IsSessionError(err error) bool {
	return errors.Is(err, ErrSessionExpired)
}
