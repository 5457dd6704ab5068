package portal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	"github.com/felixgeelhaar/slotwatch/internal/booking/application"
	"github.com/felixgeelhaar/slotwatch/pkg/observability"
)

const (
	// SessionCookieName is the portal's session cookie.
	SessionCookieName = "_yatri_session"

	defaultUserAgent      = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	defaultRequestTimeout = 30 * time.Second
	maxBodyBytes          = 4 << 20
	breakerName           = "portal"
)

// CookieStore persists session cookies between runs.
type CookieStore interface {
	// Load returns nil cookies and no error when nothing is stored.
	Load(ctx context.Context, key string) ([]*http.Cookie, error)
	Save(ctx context.Context, key string, cookies []*http.Cookie) error
}

// Config configures a portal session.
type Config struct {
	Username string
	Password string
	// StepInterval paces consecutive portal requests. Zero disables pacing.
	StepInterval   time.Duration
	Breaker        BreakerConfig
	UserAgent      string
	RequestTimeout time.Duration
}

// Session is a cookie-jar HTTP session against the portal. It implements
// application.SessionProvider. Requests are paced by a rate limiter and
// guarded by a circuit breaker.
type Session struct {
	routes  *Routes
	config  Config
	root    *url.URL
	jar     http.CookieJar
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[*response]
	metrics observability.Metrics
	logger  *slog.Logger

	store    CookieStore
	storeKey string

	mu sync.Mutex
}

var _ application.SessionProvider = (*Session)(nil)

// NewSession creates a session with an empty cookie jar.
func NewSession(routes *Routes, config Config, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if config.UserAgent == "" {
		config.UserAgent = defaultUserAgent
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = defaultRequestTimeout
	}

	root, err := url.Parse(routes.Root() + "/")
	if err != nil {
		return nil, fmt.Errorf("parse portal root: %w", err)
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	limit := rate.Inf
	if config.StepInterval > 0 {
		limit = rate.Every(config.StepInterval)
	}

	s := &Session{
		routes:  routes,
		config:  config,
		root:    root,
		jar:     jar,
		client:  &http.Client{Jar: jar, Timeout: config.RequestTimeout},
		limiter: rate.NewLimiter(limit, 1),
		metrics: observability.NoopMetrics{},
		logger:  logger,
	}
	s.breaker = newBreaker(breakerName, config.Breaker, logger, func(to gobreaker.State) {
		s.metrics.Gauge(observability.MetricBreakerState, float64(to), observability.T("breaker", breakerName))
	})
	return s, nil
}

// WithMetrics sets the metrics sink.
func (s *Session) WithMetrics(metrics observability.Metrics) *Session {
	if metrics != nil {
		s.metrics = metrics
	}
	return s
}

// WithCookieStore persists cookies under key after every successful login.
func (s *Session) WithCookieStore(store CookieStore, key string) *Session {
	s.store = store
	s.storeKey = key
	return s
}

// BreakerState returns the current circuit breaker state.
func (s *Session) BreakerState() gobreaker.State {
	return s.breaker.State()
}

// Login fetches the sign-in form and posts the credentials with the form's
// CSRF token. Whether the session is usable is decided by the caller's probe.
func (s *Session) Login(ctx context.Context) error {
	signIn := s.routes.SignInURL()

	page, err := s.fetch(ctx, http.MethodGet, signIn, nil, nil)
	if err != nil {
		return fmt.Errorf("load sign-in page: %w", err)
	}
	if !isSuccess(page.status) {
		return responseError(signIn, page)
	}
	form, err := parseFormPage(page.body)
	if err != nil {
		return fmt.Errorf("parse sign-in page: %w", err)
	}

	values := form.hidden
	values.Set("user[email]", s.config.Username)
	values.Set("user[password]", s.config.Password)
	values.Set("policy_confirmed", "1")
	values.Set("commit", "Sign In")

	target, err := resolveAction(signIn, form.action)
	if err != nil {
		return err
	}
	header := http.Header{}
	header.Set("Referer", signIn)
	header.Set("X-Requested-With", "XMLHttpRequest")
	header.Set("Accept", "*/*;q=0.5, text/javascript, application/javascript")
	if form.csrfToken != "" {
		header.Set("X-CSRF-Token", form.csrfToken)
	}

	resp, err := s.fetch(ctx, http.MethodPost, target, values, header)
	if err != nil {
		return fmt.Errorf("submit sign-in: %w", err)
	}
	if !isSuccess(resp.status) {
		return responseError(target, resp)
	}

	s.logger.InfoContext(ctx, "portal sign-in submitted", "session_cookie", s.HasSessionCookie())
	s.saveCookies(ctx)
	return nil
}

// Get returns the body of u. Any HTTP status is accepted.
func (s *Session) Get(ctx context.Context, u string) ([]byte, error) {
	resp, err := s.fetch(ctx, http.MethodGet, u, nil, nil)
	if err != nil {
		return nil, err
	}
	return resp.body, nil
}

// GetJSON fetches u as an XHR and decodes the body into v.
func (s *Session) GetJSON(ctx context.Context, u string, v any) error {
	header := http.Header{}
	header.Set("Accept", "application/json, text/javascript, */*; q=0.01")
	header.Set("X-Requested-With", "XMLHttpRequest")

	resp, err := s.fetch(ctx, http.MethodGet, u, nil, header)
	if err != nil {
		return err
	}
	if !isSuccess(resp.status) {
		return responseError(u, resp)
	}
	if err := json.Unmarshal(resp.body, v); err != nil {
		return fmt.Errorf("decode %s: %w", u, err)
	}
	return nil
}

// SubmitForm loads the form page at u, keeps its hidden inputs, overlays
// fields and posts the result. The response body is returned for any status.
func (s *Session) SubmitForm(ctx context.Context, u string, fields url.Values) ([]byte, error) {
	page, err := s.fetch(ctx, http.MethodGet, u, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("load form: %w", err)
	}
	if !isSuccess(page.status) {
		return nil, responseError(u, page)
	}
	form, err := parseFormPage(page.body)
	if err != nil {
		return nil, fmt.Errorf("parse form: %w", err)
	}

	values := form.hidden
	for key, vs := range fields {
		values[key] = vs
	}
	target, err := resolveAction(u, form.action)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("Referer", u)
	if form.csrfToken != "" {
		header.Set("X-CSRF-Token", form.csrfToken)
	}
	resp, err := s.fetch(ctx, http.MethodPost, target, values, header)
	if err != nil {
		return nil, err
	}
	return resp.body, nil
}

// Cookies returns the cookies the jar would send to the portal.
func (s *Session) Cookies() []*http.Cookie {
	return s.jar.Cookies(s.root)
}

// SetCookies seeds the jar, for example with cookies from a previous run.
func (s *Session) SetCookies(cookies []*http.Cookie) {
	s.jar.SetCookies(s.root, cookies)
}

// HasSessionCookie reports whether the portal session cookie is present.
func (s *Session) HasSessionCookie() bool {
	for _, c := range s.Cookies() {
		if c.Name == SessionCookieName {
			return true
		}
	}
	return false
}

// RestoreCookies loads stored cookies into the jar. It reports whether any were found.
func (s *Session) RestoreCookies(ctx context.Context) (bool, error) {
	if s.store == nil {
		return false, nil
	}
	cookies, err := s.store.Load(ctx, s.storeKey)
	if err != nil {
		return false, fmt.Errorf("load cookies: %w", err)
	}
	if len(cookies) == 0 {
		return false, nil
	}
	s.SetCookies(cookies)
	s.logger.InfoContext(ctx, "restored portal cookies", "count", len(cookies))
	return true, nil
}

func (s *Session) saveCookies(ctx context.Context) {
	if s.store == nil {
		return
	}
	if err := s.store.Save(ctx, s.storeKey, s.Cookies()); err != nil {
		s.logger.WarnContext(ctx, "failed to persist portal cookies", "error", err)
	}
}

// fetch performs one paced, breaker-guarded request. A 5xx response is
// returned together with a nil error once the breaker has counted it.
func (s *Session) fetch(ctx context.Context, method, u string, form url.Values, header http.Header) (*response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for key, vs := range header {
		req.Header[key] = vs
	}
	req.Header.Set("User-Agent", s.config.UserAgent)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	}

	start := time.Now()
	resp, err := s.breaker.Execute(func() (*response, error) {
		httpResp, err := s.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer httpResp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		r := &response{status: httpResp.StatusCode, header: httpResp.Header, body: data}
		if httpResp.StatusCode >= http.StatusInternalServerError {
			return r, &serverError{status: httpResp.StatusCode}
		}
		return r, nil
	})

	status := "error"
	if resp != nil {
		status = strconv.Itoa(resp.status)
	}
	s.metrics.Timing(observability.MetricPortalDuration, time.Since(start), observability.T("method", method))
	s.metrics.Counter(observability.MetricPortalRequests, 1,
		observability.T("method", method), observability.T("status", status))

	var se *serverError
	if errors.As(err, &se) && resp != nil {
		s.logger.WarnContext(ctx, "portal server error", "method", method, "status", se.status)
		return resp, nil
	}
	if err != nil {
		return nil, mapBreakerError(breakerName, err)
	}
	return resp, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func resolveAction(pageURL, action string) (string, error) {
	if action == "" {
		return pageURL, nil
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parse page url: %w", err)
	}
	ref, err := url.Parse(action)
	if err != nil {
		return "", fmt.Errorf("parse form action: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}

func responseError(u string, resp *response) error {
	body := strings.TrimSpace(string(resp.body))
	if len(body) > 200 {
		body = body[:200]
	}
	return fmt.Errorf("portal %s returned %d: %s", u, resp.status, body)
}
