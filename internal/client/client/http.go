package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/dmitrijs2005/sirchcoins/internal/common"
	"github.com/dmitrijs2005/sirchcoins/internal/logging"
	"github.com/dmitrijs2005/sirchcoins/internal/validation"
)

const maxBodyBytes = 1 << 20

// HTTPClient implements Client against the backend's REST, auth and
// function gateways.
type HTTPClient struct {
	baseURL    *url.URL
	apiKey     string
	clientInfo string
	httpClient *http.Client
	limiter    *rate.Limiter
	validator  *validation.Validator
	logger     logging.Logger

	mu     sync.RWMutex
	tokens TokenSource
}

var _ Client = (*HTTPClient)(nil)

type Option func(*HTTPClient)

// WithHTTPClient replaces the default *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout of the default *http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) { c.httpClient.Timeout = d }
}

// WithRateLimit throttles function endpoint calls to perSecond with burst.
// A non-positive perSecond disables throttling.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *HTTPClient) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

func WithLogger(l logging.Logger) Option {
	return func(c *HTTPClient) { c.logger = l }
}

// WithClientInfo sets the X-Client-Info header value.
func WithClientInfo(info string) Option {
	return func(c *HTTPClient) { c.clientInfo = info }
}

// NewHTTPClient builds a client for the backend at baseURL authenticating
// the project with apiKey.
func NewHTTPClient(baseURL, apiKey string, opts ...Option) (*HTTPClient, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("backend url must be http(s): %q", baseURL)
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("api key is required")
	}

	c := &HTTPClient{
		baseURL:    u,
		apiKey:     apiKey,
		clientInfo: "sirchcoins-cli",
		httpClient: &http.Client{Timeout: 15 * time.Second},
		validator:  validation.Default,
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SetTokenSource installs the provider of access tokens. It is set after
// construction because the auth service itself depends on the client.
func (c *HTTPClient) SetTokenSource(ts TokenSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = ts
}

func (c *HTTPClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

type request struct {
	method         string
	path           string
	query          url.Values
	body           any
	authenticated  bool
	bearer         string
	function       bool
	idempotencyKey string
	headers        map[string]string
}

func (c *HTTPClient) accessToken(ctx context.Context) (string, error) {
	c.mu.RLock()
	ts := c.tokens
	c.mu.RUnlock()

	if ts == nil {
		return "", fmt.Errorf("%w: %w", ErrUnauthorized, common.ErrNotSignedIn)
	}
	tok, err := ts.AccessToken(ctx)
	if err != nil {
		if errors.Is(err, common.ErrNotSignedIn) {
			return "", fmt.Errorf("%w: %w", ErrUnauthorized, err)
		}
		return "", err
	}
	return tok, nil
}

// do sends r and decodes a 2xx JSON body into out (when out is non-nil).
func (c *HTTPClient) do(ctx context.Context, r request, out any) error {
	if r.function && c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	bearer := r.bearer
	if r.authenticated && bearer == "" {
		tok, err := c.accessToken(ctx)
		if err != nil {
			return err
		}
		bearer = tok
	}
	if bearer == "" {
		bearer = c.apiKey
	}

	u := c.baseURL.JoinPath(r.path)
	if len(r.query) > 0 {
		u.RawQuery = r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		payload, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u.String(), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(common.APIKeyHeaderName, c.apiKey)
	req.Header.Set(common.AuthorizationHeaderName, "Bearer "+bearer)
	req.Header.Set(common.ClientInfoHeaderName, c.clientInfo)
	if r.idempotencyKey != "" {
		req.Header.Set(common.IdempotencyKeyHeaderName, r.idempotencyKey)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		c.logger.Warn(ctx, "backend request failed", "method", r.method, "path", r.path, "error", err)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}

	c.logger.Debug(ctx, "backend request", "method", r.method, "path", r.path,
		"status", resp.StatusCode, "elapsed", time.Since(started))

	if resp.StatusCode >= 300 {
		return mapStatus(resp.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		if out != nil {
			return malformed("empty body for %s %s", r.method, r.path)
		}
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return malformed("decode %s %s: %v", r.method, r.path, err)
	}
	return nil
}

type errorBody struct {
	Error            any    `json:"error"`
	ErrorCode        string `json:"error_code"`
	Code             any    `json:"code"`
	ErrorDescription string `json:"error_description"`
	Message          string `json:"message"`
	Msg              string `json:"msg"`
}

// mapStatus turns a non-2xx response into a *RemoteError.
func mapStatus(status int, raw []byte) error {
	re := &RemoteError{StatusCode: status, Message: http.StatusText(status)}

	var eb errorBody
	if err := json.Unmarshal(raw, &eb); err == nil {
		re.Code = firstNonEmpty(eb.ErrorCode, stringValue(eb.Code), stringValue(eb.Error))
		if msg := firstNonEmpty(eb.ErrorDescription, eb.Message, eb.Msg); msg != "" {
			re.Message = msg
		}
	}
	return re
}

func stringValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return fmt.Sprintf("%.0f", x)
	default:
		return ""
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
