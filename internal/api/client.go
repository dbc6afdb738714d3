package api

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chatpulse/chatpulse-cli/internal/debug"
)

// DefaultTimeout bounds a single HTTP attempt.
const DefaultTimeout = 15 * time.Second

// Client talks to the chat server's HTTP endpoints using a browser-style
// session cookie.
//
// The circuit breaker tracks server failures across requests for the
// lifetime of the client. Call ResetCircuitBreaker when reusing a client
// after a known outage.
type Client struct {
	BaseURL     string
	Cookie      string // "name=value" session cookie
	HTTP        *http.Client
	UserAgent   string
	RetryConfig RetryConfig

	circuitBreaker *circuitBreaker
}

type request struct {
	method     string
	path       string
	query      url.Values
	form       url.Values
	idempotent bool
	redirectOK bool
}

type response struct {
	body   []byte
	header http.Header
	status int
}

// New creates a client for baseURL. cookie may be empty before login.
func New(baseURL, cookie string) *Client {
	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		base = &http.Transport{}
	}
	transport := base.Clone()
	if transport.TLSClientConfig == nil {
		transport.TLSClientConfig = &tls.Config{}
	} else {
		transport.TLSClientConfig = transport.TLSClientConfig.Clone()
	}
	transport.TLSClientConfig.MinVersion = tls.VersionTLS12

	retryCfg := DefaultRetryConfig()
	return &Client{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		Cookie:      cookie,
		RetryConfig: retryCfg,
		HTTP: &http.Client{
			Timeout:   DefaultTimeout,
			Transport: transport,
			// The server answers unauthenticated requests and successful
			// logins with redirects; both are interpreted here.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		circuitBreaker: &circuitBreaker{
			threshold: retryCfg.CircuitBreakerThreshold,
			resetTime: retryCfg.CircuitBreakerResetTime,
		},
	}
}

// ResetCircuitBreaker clears failure state and closes the circuit.
func (c *Client) ResetCircuitBreaker() {
	if c.circuitBreaker != nil {
		c.circuitBreaker.reset()
	}
}

// SetRetryConfig updates retries and aligns the circuit breaker.
func (c *Client) SetRetryConfig(cfg RetryConfig) {
	c.RetryConfig = cfg
	if c.circuitBreaker != nil {
		c.circuitBreaker.threshold = cfg.CircuitBreakerThreshold
		c.circuitBreaker.resetTime = cfg.CircuitBreakerResetTime
	}
}

func (c *Client) endpoint(path string, query url.Values) string {
	if path != "" && path[0] != '/' {
		path = "/" + path
	}
	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// getJSON performs a GET and decodes the JSON body into result.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, result any) error {
	resp, err := c.execute(ctx, request{method: http.MethodGet, path: path, query: query, idempotent: true})
	if err != nil {
		return err
	}
	return decodeJSON(resp.body, result)
}

func decodeJSON(body []byte, result any) error {
	if result == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("unexpected API response format (JSON decode failed): %w", err)
	}
	return nil
}

// execute performs a request with 429 backoff, 5xx retry for idempotent
// requests, and the circuit breaker.
func (c *Client) execute(ctx context.Context, r request) (*response, error) {
	if c.circuitBreaker != nil && c.circuitBreaker.isOpen() {
		return nil, &CircuitBreakerError{}
	}

	target := c.endpoint(r.path, r.query)
	var encoded string
	if r.form != nil {
		encoded = r.form.Encode()
	}

	var retries429, retries5xx int
	for attempt := 1; ; attempt++ {
		start := time.Now()
		var body io.Reader
		if r.form != nil {
			body = strings.NewReader(encoded)
		}
		req, err := http.NewRequestWithContext(ctx, r.method, target, body)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		if r.form != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
		req.Header.Set("Accept", "application/json")
		if c.Cookie != "" {
			req.Header.Set("Cookie", c.Cookie)
		}
		if c.UserAgent != "" {
			req.Header.Set("User-Agent", c.UserAgent)
		}

		resp, err := c.HTTP.Do(req)
		if err != nil {
			if debug.IsEnabled(ctx) {
				slog.Debug("request failed", "method", r.method, "path", r.path, "attempt", attempt, "error", err)
			}
			return nil, fmt.Errorf("request failed: %w", err)
		}
		respBody, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}
		if debug.IsEnabled(ctx) {
			slog.Debug("request complete", "method", r.method, "path", r.path, "status", resp.StatusCode, "attempt", attempt, "duration", time.Since(start))
		}
		out := &response{body: respBody, header: resp.Header, status: resp.StatusCode}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			retryAfter, hasRetryAfter := retryAfterDuration(resp.Header)
			delay := retryAfter
			if !hasRetryAfter {
				delay = c.RetryConfig.RateLimitBaseDelay * time.Duration(1<<retries429)
			}
			if !r.idempotent || retries429 >= c.RetryConfig.MaxRateLimitRetries {
				return nil, &RateLimitError{RetryAfter: delay}
			}
			slog.Info("rate limited, retrying", "delay", delay, "attempt", retries429+1)
			if err := sleepWithContext(ctx, delay); err != nil {
				return nil, err
			}
			retries429++
			continue

		case resp.StatusCode >= 500:
			if c.circuitBreaker != nil {
				c.circuitBreaker.recordFailure()
			}
			if r.idempotent && retries5xx < c.RetryConfig.Max5xxRetries {
				slog.Info("server error, retrying", "status", resp.StatusCode)
				if err := sleepWithContext(ctx, c.RetryConfig.ServerErrorRetryDelay); err != nil {
					return nil, err
				}
				retries5xx++
				continue
			}
			return nil, c.apiError(r, out)

		case resp.StatusCode >= 300 && resp.StatusCode < 400:
			if r.redirectOK {
				return out, nil
			}
			if strings.Contains(resp.Header.Get("Location"), "/login") {
				return nil, &AuthError{Reason: "session expired, run 'chatpulse auth login'"}
			}
			return nil, c.apiError(r, out)

		case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
			return nil, &AuthError{Reason: sanitizeErrorBody(respBody)}

		case resp.StatusCode >= 400:
			return nil, c.apiError(r, out)
		}

		if c.circuitBreaker != nil {
			c.circuitBreaker.recordSuccess()
		}
		return out, nil
	}
}

func (c *Client) apiError(r request, resp *response) error {
	return WrapError(r.method, r.path, resp.status, &APIError{
		StatusCode: resp.status,
		Body:       sanitizeErrorBody(resp.body),
		RequestID:  resp.header.Get("X-Request-Id"),
	})
}

// sanitizeErrorBody extracts the error message from a JSON body without
// echoing anything else the server sent.
func sanitizeErrorBody(body []byte) string {
	var errResp struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &errResp); err != nil {
		return "request failed (response body redacted)"
	}
	switch {
	case errResp.Error != "":
		return errResp.Error
	case errResp.Message != "":
		return errResp.Message
	default:
		return "request failed"
	}
}
