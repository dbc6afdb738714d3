package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := New(srv.URL, "session=abc")
	c.RetryConfig.RateLimitBaseDelay = 0
	c.RetryConfig.ServerErrorRetryDelay = 0
	return c
}

func TestNewTrimsBaseURL(t *testing.T) {
	c := New("http://chat.local:5000/", "")
	assert.Equal(t, "http://chat.local:5000", c.BaseURL)
	assert.Equal(t, "http://chat.local:5000/search?q=hi+there", c.endpoint("search", map[string][]string{"q": {"hi there"}}))
}

func TestGetSendsCookie(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "session=abc", r.Header.Get("Cookie"))
		_, _ = w.Write([]byte(`[]`))
	})
	_, err := c.UsersStatus(context.Background())
	require.NoError(t, err)
}

func TestRetriesOn429(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	})
	c.RetryConfig.MaxRateLimitRetries = 1

	_, err := c.Groups(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestRateLimitExhausted(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	})
	c.RetryConfig.MaxRateLimitRetries = 1

	_, err := c.Groups(context.Background())
	assert.True(t, IsRateLimitError(err), "got %v", err)
}

func TestServerErrorRetriedOnceForGet(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"chats":0,"groups":0}`))
	})

	_, err := c.UnreadCounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestServerErrorNotRetriedForLogin(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	})

	_, err := c.Login(context.Background(), "alice", "pw")
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "boom", apiErr.Body)
}

func TestCircuitBreakerOpensAfterFailures(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	c.SetRetryConfig(RetryConfig{Max5xxRetries: 0, CircuitBreakerThreshold: 2, CircuitBreakerResetTime: time.Minute})

	for i := 0; i < 2; i++ {
		_, err := c.Groups(context.Background())
		require.Error(t, err)
		assert.False(t, IsCircuitBreakerError(err))
	}
	_, err := c.Groups(context.Background())
	assert.True(t, IsCircuitBreakerError(err), "got %v", err)

	c.ResetCircuitBreaker()
	_, err = c.Groups(context.Background())
	assert.False(t, IsCircuitBreakerError(err))
}

func TestRedirectToLoginIsAuthError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/login", http.StatusFound)
	})

	_, err := c.UsersStatus(context.Background())
	assert.True(t, IsAuthError(err), "got %v", err)
}

func TestUnauthorizedIsAuthError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"Not logged in"}`))
	})

	_, err := c.UnreadCounts(context.Background())
	var authErr *AuthError
	require.True(t, errors.As(err, &authErr), "got %v", err)
	assert.Equal(t, "Not logged in", authErr.Reason)
}

func TestNotFoundCarriesContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-Id", "req-9")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`<html>secret</html>`))
	})

	_, err := c.Groups(context.Background())
	assert.True(t, IsNotFoundError(err))

	var ctxErr *ContextualError
	require.True(t, errors.As(err, &ctxErr))
	assert.Equal(t, "/api/groups", ctxErr.Path)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "req-9", apiErr.RequestID)
	assert.NotContains(t, apiErr.Body, "secret")
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "API error (status 404): gone", (&APIError{StatusCode: 404, Body: "gone"}).Error())
	assert.Equal(t, "rate limit exceeded, retry after 30s", (&RateLimitError{RetryAfter: 30 * time.Second}).Error())
	assert.Equal(t, "authentication error: expired", (&AuthError{Reason: "expired"}).Error())
	assert.Equal(t, "circuit breaker is open, too many recent failures", (&CircuitBreakerError{}).Error())

	inner := errors.New("inner")
	wrapped := WrapError("GET", "/x", 500, inner)
	assert.ErrorIs(t, wrapped, inner)
	assert.Equal(t, "GET /x failed (status 500): inner", wrapped.Error())
}
