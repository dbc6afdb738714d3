package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/pflag"

	"github.com/chatpulse/chatpulse-cli/internal/api"
	"github.com/chatpulse/chatpulse-cli/internal/config"
	"github.com/chatpulse/chatpulse-cli/internal/resolve"
)

const (
	exitOK          = 0
	exitGeneric     = 1
	exitUsage       = 2
	exitAuth        = 3
	exitNotFound    = 4
	exitForbidden   = 5
	exitRateLimited = 6
	exitServer      = 7
	exitNetwork     = 8
)

// ExitCode maps an error to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return exitOK
	}
	if errors.Is(err, pflag.ErrHelp) {
		return exitOK
	}
	if handled, ok := err.(*handledError); ok {
		if handled.exitCode != 0 {
			return handled.exitCode
		}
		err = handled.err
	}

	if code := exitCodeFromTyped(err); code != 0 {
		return code
	}
	if isUsageError(err) {
		return exitUsage
	}
	if isNetworkError(err) {
		return exitNetwork
	}
	return exitGeneric
}

func exitCodeFromTyped(err error) int {
	var (
		authErr      *api.AuthError
		rateErr      *api.RateLimitError
		breakerErr   *api.CircuitBreakerError
		apiErr       *api.APIError
		ambiguousErr *resolve.AmbiguousError
	)
	switch {
	case errors.Is(err, config.ErrNotConfigured), errors.As(err, &authErr):
		return exitAuth
	case errors.As(err, &rateErr):
		return exitRateLimited
	case errors.As(err, &breakerErr):
		return exitServer
	case errors.As(err, &ambiguousErr):
		return exitUsage
	case errors.As(err, &apiErr):
		switch {
		case apiErr.StatusCode == http.StatusNotFound:
			return exitNotFound
		case apiErr.StatusCode == http.StatusForbidden:
			return exitForbidden
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return exitRateLimited
		case apiErr.StatusCode >= 500:
			return exitServer
		case apiErr.StatusCode >= 400:
			return exitUsage
		}
	}
	return 0
}

func isNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "certificate") ||
		strings.Contains(msg, "i/o timeout")
}

func isUsageError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	indicators := []string{
		"unknown command",
		"unknown flag",
		"unknown shorthand flag",
		"flag needs an argument",
		"requires at least",
		"accepts ",
		"invalid argument",
		"invalid conversation",
		"invalid time",
		"no conversation matches",
		"must be",
		"is required",
	}
	for _, indicator := range indicators {
		if strings.Contains(msg, indicator) {
			return true
		}
	}
	return false
}
