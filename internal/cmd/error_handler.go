package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chatpulse/chatpulse-cli/internal/api"
	"github.com/chatpulse/chatpulse-cli/internal/config"
	"github.com/chatpulse/chatpulse-cli/internal/resolve"
)

// HandleError processes an error and returns a user-friendly message with suggestions
func HandleError(err error) string {
	if err == nil {
		return ""
	}

	var msg strings.Builder

	var apiErr *api.APIError
	var rateLimitErr *api.RateLimitError
	var circuitBreakerErr *api.CircuitBreakerError
	var authErr *api.AuthError
	var ambiguousErr *resolve.AmbiguousError

	switch {
	case errors.Is(err, config.ErrNotConfigured):
		msg.WriteString("Not authenticated.\n\n")
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Run: chatpulse auth login --url <server> --username <name>\n")
		msg.WriteString("  - Or set CHATPULSE_BASE_URL, CHATPULSE_USERNAME and CHATPULSE_SESSION\n")

	case errors.As(err, &rateLimitErr):
		msg.WriteString("Rate limit exceeded.\n\n")
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Wait a few seconds and retry\n")
		msg.WriteString("  - Raise poll_interval in settings.yaml\n")

	case errors.As(err, &circuitBreakerErr):
		msg.WriteString("Service temporarily unavailable (circuit breaker open).\n\n")
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - The server has had multiple failures recently\n")
		msg.WriteString("  - Wait 30 seconds and retry\n")
		msg.WriteString("  - Check if the chat server is healthy\n")

	case errors.As(err, &authErr):
		fmt.Fprintf(&msg, "Authentication failed: %s\n\n", authErr.Reason)
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Run: chatpulse auth login\n")
		msg.WriteString("  - Your session cookie may have expired\n")

	case errors.As(err, &ambiguousErr):
		fmt.Fprintf(&msg, "%s\n\n", ambiguousErr.Error())
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Use the exact username or group-<id>\n")

	case errors.As(err, &apiErr):
		fmt.Fprintf(&msg, "API error (HTTP %d): %s\n\n", apiErr.StatusCode, apiErr.Body)
		msg.WriteString(suggestionsForStatusCode(apiErr.StatusCode))
		if apiErr.RequestID != "" {
			fmt.Fprintf(&msg, "\nRequest ID: %s\n", apiErr.RequestID)
		}

	case strings.Contains(err.Error(), "connection refused"):
		msg.WriteString("Connection refused.\n\n")
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Check if the chat server is running\n")
		msg.WriteString("  - Verify the URL: chatpulse auth status\n")

	case strings.Contains(err.Error(), "no such host"):
		msg.WriteString("DNS resolution failed.\n\n")
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Check the server URL spelling\n")
		msg.WriteString("  - Verify your DNS settings\n")

	case strings.Contains(err.Error(), "certificate"):
		msg.WriteString("TLS certificate error.\n\n")
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Verify the server's certificate\n")
		msg.WriteString("  - Ensure you're using https:// correctly\n")

	default:
		fmt.Fprintf(&msg, "Error: %s\n", err.Error())
	}

	return msg.String()
}

func suggestionsForStatusCode(code int) string {
	var suggestions strings.Builder
	suggestions.WriteString("Suggestions:\n")

	switch code {
	case 400:
		suggestions.WriteString("  - Check your arguments\n")
		suggestions.WriteString("  - Use --debug to see the request\n")

	case 404:
		suggestions.WriteString("  - The conversation or endpoint doesn't exist\n")
		suggestions.WriteString("  - Check the server version supports this command\n")

	case 429:
		suggestions.WriteString("  - Too many requests\n")
		suggestions.WriteString("  - Wait and retry in a few seconds\n")

	case 500, 502, 503, 504:
		suggestions.WriteString("  - Server error - not your fault\n")
		suggestions.WriteString("  - Wait and retry\n")

	default:
		suggestions.WriteString("  - Use --debug for more details\n")
	}

	return suggestions.String()
}
