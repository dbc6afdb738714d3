package cmd

import (
	"os"
	"testing"

	"github.com/99designs/keyring"

	"github.com/chatpulse/chatpulse-cli/internal/config"
)

func TestMain(m *testing.M) {
	// A shell CHATPULSE_OUTPUT=json must not leak into text assertions.
	_ = os.Setenv("CHATPULSE_OUTPUT", "text")
	// Never touch the user's real cache.
	_ = os.Setenv("CHATPULSE_NO_CACHE", "1")

	cleanup := config.SetOpenKeyring(func(cfg keyring.Config) (keyring.Keyring, error) {
		return keyring.NewArrayKeyring(nil), nil
	})
	code := m.Run()
	cleanup()
	os.Exit(code)
}
