package config

import (
	"errors"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withMockKeyring(t *testing.T) *keyring.ArrayKeyring {
	t.Helper()
	ring := keyring.NewArrayKeyring(nil)
	t.Cleanup(SetOpenKeyring(func(keyring.Config) (keyring.Keyring, error) {
		return ring, nil
	}))
	return ring
}

func clearAccountEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvBaseURL, EnvUsername, EnvSession, EnvProfile} {
		t.Setenv(key, "")
	}
}

func testAccount(user string) Account {
	return Account{BaseURL: "http://chat.local:5000", Username: user, SessionCookie: "session=" + user}
}

func TestSaveAndLoadProfile(t *testing.T) {
	withMockKeyring(t)
	clearAccountEnv(t)

	require.NoError(t, SaveProfile("work", Account{BaseURL: "http://chat.local:5000/", Username: "alice", SessionCookie: "session=x"}))

	got, err := LoadAccount()
	require.NoError(t, err)
	assert.Equal(t, "http://chat.local:5000", got.BaseURL)
	assert.Equal(t, "alice", got.Username)

	current, err := CurrentProfile()
	require.NoError(t, err)
	assert.Equal(t, "work", current)
}

func TestLoadAccountNotConfigured(t *testing.T) {
	withMockKeyring(t)
	clearAccountEnv(t)

	_, err := LoadAccount()
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestLoadAccountFromEnv(t *testing.T) {
	withMockKeyring(t)
	clearAccountEnv(t)
	t.Setenv(EnvBaseURL, "https://chat.example.com/")
	t.Setenv(EnvUsername, "bob")
	t.Setenv(EnvSession, "session=tok")

	got, err := LoadAccount()
	require.NoError(t, err)
	assert.Equal(t, Account{BaseURL: "https://chat.example.com", Username: "bob", SessionCookie: "session=tok"}, got)

	t.Setenv(EnvSession, "")
	_, err = LoadAccount()
	assert.Error(t, err)
}

func TestLoadAccountProfileEnv(t *testing.T) {
	withMockKeyring(t)
	clearAccountEnv(t)
	require.NoError(t, SaveProfile("a", testAccount("alice")))
	require.NoError(t, SaveProfile("b", testAccount("bob")))

	t.Setenv(EnvProfile, "a")
	got, err := LoadAccount()
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
}

func TestDeleteProfileMovesCurrent(t *testing.T) {
	withMockKeyring(t)
	clearAccountEnv(t)
	require.NoError(t, SaveProfile("a", testAccount("alice")))
	require.NoError(t, SaveProfile("b", testAccount("bob")))

	require.NoError(t, DeleteProfile("b"))

	profiles, err := ListProfiles()
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, profiles)

	current, err := CurrentProfile()
	require.NoError(t, err)
	assert.Equal(t, "a", current)

	require.NoError(t, DeleteProfile("missing"))
}

func TestSaveProfileValidates(t *testing.T) {
	withMockKeyring(t)

	assert.Error(t, SaveProfile("x", Account{BaseURL: "ftp://chat", Username: "a", SessionCookie: "s=1"}))
	assert.Error(t, SaveProfile("x", Account{BaseURL: "http://chat", SessionCookie: "s=1"}))
	assert.Error(t, SaveProfile("x", Account{BaseURL: "http://chat", Username: "a"}))
}

func TestKeyringOpenFailure(t *testing.T) {
	boom := errors.New("locked")
	t.Cleanup(SetOpenKeyring(func(keyring.Config) (keyring.Keyring, error) { return nil, boom }))
	clearAccountEnv(t)

	_, err := LoadAccount()
	assert.ErrorIs(t, err, boom)
}

func TestValidateBaseURL(t *testing.T) {
	for _, ok := range []string{"http://localhost:5000", "https://chat.example.com", "http://10.0.0.4/app"} {
		assert.NoError(t, ValidateBaseURL(ok), ok)
	}
	for _, bad := range []string{"", "chat.example.com", "ws://x", "http://", "http://x/?a=1"} {
		assert.Error(t, ValidateBaseURL(bad), bad)
	}
}

func TestShouldForceFileBackend(t *testing.T) {
	assert.True(t, shouldForceFileBackend("linux", keyringBackendAuto, ""))
	assert.False(t, shouldForceFileBackend("linux", keyringBackendAuto, "unix:path=/run/bus"))
	assert.False(t, shouldForceFileBackend("darwin", keyringBackendAuto, ""))
	assert.True(t, shouldForceFileBackend("darwin", keyringBackendFile, ""))
	assert.False(t, shouldForceFileBackend("linux", keyringBackendSystem, ""))
}

func TestKeyringFilePasswordFromEnv(t *testing.T) {
	t.Setenv(envKeyringPassword, "hunter2")
	pw, err := keyringFilePassword("prompt")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", pw)

	t.Setenv(envKeyringPassword, "")
	orig := stdinHasTTY
	stdinHasTTY = func() bool { return false }
	t.Cleanup(func() { stdinHasTTY = orig })
	_, err = keyringFilePassword("prompt")
	assert.Error(t, err)
}
