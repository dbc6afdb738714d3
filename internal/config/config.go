// Package config stores chat server credentials in the OS keyring under
// named profiles and loads session tuning from an optional settings file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/99designs/keyring"
)

const (
	serviceName       = "chatpulse"
	defaultProfile    = "default"
	profilePrefix     = "profile:"
	profileIndexKey   = "profiles_index"
	currentProfileKey = "current_profile"

	EnvBaseURL  = "CHATPULSE_BASE_URL"
	EnvUsername = "CHATPULSE_USERNAME"
	EnvSession  = "CHATPULSE_SESSION"
	EnvProfile  = "CHATPULSE_PROFILE"

	envKeyringBackend  = "CHATPULSE_KEYRING_BACKEND"
	envKeyringPassword = "CHATPULSE_KEYRING_PASSWORD"
	envCredentialsDir  = "CHATPULSE_CREDENTIALS_DIR"

	keyringBackendAuto   = "auto"
	keyringBackendFile   = "file"
	keyringBackendSystem = "system"
)

// openKeyring can be replaced in tests.
var openKeyring = func(cfg keyring.Config) (keyring.Keyring, error) {
	return keyring.Open(cfg)
}

var userConfigDir = os.UserConfigDir

var stdinHasTTY = func() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

// SetOpenKeyring replaces the keyring opener and returns a restore func.
func SetOpenKeyring(fn func(keyring.Config) (keyring.Keyring, error)) func() {
	original := openKeyring
	openKeyring = fn
	return func() { openKeyring = original }
}

// Account holds the connection details for one chat server login.
type Account struct {
	BaseURL       string `json:"base_url"`
	Username      string `json:"username"`
	SessionCookie string `json:"session_cookie"`
}

// Validate checks that the account can be used to open a session.
func (a Account) Validate() error {
	if err := ValidateBaseURL(a.BaseURL); err != nil {
		return err
	}
	if strings.TrimSpace(a.Username) == "" {
		return errors.New("username is required")
	}
	if strings.TrimSpace(a.SessionCookie) == "" {
		return errors.New("session cookie is required")
	}
	return nil
}

// ErrNotConfigured is returned when no account is stored.
var ErrNotConfigured = errors.New("chatpulse not configured - run 'chatpulse auth login' first")

// ValidateBaseURL accepts absolute http(s) URLs without query or fragment.
func ValidateBaseURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid base URL %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid base URL %q: missing host", raw)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return fmt.Errorf("invalid base URL %q: query and fragment are not allowed", raw)
	}
	return nil
}

func keyringConfig() keyring.Config {
	cfg := keyring.Config{ServiceName: serviceName}

	backend := keyringBackendMode()
	if backend == keyringBackendSystem {
		return cfg
	}

	cfg.FileDir = keyringFileDir()
	cfg.FilePasswordFunc = keyringFilePassword

	// Without a D-Bus session there is no secret service to talk to.
	if shouldForceFileBackend(runtime.GOOS, backend, os.Getenv("DBUS_SESSION_BUS_ADDRESS")) {
		cfg.AllowedBackends = []keyring.BackendType{keyring.FileBackend}
	}
	return cfg
}

func keyringBackendMode() string {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(envKeyringBackend))) {
	case keyringBackendFile:
		return keyringBackendFile
	case keyringBackendSystem, "os", "native":
		return keyringBackendSystem
	default:
		return keyringBackendAuto
	}
}

func shouldForceFileBackend(goos, backend, dbusAddr string) bool {
	if backend == keyringBackendFile {
		return true
	}
	return backend == keyringBackendAuto && goos == "linux" && strings.TrimSpace(dbusAddr) == ""
}

// Dir returns the chatpulse configuration directory.
func Dir() string {
	if dir, err := userConfigDir(); err == nil && strings.TrimSpace(dir) != "" {
		return filepath.Join(dir, serviceName)
	}
	if home, err := os.UserHomeDir(); err == nil && strings.TrimSpace(home) != "" {
		return filepath.Join(home, ".config", serviceName)
	}
	return filepath.Join(os.TempDir(), serviceName)
}

func keyringFileDir() string {
	if base := strings.TrimSpace(os.Getenv(envCredentialsDir)); base != "" {
		return filepath.Join(base, "keyring")
	}
	return filepath.Join(Dir(), "keyring")
}

func keyringFilePassword(prompt string) (string, error) {
	if password := os.Getenv(envKeyringPassword); strings.TrimSpace(password) != "" {
		return password, nil
	}
	if !stdinHasTTY() {
		return "", fmt.Errorf("set %s when using file keyring in non-interactive environments", envKeyringPassword)
	}
	return keyring.TerminalPrompt(prompt)
}

func profileKey(name string) string {
	if name == "" {
		name = defaultProfile
	}
	return profilePrefix + name
}

func loadProfileIndex(ring keyring.Keyring) ([]string, error) {
	item, err := ring.Get(profileIndexKey)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to get profile index: %w", err)
	}
	var profiles []string
	if err := json.Unmarshal(item.Data, &profiles); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile index: %w", err)
	}
	return profiles, nil
}

func saveProfileIndex(ring keyring.Keyring, profiles []string) error {
	data, err := json.Marshal(normalizeProfiles(profiles))
	if err != nil {
		return fmt.Errorf("failed to marshal profile index: %w", err)
	}
	return ring.Set(keyring.Item{Key: profileIndexKey, Data: data})
}

func normalizeProfiles(profiles []string) []string {
	seen := make(map[string]struct{}, len(profiles))
	out := []string{}
	for _, p := range profiles {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// LoadAccount resolves the active account. Environment variables win over
// the keyring: CHATPULSE_BASE_URL, CHATPULSE_USERNAME and CHATPULSE_SESSION
// together, or CHATPULSE_PROFILE to pick a stored profile.
func LoadAccount() (Account, error) {
	if baseURL := strings.TrimSpace(os.Getenv(EnvBaseURL)); baseURL != "" {
		account := Account{
			BaseURL:       strings.TrimSuffix(baseURL, "/"),
			Username:      strings.TrimSpace(os.Getenv(EnvUsername)),
			SessionCookie: strings.TrimSpace(os.Getenv(EnvSession)),
		}
		if account.Username == "" || account.SessionCookie == "" {
			return Account{}, fmt.Errorf("environment variables %s, %s, and %s must all be set", EnvBaseURL, EnvUsername, EnvSession)
		}
		return account, nil
	}

	if profile := strings.TrimSpace(os.Getenv(EnvProfile)); profile != "" {
		return LoadProfile(profile)
	}

	current, err := CurrentProfile()
	if err != nil {
		return Account{}, err
	}
	return LoadProfile(current)
}

// SaveProfile stores account under profile and makes it current.
func SaveProfile(profile string, account Account) error {
	if profile == "" {
		profile = defaultProfile
	}
	account.BaseURL = strings.TrimSuffix(strings.TrimSpace(account.BaseURL), "/")
	if err := account.Validate(); err != nil {
		return err
	}

	ring, err := openKeyring(keyringConfig())
	if err != nil {
		return fmt.Errorf("failed to open keyring: %w", err)
	}

	data, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("failed to marshal account: %w", err)
	}
	if err := ring.Set(keyring.Item{Key: profileKey(profile), Data: data}); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}

	profiles, err := loadProfileIndex(ring)
	if err != nil {
		return err
	}
	if err := saveProfileIndex(ring, append(profiles, profile)); err != nil {
		return err
	}
	return setCurrentProfile(ring, profile)
}

// LoadProfile retrieves a stored profile.
func LoadProfile(profile string) (Account, error) {
	ring, err := openKeyring(keyringConfig())
	if err != nil {
		return Account{}, fmt.Errorf("failed to open keyring: %w", err)
	}

	item, err := ring.Get(profileKey(profile))
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return Account{}, ErrNotConfigured
		}
		return Account{}, fmt.Errorf("failed to get profile: %w", err)
	}

	var account Account
	if err := json.Unmarshal(item.Data, &account); err != nil {
		return Account{}, fmt.Errorf("failed to unmarshal profile: %w", err)
	}
	return account, nil
}

// DeleteProfile removes a stored profile. If it was current, the next
// remaining profile becomes current.
func DeleteProfile(profile string) error {
	if profile == "" {
		profile = defaultProfile
	}

	ring, err := openKeyring(keyringConfig())
	if err != nil {
		return fmt.Errorf("failed to open keyring: %w", err)
	}
	if err := ring.Remove(profileKey(profile)); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("failed to remove profile: %w", err)
	}

	profiles, err := loadProfileIndex(ring)
	if err != nil {
		return err
	}
	remaining := profiles[:0]
	for _, p := range profiles {
		if p != profile {
			remaining = append(remaining, p)
		}
	}
	if err := saveProfileIndex(ring, remaining); err != nil {
		return err
	}

	current, err := currentProfile(ring)
	if err == nil && current == profile {
		next := defaultProfile
		if len(remaining) > 0 {
			next = remaining[0]
		}
		return setCurrentProfile(ring, next)
	}
	return nil
}

// ListProfiles returns the stored profile names.
func ListProfiles() ([]string, error) {
	ring, err := openKeyring(keyringConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open keyring: %w", err)
	}
	return loadProfileIndex(ring)
}

// CurrentProfile returns the active profile name.
func CurrentProfile() (string, error) {
	ring, err := openKeyring(keyringConfig())
	if err != nil {
		return "", fmt.Errorf("failed to open keyring: %w", err)
	}
	return currentProfile(ring)
}

// SetCurrentProfile makes profile the active one.
func SetCurrentProfile(profile string) error {
	ring, err := openKeyring(keyringConfig())
	if err != nil {
		return fmt.Errorf("failed to open keyring: %w", err)
	}
	return setCurrentProfile(ring, profile)
}

func currentProfile(ring keyring.Keyring) (string, error) {
	item, err := ring.Get(currentProfileKey)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return defaultProfile, nil
		}
		return "", fmt.Errorf("failed to get current profile: %w", err)
	}
	return string(item.Data), nil
}

func setCurrentProfile(ring keyring.Keyring, profile string) error {
	if profile == "" {
		profile = defaultProfile
	}
	return ring.Set(keyring.Item{Key: currentProfileKey, Data: []byte(profile)})
}
