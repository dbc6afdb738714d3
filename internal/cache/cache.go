// Package cache keeps small JSON snapshots of server data on disk, scoped
// per resource, server URL, and user. Disable with CHATPULSE_NO_CACHE=1.
package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const DefaultTTL = 5 * time.Minute

type entry struct {
	CachedAt time.Time       `json:"cached_at"`
	Items    json.RawMessage `json:"items"`
}

// Store reads and writes one cache file.
type Store struct {
	path string
	ttl  time.Duration
	now  func() time.Time
}

// NewStore creates a Store for resource key on baseURL as username.
// ttl <= 0 means DefaultTTL.
func NewStore(dir, key, baseURL, username string, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	hash := sha1.Sum([]byte(strings.TrimSuffix(baseURL, "/") + "\x00" + username))
	name := sanitizeKey(key) + "_" + hex.EncodeToString(hash[:8]) + ".json"
	return &Store{path: filepath.Join(dir, name), ttl: ttl, now: time.Now}
}

// Path returns the cache file location.
func (s *Store) Path() string { return s.path }

// Get loads cached items into dst. It reports false on a miss: no file,
// expired, unreadable, or disabled.
func (s *Store) Get(dst any) bool {
	if disabled() {
		return false
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return false
	}
	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return false
	}
	if s.now().Sub(e.CachedAt) > s.ttl {
		return false
	}
	return json.Unmarshal(e.Items, dst) == nil
}

// Put writes items. Errors are ignored; the cache is best effort.
func (s *Store) Put(items any) {
	if disabled() {
		return
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return
	}
	data, err := json.Marshal(entry{CachedAt: s.now(), Items: raw})
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		_ = os.Remove(tmp)
		return
	}
	_ = os.Rename(tmp, s.path)
}

// Clear removes this cache file.
func (s *Store) Clear() {
	_ = os.Remove(s.path)
}

// ClearAll removes every cache file in dir, leaving unrelated files alone.
func ClearAll(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if !e.IsDir() && isCacheFilename(e.Name()) {
			_ = os.Remove(filepath.Join(dir, e.Name()))
		}
	}
}

// DefaultDir returns "$XDG_CACHE_HOME/chatpulse" or the platform equivalent.
func DefaultDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "chatpulse"), nil
}

func disabled() bool {
	return os.Getenv("CHATPULSE_NO_CACHE") != ""
}

func sanitizeKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return "cache"
	}
	return strings.NewReplacer("/", "-", "\\", "-", "_", "-").Replace(key)
}

// isCacheFilename matches "<key>_<16 hex>.json".
func isCacheFilename(name string) bool {
	base, ok := strings.CutSuffix(name, ".json")
	if !ok {
		return false
	}
	key, sum, ok := strings.Cut(base, "_")
	if !ok || key == "" || len(sum) != 16 {
		return false
	}
	_, err := hex.DecodeString(sum)
	return err == nil
}
