package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/chatpulse/chatpulse-cli/internal/api"
	"github.com/chatpulse/chatpulse-cli/internal/cache"
	"github.com/chatpulse/chatpulse-cli/internal/config"
	"github.com/chatpulse/chatpulse-cli/internal/convstate"
	"github.com/chatpulse/chatpulse-cli/internal/natspush"
	"github.com/chatpulse/chatpulse-cli/internal/realtime"
	"github.com/chatpulse/chatpulse-cli/internal/redisunread"
	"github.com/chatpulse/chatpulse-cli/internal/session"
)

const directoryCacheKey = "directory"

type clientFactory struct {
	timeout      time.Duration
	userAgent    string
	profile      string
	settingsPath string
}

func newClientFactory() *clientFactory {
	return &clientFactory{
		timeout:      flags.Timeout,
		userAgent:    fmt.Sprintf("chatpulse-cli/%s", version),
		profile:      strings.TrimSpace(flags.Profile),
		settingsPath: flags.Settings,
	}
}

// account resolves credentials: --profile first, then config.LoadAccount's
// env-then-keyring order.
func (f *clientFactory) account() (config.Account, error) {
	if f.profile != "" {
		return config.LoadProfile(f.profile)
	}
	return config.LoadAccount()
}

func (f *clientFactory) newClient(baseURL, cookie string) *api.Client {
	client := api.New(baseURL, cookie)
	if f.timeout > 0 {
		client.HTTP.Timeout = f.timeout
	}
	if f.userAgent != "" {
		client.UserAgent = f.userAgent
	}
	return client
}

// getClient creates an API client from stored credentials
func getClient() (*api.Client, config.Account, error) {
	f := newClientFactory()
	acct, err := f.account()
	if err != nil {
		return nil, config.Account{}, err
	}
	return f.newClient(acct.BaseURL, acct.SessionCookie), acct, nil
}

func (f *clientFactory) settings() (config.Settings, error) {
	return config.LoadSettings(f.settingsPath)
}

func resolveCacheDir() string {
	if dir := os.Getenv("CHATPULSE_CACHE_DIR"); dir != "" {
		return dir
	}
	dir, err := cache.DefaultDir()
	if err != nil {
		return ""
	}
	return dir
}

// sessionOptions selects the collaborators of a session.
type sessionOptions struct {
	push   bool // connect a push transport
	logger *slog.Logger
}

// sessionParts is a session's Config and Deps plus a cleanup for
// resources the Deps hold open.
type sessionParts struct {
	cfg     session.Config
	deps    session.Deps
	cleanup func()
}

// sessionDeps wires the API client, the configured push transport and
// unread source, and the directory cache into session Deps.
func (f *clientFactory) sessionDeps(acct config.Account, client *api.Client, st config.Settings, opts sessionOptions) sessionParts {
	logger := opts.logger
	if logger == nil {
		logger = slog.Default()
	}
	parts := sessionParts{
		cfg: session.Config{
			Username:     acct.Username,
			PollInterval: st.PollInterval,
			MinBackoff:   st.Reconnect.MinBackoff,
			MaxBackoff:   st.Reconnect.MaxBackoff,
			FuzzySearch:  st.FuzzySearch,
		},
		deps: session.Deps{
			Unread:    client,
			Reads:     client,
			Directory: client,
			Searcher:  client,
			Logger:    logger,
		},
		cleanup: func() {},
	}

	if st.UnreadSource == config.UnreadRedis {
		rdb := redisunread.NewClient(redisunread.Options{
			Addr:     st.Redis.Addr,
			Password: st.Redis.Password,
			DB:       st.Redis.DB,
		})
		store := redisunread.New(rdb, acct.Username)
		parts.deps.Unread = store
		parts.deps.Reads = readMarkers{client, store}
		parts.cleanup = func() { _ = rdb.Close() }
	}

	if opts.push {
		switch st.Transport {
		case config.TransportNATS:
			parts.deps.Push = &natspush.Source{
				URL:           st.NATS.URL,
				Name:          "chatpulse-" + acct.Username,
				MaxReconnects: st.NATS.MaxReconnects,
				ReconnectWait: st.NATS.ReconnectWait,
				Logger:        logger,
			}
		default:
			parts.deps.Push = &realtime.Source{
				URL:               realtime.URLFromBase(acct.BaseURL),
				Cookie:            acct.SessionCookie,
				PingTimeout:       st.PingTimeout,
				HeartbeatInterval: st.HeartbeatInterval,
				Logger:            logger,
			}
		}
	}

	if dir := resolveCacheDir(); dir != "" {
		parts.deps.Cache = cache.NewStore(dir, directoryCacheKey, acct.BaseURL, acct.Username, st.DirectoryTTL)
	}
	return parts
}

// readMarkers marks a conversation read with each marker in order and
// joins their failures.
type readMarkers []session.ReadMarker

func (m readMarkers) MarkRead(ctx context.Context, id convstate.ID) error {
	var errs []error
	for _, marker := range m {
		if err := marker.MarkRead(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
