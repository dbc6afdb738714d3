// Package session runs one signed-in chat session: it feeds live push
// events, periodic unread polls, and local commands into a single
// convstate.Tracker and hands a fresh View to a Renderer after every change.
//
// The Tracker is owned by the dispatch loop goroutine. Everything else talks
// to it through Session's methods, which queue work onto that loop.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chatpulse/chatpulse-cli/internal/api"
	"github.com/chatpulse/chatpulse-cli/internal/cache"
	"github.com/chatpulse/chatpulse-cli/internal/convstate"
	"github.com/chatpulse/chatpulse-cli/internal/realtime"
)

const (
	DefaultPollInterval = 10 * time.Second
	DefaultMinBackoff   = time.Second
	DefaultMaxBackoff   = 30 * time.Second

	// A push connection that stayed up this long resets the backoff.
	backoffResetAfter = 60 * time.Second
)

// ErrClosed is returned by Session methods once Run has returned.
var ErrClosed = errors.New("session closed")

// PushSource delivers server push events for the given rooms until the
// channel closes or an Event carries an error.
type PushSource interface {
	Stream(ctx context.Context, rooms []string) (<-chan realtime.Event, error)
}

// UnreadSource returns the server's authoritative unread counts. A
// snapshot is complete: a conversation it leaves out has no unread messages.
type UnreadSource interface {
	FetchUnread(ctx context.Context) (convstate.PollSnapshot, error)
}

// ReadMarker persists "conversation read" on the server.
type ReadMarker interface {
	MarkRead(ctx context.Context, id convstate.ID) error
}

// Directory lists the users and groups visible to the signed-in user.
type Directory interface {
	UsersStatus(ctx context.Context) ([]api.UserStatus, error)
	Groups(ctx context.Context) ([]api.Group, error)
}

// Searcher finds conversations whose message content matches a query.
type Searcher interface {
	SearchMessages(ctx context.Context, q string) (*api.SearchResult, error)
}

// Renderer draws a View. A Render error stops the session.
type Renderer interface {
	Render(View) error
}

// Config tunes a Session.
type Config struct {
	Username     string
	PollInterval time.Duration // 0 means DefaultPollInterval
	MinBackoff   time.Duration // 0 means DefaultMinBackoff
	MaxBackoff   time.Duration // 0 means DefaultMaxBackoff
	FuzzySearch  bool
}

// Deps are the collaborators a Session drives. Any of them may be nil;
// the matching feature is then off.
type Deps struct {
	Push      PushSource
	Unread    UnreadSource
	Reads     ReadMarker
	Directory Directory
	Searcher  Searcher
	Renderer  Renderer
	Cache     *cache.Store // directory cache
	Clock     func() time.Time
	Logger    *slog.Logger
}

// Session is a running chat session. Create with New, start with Run.
type Session struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger
	now    func() time.Time

	cmds      chan command
	events    chan realtime.Event
	snapshots chan convstate.PollSnapshot
	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	mu           sync.Mutex
	pendingReads []convstate.ID

	state *loopState
}

// command runs on the dispatch loop; it reports whether the view changed.
type command func(*loopState) bool

// New creates a Session. It does not touch the network.
func New(cfg Config, deps Deps) *Session {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = DefaultMinBackoff
	}
	if cfg.MaxBackoff < cfg.MinBackoff {
		cfg.MaxBackoff = max(DefaultMaxBackoff, cfg.MinBackoff)
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	s := &Session{
		cfg:       cfg,
		deps:      deps,
		logger:    logger,
		now:       now,
		cmds:      make(chan command),
		events:    make(chan realtime.Event, 64),
		snapshots: make(chan convstate.PollSnapshot, 1),
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	s.state = newLoopState(cfg.Username, cfg.FuzzySearch, now, logger)
	return s
}

// Run seeds the directory and then runs the push pump, the poll scheduler,
// and the dispatch loop until ctx is cancelled or rendering fails. A
// cancelled ctx is not an error.
func (s *Session) Run(ctx context.Context) error {
	defer s.close()

	s.seedDirectory(ctx)

	g, ctx := errgroup.WithContext(ctx)
	if s.deps.Push != nil {
		rooms := s.state.rooms()
		g.Go(func() error { return s.pump(ctx, rooms) })
	}
	if s.deps.Unread != nil || s.deps.Reads != nil {
		g.Go(func() error { return s.poll(ctx) })
	}
	g.Go(func() error { return s.loop(ctx) })

	return g.Wait()
}

// Once seeds the directory, applies a single unread poll, and returns the
// resulting View filtered by query. It does not connect the push source and
// must not be used while Run is active.
func (s *Session) Once(ctx context.Context, query string) (View, error) {
	s.seedDirectory(ctx)
	if s.deps.Unread != nil {
		snap, err := s.deps.Unread.FetchUnread(ctx)
		if err != nil {
			return View{}, fmt.Errorf("fetch unread counts: %w", err)
		}
		s.state.applySnapshot(snap)
	}
	if query != "" {
		s.state.setSearch(query, s.searchServer(ctx, query))
	}
	return s.state.view(), nil
}

func (s *Session) close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// do queues cmd onto the dispatch loop.
func (s *Session) do(ctx context.Context, cmd command) error {
	select {
	case s.cmds <- cmd:
		return nil
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Focus marks id as the conversation the user is viewing. Its badge clears,
// the server is told it was read, and a poll follows.
func (s *Session) Focus(ctx context.Context, id convstate.ID) error {
	if !id.Valid() {
		return fmt.Errorf("invalid conversation %q", id.String())
	}
	return s.do(ctx, func(st *loopState) bool {
		st.focused = id
		st.tracker.MarkRead(id)
		s.requestMarkRead(id)
		return true
	})
}

// Blur clears the focused conversation.
func (s *Session) Blur(ctx context.Context) error {
	return s.do(ctx, func(st *loopState) bool {
		st.focused = convstate.ID{}
		return true
	})
}

// MarkRead clears the badge of id and tells the server.
func (s *Session) MarkRead(ctx context.Context, id convstate.ID) error {
	if !id.Valid() {
		return fmt.Errorf("invalid conversation %q", id.String())
	}
	return s.do(ctx, func(st *loopState) bool {
		st.tracker.MarkRead(id)
		s.requestMarkRead(id)
		return true
	})
}

// NotifySent records that the local user just sent a message to id at ts
// (unix millis; 0 means now).
func (s *Session) NotifySent(ctx context.Context, id convstate.ID, ts int64) error {
	if ts == 0 {
		ts = s.now().UnixMilli()
	}
	return s.do(ctx, func(st *loopState) bool {
		st.tracker.ApplyOptimisticSend(id, ts)
		return true
	})
}

// Search filters the view by query: names containing it, fuzzy name matches
// when enabled, and conversations whose messages match on the server. An
// empty query clears the filter.
func (s *Session) Search(ctx context.Context, query string) error {
	server := s.searchServer(ctx, query)
	return s.do(ctx, func(st *loopState) bool {
		st.setSearch(query, server)
		return true
	})
}

// View returns the current view.
func (s *Session) View(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	err := s.do(ctx, func(st *loopState) bool {
		reply <- st.view()
		return false
	})
	if err != nil {
		return View{}, err
	}
	return <-reply, nil
}

func (s *Session) searchServer(ctx context.Context, query string) []convstate.ID {
	if s.deps.Searcher == nil || query == "" {
		return nil
	}
	res, err := s.deps.Searcher.SearchMessages(ctx, query)
	if err != nil {
		s.logger.Warn("message search failed", "query", query, "error", err)
		return nil
	}
	return res.IDs()
}

// requestMarkRead queues id for the poll goroutine, which marks it read on
// the server before its next poll.
func (s *Session) requestMarkRead(id convstate.ID) {
	if s.deps.Reads == nil {
		s.requestPoll()
		return
	}
	s.mu.Lock()
	if !slices.Contains(s.pendingReads, id) {
		s.pendingReads = append(s.pendingReads, id)
	}
	s.mu.Unlock()
	s.requestPoll()
}

// requestPoll schedules a poll. Requests made while one is pending coalesce.
func (s *Session) requestPoll() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Session) takePendingReads() []convstate.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.pendingReads
	s.pendingReads = nil
	return ids
}

// loop is the only goroutine that touches the Tracker while Run is active.
func (s *Session) loop(ctx context.Context) error {
	if err := s.render(); err != nil {
		return err
	}
	for {
		var changed bool
		select {
		case <-ctx.Done():
			return nil
		case ev := <-s.events:
			changed = s.handleEvent(ev)
		case snap := <-s.snapshots:
			s.state.applySnapshot(snap)
			changed = true
		case cmd := <-s.cmds:
			changed = cmd(s.state)
		}
		if changed {
			if err := s.render(); err != nil {
				return err
			}
		}
	}
}

func (s *Session) render() error {
	if s.deps.Renderer == nil {
		return nil
	}
	if err := s.deps.Renderer.Render(s.state.view()); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	return nil
}
