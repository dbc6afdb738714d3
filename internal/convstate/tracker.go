package convstate

import (
	"log/slog"
	"slices"
)

// FocusFunc reports whether a conversation is the one the user is viewing.
// It is supplied by the presentation layer and consulted on every incoming
// message.
type FocusFunc func(ID) bool

// PollSnapshot is an authoritative per-conversation unread count as reported
// by the server. It is a partial view: conversations it omits keep their
// current counts.
type PollSnapshot map[ID]int

// State is a read-only copy of one conversation's tracked state.
type State struct {
	ID             ID       `json:"id"`
	Kind           string   `json:"kind"`
	LastActivityAt int64    `json:"last_activity_at"` // unix millis, 0 = never active
	UnreadCount    int      `json:"unread_count"`
	UnreadSenders  []string `json:"unread_senders,omitempty"` // groups only
	MatchesFilter  bool     `json:"matches_filter,omitempty"`
	FirstSeen      uint64   `json:"-"`
}

type entry struct {
	lastActivityAt int64
	unread         int
	seq            uint64
	senders        []string
}

// Tracker is the single source of truth for conversation ordering and unread
// counts. It is not safe for concurrent use; one goroutine owns it.
type Tracker struct {
	entries   map[ID]*entry
	nextSeq   uint64
	isFocused FocusFunc
	logger    *slog.Logger
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets the logger used for dropped-input diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// New creates an empty Tracker. isFocused may be nil, in which case no
// conversation is ever considered focused.
func New(isFocused FocusFunc, opts ...Option) *Tracker {
	t := &Tracker{
		entries:   make(map[ID]*entry),
		isFocused: isFocused,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Reset discards all state. Used when the session ends.
func (t *Tracker) Reset() {
	t.entries = make(map[ID]*entry)
	t.nextSeq = 0
}

// Len returns the number of known conversations.
func (t *Tracker) Len() int { return len(t.entries) }

// lookup returns the entry for id, creating it on first reference.
func (t *Tracker) lookup(id ID) *entry {
	if e, ok := t.entries[id]; ok {
		return e
	}
	t.nextSeq++
	e := &entry{seq: t.nextSeq}
	t.entries[id] = e
	return e
}

func (t *Tracker) focused(id ID) bool {
	return t.isFocused != nil && t.isFocused(id)
}

// Touch records a reference to id (directory listing, UI selection) without
// changing its activity or unread count. It fixes the conversation's
// first-seen position if it was not known yet.
func (t *Tracker) Touch(id ID) {
	if !id.Valid() {
		return
	}
	t.lookup(id)
}

// ApplyIncomingMessage records a message delivered by the realtime channel.
// Recency moves forward to ts. The unread count grows by one unless the
// message is the local user's own or the conversation is focused. It returns
// the conversation's position in the current ordering, or -1 when the input
// was dropped as malformed.
func (t *Tracker) ApplyIncomingMessage(id ID, senderID string, ts int64, isSelf bool) int {
	if !id.Valid() || ts <= 0 {
		t.logger.Debug("dropping malformed incoming message", "conversation", id.String(), "ts", ts)
		return -1
	}
	e := t.lookup(id)
	e.lastActivityAt = max(e.lastActivityAt, ts)
	if !isSelf && !t.focused(id) {
		e.unread++
		if id.Kind == KindGroup && senderID != "" && !slices.Contains(e.senders, senderID) {
			e.senders = append(e.senders, senderID)
		}
	}
	return t.Position(id)
}

// ApplyOptimisticSend moves a conversation to ts when the local user sends a
// message, before the server acknowledges it. Unread counts are untouched.
// Like ApplyIncomingMessage it returns the new position, or -1 for
// malformed input.
func (t *Tracker) ApplyOptimisticSend(id ID, ts int64) int {
	if !id.Valid() || ts <= 0 {
		t.logger.Debug("dropping malformed optimistic send", "conversation", id.String(), "ts", ts)
		return -1
	}
	e := t.lookup(id)
	e.lastActivityAt = max(e.lastActivityAt, ts)
	return t.Position(id)
}

// MarkRead zeroes the unread count of id. Unknown conversations are created
// at zero.
func (t *Tracker) MarkRead(id ID) {
	if !id.Valid() {
		return
	}
	e := t.lookup(id)
	e.unread = 0
	e.senders = nil
}

// ApplyPollSnapshot overwrites the unread count of every conversation listed
// in snap. Unlisted conversations are untouched. Negative counts and invalid
// ids are skipped. Conversations first seen through a snapshot are registered
// in Kind then Key order so the first-seen tie-break stays deterministic.
func (t *Tracker) ApplyPollSnapshot(snap PollSnapshot) {
	ids := make([]ID, 0, len(snap))
	for id, n := range snap {
		if !id.Valid() || n < 0 {
			t.logger.Debug("dropping malformed poll entry", "conversation", id.String(), "count", n)
			continue
		}
		ids = append(ids, id)
	}
	slices.SortFunc(ids, compareIDs)

	for _, id := range ids {
		n := snap[id]
		e := t.lookup(id)
		if n == 0 {
			e.senders = nil
		}
		e.unread = n
	}
}

// State returns a copy of the tracked state for id.
func (t *Tracker) State(id ID) (State, bool) {
	e, ok := t.entries[id]
	if !ok {
		return State{}, false
	}
	return e.state(id), true
}

// UnreadCount returns the unread count of id, 0 if unknown.
func (t *Tracker) UnreadCount(id ID) int {
	if e, ok := t.entries[id]; ok {
		return e.unread
	}
	return 0
}

// LastActivityAt returns the last activity timestamp of id, 0 if unknown.
func (t *Tracker) LastActivityAt(id ID) int64 {
	if e, ok := t.entries[id]; ok {
		return e.lastActivityAt
	}
	return 0
}

func (e *entry) state(id ID) State {
	return State{
		ID:             id,
		Kind:           id.Kind.String(),
		LastActivityAt: e.lastActivityAt,
		UnreadCount:    e.unread,
		UnreadSenders:  slices.Clone(e.senders),
		FirstSeen:      e.seq,
	}
}

func compareIDs(a, b ID) int {
	if a.Kind != b.Kind {
		if a.Kind < b.Kind {
			return -1
		}
		return 1
	}
	switch {
	case a.Key < b.Key:
		return -1
	case a.Key > b.Key:
		return 1
	default:
		return 0
	}
}
