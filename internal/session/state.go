package session

import (
	"log/slog"
	"strings"
	"time"

	"github.com/chatpulse/chatpulse-cli/internal/api"
	"github.com/chatpulse/chatpulse-cli/internal/convstate"
	"github.com/chatpulse/chatpulse-cli/internal/resolve"
)

// loopState is everything the dispatch loop owns.
type loopState struct {
	self    string
	fuzzy   bool
	now     func() time.Time
	logger  *slog.Logger
	tracker *convstate.Tracker
	focused convstate.ID

	names  map[convstate.ID]string
	online map[string]bool
	groups []api.Group

	query         string
	serverMatches []convstate.ID
}

func newLoopState(self string, fuzzy bool, now func() time.Time, logger *slog.Logger) *loopState {
	st := &loopState{
		self:   self,
		fuzzy:  fuzzy,
		now:    now,
		logger: logger,
		names:  make(map[convstate.ID]string),
		online: make(map[string]bool),
	}
	st.tracker = convstate.New(func(id convstate.ID) bool {
		return st.focused.Valid() && id == st.focused
	}, convstate.WithLogger(logger))
	return st
}

// seed registers the directory in server order: users first, then groups.
// The local user never becomes a direct conversation.
func (st *loopState) seed(dir directorySnapshot) {
	for _, u := range dir.Users {
		if u.Username == "" || u.Username == st.self {
			continue
		}
		id := convstate.Direct(u.Username)
		st.names[id] = u.Username
		st.online[u.Username] = u.Online
		st.tracker.Touch(id)
	}
	st.groups = dir.Groups
	for _, g := range dir.Groups {
		id := g.ConversationID()
		if g.Name != "" {
			st.names[id] = g.Name
		}
		st.tracker.Touch(id)
	}
}

// rooms are the push rooms to join: the user's own room, then one per group.
func (st *loopState) rooms() []string {
	rooms := make([]string, 0, len(st.groups)+1)
	rooms = append(rooms, st.self)
	for _, g := range st.groups {
		rooms = append(rooms, g.ConversationID().String())
	}
	return rooms
}

func (st *loopState) selfID() convstate.ID {
	return convstate.Direct(st.self)
}

// applySnapshot applies a poll, minus any badge the server reports for a
// chat with ourselves. Sources only list conversations that have unread
// messages, so every known conversation missing from snap is reset to zero.
func (st *loopState) applySnapshot(snap convstate.PollSnapshot) {
	full := clonePoll(snap)
	if _, ok := full[st.selfID()]; ok {
		st.logger.Debug("ignoring unread count for own conversation", "user", st.self)
		delete(full, st.selfID())
	}
	for _, id := range st.tracker.OrderingSnapshot() {
		if _, ok := full[id]; !ok {
			full[id] = 0
		}
	}
	st.tracker.ApplyPollSnapshot(full)
}

func (st *loopState) applyIncoming(in inbound) {
	st.tracker.ApplyIncomingMessage(in.id, in.sender, in.ts, in.self)
}

func (st *loopState) setSearch(query string, server []convstate.ID) {
	st.query = strings.TrimSpace(query)
	st.serverMatches = server
}

// namedConversations lists every known conversation with its display name.
func (st *loopState) namedConversations() []resolve.Named {
	ids := st.tracker.OrderingSnapshot()
	out := make([]resolve.Named, len(ids))
	for i, id := range ids {
		out[i] = resolve.Named{ID: id, Name: st.displayName(id)}
	}
	return out
}

func (st *loopState) displayName(id convstate.ID) string {
	if name, ok := st.names[id]; ok {
		return name
	}
	return id.String()
}

func clonePoll(snap convstate.PollSnapshot) convstate.PollSnapshot {
	out := make(convstate.PollSnapshot, len(snap))
	for id, n := range snap {
		out[id] = n
	}
	return out
}
