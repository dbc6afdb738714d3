package session

import (
	"time"

	"github.com/chatpulse/chatpulse-cli/internal/convstate"
	"github.com/chatpulse/chatpulse-cli/internal/resolve"
)

// Row is one conversation line in the sidebar.
type Row struct {
	convstate.State
	Name    string `json:"name"`
	Badge   string `json:"badge,omitempty"`
	Online  bool   `json:"online,omitempty"`
	Focused bool   `json:"focused,omitempty"`
}

// View is an immutable picture of the session at one instant.
type View struct {
	Conversations []Row            `json:"conversations"`
	Totals        convstate.Totals `json:"totals"`
	Focused       string           `json:"focused,omitempty"`
	Query         string           `json:"query,omitempty"`
	At            time.Time        `json:"at"`
}

// Row returns the row for id.
func (v View) Row(id convstate.ID) (Row, bool) {
	for _, r := range v.Conversations {
		if r.ID == id {
			return r, true
		}
	}
	return Row{}, false
}

// IDs returns the conversation ids in display order.
func (v View) IDs() []convstate.ID {
	ids := make([]convstate.ID, len(v.Conversations))
	for i, r := range v.Conversations {
		ids[i] = r.ID
	}
	return ids
}

// Resolve maps a user-typed name or recipient to a conversation in the
// view.
func (v View) Resolve(query string) (convstate.ID, error) {
	named := make([]resolve.Named, len(v.Conversations))
	for i, r := range v.Conversations {
		named[i] = resolve.Named{ID: r.ID, Name: r.Name}
	}
	return resolve.Conversation(query, named)
}

func (st *loopState) view() View {
	var states []convstate.State
	if st.query != "" {
		match := buildPredicate(st.query, st.namedConversations(), st.fuzzy, st.serverMatches)
		states = st.tracker.FilteredSnapshot(match)
	} else {
		states = st.tracker.Snapshot()
	}

	rows := make([]Row, len(states))
	for i, s := range states {
		rows[i] = Row{
			State:   s,
			Name:    st.displayName(s.ID),
			Badge:   convstate.BadgeLabel(s.UnreadCount),
			Focused: st.focused.Valid() && s.ID == st.focused,
		}
		if s.ID.Kind == convstate.KindDirect {
			rows[i].Online = st.online[s.ID.Key]
		}
	}

	v := View{
		Conversations: rows,
		Totals:        st.tracker.Totals(),
		Query:         st.query,
		At:            st.now(),
	}
	if st.focused.Valid() {
		v.Focused = st.focused.String()
	}
	return v
}
