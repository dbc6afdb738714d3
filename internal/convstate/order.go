package convstate

import "slices"

// Predicate decides whether a conversation matches the current search.
type Predicate func(State) bool

// OrderingSnapshot returns all known conversations, most recent first.
// Equal timestamps keep first-seen order, so never-active conversations
// (timestamp 0) trail in the order they were first referenced.
func (t *Tracker) OrderingSnapshot() []ID {
	states := t.sortedStates()
	ids := make([]ID, len(states))
	for i, s := range states {
		ids[i] = s.ID
	}
	return ids
}

// Snapshot returns copies of all states in OrderingSnapshot order.
func (t *Tracker) Snapshot() []State {
	return t.sortedStates()
}

// Position returns the index of id in OrderingSnapshot, or -1 if unknown.
func (t *Tracker) Position(id ID) int {
	e, ok := t.entries[id]
	if !ok {
		return -1
	}
	pos := 0
	for _, other := range t.entries {
		if other != e && before(other, e) {
			pos++
		}
	}
	return pos
}

// FilteredOrdering partitions the ordering by match: every conversation the
// predicate accepts comes first, then the rest. Recency orders each
// partition. A nil predicate matches nothing.
func (t *Tracker) FilteredOrdering(match Predicate) []ID {
	states := t.FilteredSnapshot(match)
	ids := make([]ID, len(states))
	for i, s := range states {
		ids[i] = s.ID
	}
	return ids
}

// FilteredSnapshot is FilteredOrdering returning state copies with
// MatchesFilter populated.
func (t *Tracker) FilteredSnapshot(match Predicate) []State {
	states := t.sortedStates()
	for i := range states {
		states[i].MatchesFilter = match != nil && match(states[i])
	}
	slices.SortStableFunc(states, func(a, b State) int {
		switch {
		case a.MatchesFilter == b.MatchesFilter:
			return 0
		case a.MatchesFilter:
			return -1
		default:
			return 1
		}
	})
	return states
}

func (t *Tracker) sortedStates() []State {
	states := make([]State, 0, len(t.entries))
	for id, e := range t.entries {
		states = append(states, e.state(id))
	}
	slices.SortFunc(states, compareRecency)
	return states
}

func compareRecency(a, b State) int {
	switch {
	case a.LastActivityAt > b.LastActivityAt:
		return -1
	case a.LastActivityAt < b.LastActivityAt:
		return 1
	case a.FirstSeen < b.FirstSeen:
		return -1
	case a.FirstSeen > b.FirstSeen:
		return 1
	default:
		return 0
	}
}

func before(a, b *entry) bool {
	if a.lastActivityAt != b.lastActivityAt {
		return a.lastActivityAt > b.lastActivityAt
	}
	return a.seq < b.seq
}
