package session

import (
	"strings"

	"github.com/chatpulse/chatpulse-cli/internal/convstate"
	"github.com/chatpulse/chatpulse-cli/internal/resolve"
)

// buildPredicate matches a conversation when its display name contains
// query (case-insensitive), when its name fuzzy-matches and fuzzy is on, or
// when the server found query in its messages. An empty query yields nil,
// which matches nothing and leaves the plain ordering.
func buildPredicate(query string, named []resolve.Named, fuzzy bool, server []convstate.ID) convstate.Predicate {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	matched := make(map[convstate.ID]bool, len(server))
	for _, id := range server {
		matched[id] = true
	}
	for _, n := range named {
		if strings.Contains(strings.ToLower(n.Name), q) {
			matched[n.ID] = true
		}
	}
	if fuzzy {
		for id := range resolve.FuzzySet(q, named) {
			matched[id] = true
		}
	}

	return func(s convstate.State) bool { return matched[s.ID] }
}
