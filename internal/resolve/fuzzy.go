// Package resolve maps what a user types (a username, "group-<id>", or part of
// a display name) to a conversation.
package resolve

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/chatpulse/chatpulse-cli/internal/convstate"
)

// Named is a conversation with its display name: the username for direct
// chats, the group name for groups.
type Named struct {
	ID   convstate.ID
	Name string
}

// Match is a fuzzy match result with score.
type Match struct {
	ID    convstate.ID
	Name  string
	Score int
}

var (
	ErrEmptyQuery = errors.New("empty search query")
	ErrEmptyItems = errors.New("no conversations to match against")
)

// AmbiguousError indicates multiple candidates matched equally well.
// Matches are sorted best-first and capped.
type AmbiguousError struct {
	Query   string
	Matches []Match
}

func (e *AmbiguousError) Error() string {
	var b strings.Builder
	_, _ = fmt.Fprintf(&b, "ambiguous match for %q", e.Query)
	if len(e.Matches) > 0 {
		b.WriteString(", candidates:")
		for _, m := range e.Matches {
			_, _ = fmt.Fprintf(&b, "\n  %s: %s", m.ID, m.Name)
		}
	}
	return b.String()
}

type namedSourceLower []Named

func (s namedSourceLower) String(i int) string { return strings.ToLower(s[i].Name) }
func (s namedSourceLower) Len() int            { return len(s) }

// Conversation resolves query to one of items.
//
// An exact recipient ("bob", "group-3") of a listed conversation wins, then
// an exact case-insensitive name, then the best fuzzy match. Equal top fuzzy
// scores return *AmbiguousError.
func Conversation(query string, items []Named) (convstate.ID, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return convstate.ID{}, ErrEmptyQuery
	}
	if len(items) == 0 {
		return convstate.ID{}, ErrEmptyItems
	}

	if id, ok := convstate.ParseRecipient(query); ok {
		for _, item := range items {
			if item.ID == id {
				return id, nil
			}
		}
	}
	for _, item := range items {
		if strings.EqualFold(item.Name, query) {
			return item.ID, nil
		}
	}

	results := fuzzy.FindFrom(strings.ToLower(query), namedSourceLower(items))
	if len(results) == 0 {
		return convstate.ID{}, fmt.Errorf("no conversation matches %q", query)
	}
	if len(results) > 1 && results[0].Score == results[1].Score {
		return convstate.ID{}, &AmbiguousError{
			Query:   query,
			Matches: buildMatches(items, results, 5),
		}
	}
	return items[results[0].Index].ID, nil
}

// FuzzyMatchAll returns up to limit matches ranked by score (best first).
func FuzzyMatchAll(query string, items []Named, limit int) []Match {
	query = strings.TrimSpace(query)
	if query == "" || len(items) == 0 || limit <= 0 {
		return nil
	}
	results := fuzzy.FindFrom(strings.ToLower(query), namedSourceLower(items))
	return buildMatches(items, results, limit)
}

// FuzzySet returns every conversation whose name fuzzy-matches query.
func FuzzySet(query string, items []Named) map[convstate.ID]bool {
	matches := FuzzyMatchAll(query, items, len(items))
	if len(matches) == 0 {
		return nil
	}
	set := make(map[convstate.ID]bool, len(matches))
	for _, m := range matches {
		set[m.ID] = true
	}
	return set
}

func buildMatches(items []Named, results fuzzy.Matches, limit int) []Match {
	if len(results) == 0 || limit <= 0 {
		return nil
	}
	if len(results) > limit {
		results = results[:limit]
	}
	matches := make([]Match, len(results))
	for i, r := range results {
		matches[i] = Match{
			ID:    items[r.Index].ID,
			Name:  items[r.Index].Name,
			Score: r.Score,
		}
	}
	return matches
}
