package outfmt

import (
	"context"
	"encoding/json"
	"io"

	"github.com/chatpulse/chatpulse-cli/internal/filter"
)

type queryKey struct{}

// WithQuery stores the --query expression for the command's JSON output.
func WithQuery(ctx context.Context, query string) context.Context {
	return context.WithValue(ctx, queryKey{}, query)
}

// GetQuery returns the --query expression, or "" when none was given.
func GetQuery(ctx context.Context) string {
	query, _ := ctx.Value(queryKey{}).(string)
	return query
}

// WriteJSONFiltered writes a view, list or result as JSON after running the
// optional query over it.
func WriteJSONFiltered(w io.Writer, v any, query string, compact bool) error {
	result, err := ApplyQuery(v, query)
	if err != nil {
		return err
	}
	return WriteJSONMaybeCompact(w, result, compact)
}

// ApplyQuery runs query over the JSON form of v. Lists are wrapped as
// {"items": [...]} first; an empty query returns that wrapped value.
func ApplyQuery(v any, query string) (any, error) {
	v = normalizeJSONOutput(v)
	if query == "" {
		return v, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return filter.ApplyFromJSON(data, query)
}
