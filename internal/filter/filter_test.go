package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyEmptyExpressionReturnsInput(t *testing.T) {
	data := map[string]any{"chats": 2}
	got, err := Apply(data, "")
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestApplySelectsField(t *testing.T) {
	got, err := Apply(map[string]any{"chats": 2, "groups": 1}, ".chats")
	require.NoError(t, err)
	assert.Equal(t, 2, got)
}

func TestApplyMultipleResultsCollapseToSlice(t *testing.T) {
	data := []any{
		map[string]any{"id": "bob", "unread_count": 2},
		map[string]any{"id": "group-3", "unread_count": 0},
		map[string]any{"id": "carol", "unread_count": 5},
	}
	got, err := Apply(data, `.[] | select(.unread_count > 0) | .id`)
	require.NoError(t, err)
	assert.Equal(t, []any{"bob", "carol"}, got)
}

func TestApplyShellEscapedNotEquals(t *testing.T) {
	data := []any{map[string]any{"kind": "group"}, map[string]any{"kind": "direct"}}
	got, err := Apply(data, `[.[] | select(.kind \!= "group")] | length`)
	require.NoError(t, err)
	assert.Equal(t, 1, got)
}

func TestApplyInvalidExpression(t *testing.T) {
	_, err := Apply(map[string]any{}, "invalid[[[")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid filter expression")
}

func TestApplyRuntimeError(t *testing.T) {
	_, err := Apply(map[string]any{"a": "x"}, ".a + 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "filter error")
}

func TestApplyRootArrayQueryFallsBackToItems(t *testing.T) {
	data := map[string]any{"items": []any{
		map[string]any{"id": "bob"},
		map[string]any{"id": "carol"},
	}}
	got, err := Apply(data, ".[].id")
	require.NoError(t, err)
	assert.Equal(t, []any{"bob", "carol"}, got)
}

func TestApplyToJSON(t *testing.T) {
	out, err := ApplyToJSON([]byte(`{"chats": 2, "groups": 1}`), ".groups")
	require.NoError(t, err)
	assert.Equal(t, "1", string(out))

	raw := []byte(`{"chats":2}`)
	out, err = ApplyToJSON(raw, "")
	require.NoError(t, err)
	assert.Equal(t, raw, out)

	_, err = ApplyToJSON([]byte(`{invalid}`), ".chats")
	assert.Error(t, err)
}

func TestNormalizeExpression(t *testing.T) {
	assert.Equal(t, `.a != 1`, NormalizeExpression(`.a \!= 1`))
	assert.Equal(t, `.a`, NormalizeExpression(`.a`))
}
