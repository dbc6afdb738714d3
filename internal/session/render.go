package session

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/chatpulse/chatpulse-cli/internal/convstate"
	"github.com/chatpulse/chatpulse-cli/internal/outfmt"
)

// TextRenderer draws the sidebar as plain text, one block per View.
type TextRenderer struct {
	W     io.Writer
	Limit int // rows to show, 0 for all
	Clear bool
}

func (r *TextRenderer) Render(v View) error {
	var b strings.Builder
	if r.Clear {
		b.WriteString("\033[H\033[2J")
	}
	_, _ = fmt.Fprintf(&b, "Chats %s  Groups %s", totalLabel(v.Totals.Chats), totalLabel(v.Totals.Groups))
	if v.Query != "" {
		_, _ = fmt.Fprintf(&b, "  search: %q", v.Query)
	}
	b.WriteString("\n")

	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	for i, row := range v.Conversations {
		if r.Limit > 0 && i >= r.Limit {
			break
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", marker(row), rowName(row), row.Badge, lastActive(row.LastActivityAt, v.At))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	b.WriteString("\n")

	_, err := io.WriteString(r.W, b.String())
	return err
}

func totalLabel(n int) string {
	if n == 0 {
		return "-"
	}
	return fmt.Sprint(n)
}

func marker(row Row) string {
	switch {
	case row.Focused:
		return ">"
	case row.MatchesFilter:
		return "*"
	default:
		return " "
	}
}

func rowName(row Row) string {
	name := row.Name
	if row.ID.Kind == convstate.KindGroup {
		name = "#" + name
	} else if row.Online {
		name += " (online)"
	}
	if len(row.UnreadSenders) > 0 {
		name += " [" + strings.Join(row.UnreadSenders, ", ") + "]"
	}
	return name
}

func lastActive(ms int64, now time.Time) string {
	if ms <= 0 {
		return ""
	}
	d := now.Sub(time.UnixMilli(ms))
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return time.UnixMilli(ms).In(now.Location()).Format("Jan 2")
	}
}

// JSONRenderer writes each View as one compact JSON line, filtered through
// an optional jq query.
type JSONRenderer struct {
	W     io.Writer
	Query string
}

func (r *JSONRenderer) Render(v View) error {
	return outfmt.WriteJSONFiltered(r.W, v, r.Query, true)
}
