package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/chatpulse/chatpulse-cli/internal/iocontext"
	"github.com/chatpulse/chatpulse-cli/internal/session"
	"github.com/chatpulse/chatpulse-cli/internal/timeexpr"
)

func newConversationsCmd() *cobra.Command {
	var (
		overrides   settingsOverrides
		search      string
		limit       int
		matchesOnly bool
		since       string
	)

	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"conv", "c", "ls"},
		Short:   "List conversations most recent first",
		Long: strings.TrimSpace(`
List every direct chat and group, most recent activity first. With --search,
conversations whose name or messages match come first (marked *), each part
still ordered by recency.
`),
		Example: strings.TrimSpace(`
  chatpulse conversations
  chatpulse conversations --search ops --fuzzy
  chatpulse conversations --active-since 2h
  chatpulse conversations --json --query '[.conversations[] | select(.unread_count > 0) | .name]'
`),
		Args: cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			if limit < 0 {
				return fmt.Errorf("--limit must be >= 0")
			}
			var cutoff int64
			if since != "" {
				at, err := timeexpr.ParseSince(since, time.Now())
				if err != nil {
					return fmt.Errorf("--active-since: %w", err)
				}
				cutoff = at.UnixMilli()
			}
			s, parts, err := openSession(cmd, &overrides, sessionOptions{}, nil)
			if err != nil {
				return err
			}
			defer parts.cleanup()

			view, err := s.Once(cmdContext(cmd), search)
			if err != nil {
				return err
			}
			if matchesOnly && view.Query != "" {
				kept := view.Conversations[:0]
				for _, row := range view.Conversations {
					if row.MatchesFilter {
						kept = append(kept, row)
					}
				}
				view.Conversations = kept
			}
			if cutoff > 0 {
				kept := view.Conversations[:0]
				for _, row := range view.Conversations {
					if row.LastActivityAt >= cutoff {
						kept = append(kept, row)
					}
				}
				view.Conversations = kept
			}
			if limit > 0 && len(view.Conversations) > limit {
				view.Conversations = view.Conversations[:limit]
			}

			if isJSON(cmd) {
				return printJSON(cmd, view)
			}
			if len(view.Conversations) == 0 {
				printIfNotQuiet(cmd, "No conversations.\n")
				return nil
			}
			r := &session.TextRenderer{W: iocontext.GetIO(cmd.Context()).Out}
			return r.Render(view)
		}),
	}

	overrides.register(cmd)
	cmd.Flags().StringVarP(&search, "search", "s", "", "Put conversations matching this name or message text first")
	cmd.Flags().IntVar(&limit, "limit", 0, "Show at most N conversations (0 for all)")
	cmd.Flags().BoolVar(&matchesOnly, "matches-only", false, "With --search, drop conversations that do not match")
	cmd.Flags().StringVar(&since, "active-since", "", "Only conversations with activity since (2h, yesterday, mon, 2006-01-02)")
	flagAlias(cmd.Flags(), "limit", "lim")
	flagAlias(cmd.Flags(), "matches-only", "mo")

	return cmd
}
