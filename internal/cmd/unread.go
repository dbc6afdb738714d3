package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chatpulse/chatpulse-cli/internal/convstate"
	"github.com/chatpulse/chatpulse-cli/internal/session"
)

// unreadReport is the JSON shape of the unread command.
type unreadReport struct {
	Totals        convstate.Totals `json:"totals"`
	Conversations []session.Row    `json:"conversations"`
}

func newUnreadCmd() *cobra.Command {
	var (
		overrides settingsOverrides
		all       bool
	)

	cmd := &cobra.Command{
		Use:     "unread",
		Aliases: []string{"u"},
		Short:   "Show unread badge totals and the conversations behind them",
		Example: strings.TrimSpace(`
  chatpulse unread
  chatpulse unread --json --query '.totals.chats'
`),
		Args: cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			s, parts, err := openSession(cmd, &overrides, sessionOptions{}, nil)
			if err != nil {
				return err
			}
			defer parts.cleanup()

			view, err := s.Once(cmdContext(cmd), "")
			if err != nil {
				return err
			}

			report := unreadReport{Totals: view.Totals, Conversations: []session.Row{}}
			for _, row := range view.Conversations {
				if all || row.UnreadCount > 0 {
					report.Conversations = append(report.Conversations, row)
				}
			}

			if isJSON(cmd) {
				return printJSON(cmd, report)
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Chats: %s  Groups: %s\n", badgeOrZero(report.Totals.Chats), badgeOrZero(report.Totals.Groups))
			if len(report.Conversations) == 0 {
				printIfNotQuiet(cmd, "No unread messages.\n")
				return nil
			}
			w := newTabWriterFromCmd(cmd)
			_, _ = fmt.Fprintln(w, "\nCONVERSATION\tUNREAD\tFROM")
			for _, row := range report.Conversations {
				name := row.Name
				if row.ID.Kind == convstate.KindGroup {
					name = "#" + name
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", name, badgeOrZero(row.UnreadCount), strings.Join(row.UnreadSenders, ", "))
			}
			return w.Flush()
		}),
	}

	overrides.register(cmd)
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include conversations without unread messages")
	return cmd
}

func badgeOrZero(n int) string {
	if label := convstate.BadgeLabel(n); label != "" {
		return label
	}
	return "0"
}
