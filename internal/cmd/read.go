package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chatpulse/chatpulse-cli/internal/convstate"
)

func newReadCmd() *cobra.Command {
	var overrides settingsOverrides

	cmd := &cobra.Command{
		Use:   "read <conversation>...",
		Short: "Mark conversations as read",
		Long: strings.TrimSpace(`
Mark every message in the named conversations as read on the server.
A conversation is a username, group-<id>, or a (fuzzy) user or group name.
`),
		Example: strings.TrimSpace(`
  chatpulse read bob
  chatpulse read group-12 "ops team"
`),
		Args: cobra.MinimumNArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			s, parts, err := openSession(cmd, &overrides, sessionOptions{}, nil)
			if err != nil {
				return err
			}
			defer parts.cleanup()

			ctx := cmdContext(cmd)
			view, err := s.Once(ctx, "")
			if err != nil {
				return err
			}

			ids := make([]convstate.ID, 0, len(args))
			for _, arg := range args {
				id, err := view.Resolve(arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}

			marked := make([]string, 0, len(ids))
			for _, id := range ids {
				if err := parts.deps.Reads.MarkRead(ctx, id); err != nil {
					return fmt.Errorf("mark %s read: %w", id, err)
				}
				marked = append(marked, id.String())
			}

			if isJSON(cmd) {
				return printJSON(cmd, map[string]any{"marked_read": marked})
			}
			for _, id := range marked {
				printIfNotQuiet(cmd, "Marked %s as read\n", id)
			}
			return nil
		}),
	}

	overrides.register(cmd)
	return cmd
}
