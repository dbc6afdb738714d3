package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chatpulse/chatpulse-cli/internal/config"
)

func newProfilesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "profiles",
		Aliases: []string{"pf"},
		Short:   "Manage stored logins",
	}

	cmd.AddCommand(newProfilesListCmd())
	cmd.AddCommand(newProfilesUseCmd())
	return cmd
}

func newProfilesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stored profiles",
		Args:    cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			profiles, err := config.ListProfiles()
			if err != nil {
				return err
			}
			current, _ := config.CurrentProfile()

			type entry struct {
				Name     string `json:"name"`
				BaseURL  string `json:"base_url,omitempty"`
				Username string `json:"username,omitempty"`
				Current  bool   `json:"current"`
			}
			entries := make([]entry, 0, len(profiles))
			for _, name := range profiles {
				e := entry{Name: name, Current: name == current}
				if acct, err := config.LoadProfile(name); err == nil {
					e.BaseURL = acct.BaseURL
					e.Username = acct.Username
				}
				entries = append(entries, e)
			}

			if isJSON(cmd) {
				return printJSON(cmd, map[string]any{"current": current, "profiles": entries})
			}
			if len(entries) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No profiles. Run 'chatpulse auth login' to add one.")
				return nil
			}

			w := newTabWriterFromCmd(cmd)
			_, _ = fmt.Fprintln(w, "CURRENT\tPROFILE\tUSERNAME\tBASE_URL")
			for _, e := range entries {
				marker := ""
				if e.Current {
					marker = "*"
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", marker, e.Name, dashIfEmpty(e.Username), dashIfEmpty(e.BaseURL))
			}
			return w.Flush()
		}),
	}
}

func newProfilesUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "use <name>",
		Short:   "Switch the active profile",
		Example: "chatpulse profiles use staging",
		Args:    cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			name := args[0]
			account, err := config.LoadProfile(name)
			if err != nil {
				return fmt.Errorf("profile %q not found: %w", name, err)
			}
			if err := config.SetCurrentProfile(name); err != nil {
				return err
			}
			printIfNotQuiet(cmd, "Current profile: %s (%s as %s)\n", name, account.BaseURL, account.Username)
			return nil
		}),
	}
}

func dashIfEmpty(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
