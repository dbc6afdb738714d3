package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/chatpulse/chatpulse-cli/internal/config"
	"github.com/chatpulse/chatpulse-cli/internal/iocontext"
)

const envPassword = "CHATPULSE_PASSWORD"

// newAuthCmd returns the auth command with subcommands
func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "auth",
		Aliases: []string{"au"},
		Short:   "Manage the chat server login",
		Long:    "Log in with the chat server's login form and keep the session cookie in your OS keychain.",
	}

	cmd.AddCommand(newAuthLoginCmd())
	cmd.AddCommand(newAuthStatusCmd())
	cmd.AddCommand(newAuthLogoutCmd())

	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	var (
		baseURL       string
		username      string
		passwordStdin bool
		profile       string
		envFile       string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session cookie",
		Long: strings.TrimSpace(`
Log in to the chat server and save the session under a profile in your OS
keychain. The password is read from --password-stdin, CHATPULSE_PASSWORD in
--env-file, or an interactive prompt; it is never stored.
`),
		Example: strings.TrimSpace(`
  # Prompt for the password
  chatpulse auth login --url https://chat.example.com --username alice

  # Non-interactive
  echo "$PASSWORD" | chatpulse auth login --url https://chat.example.com --username alice --password-stdin

  # Read CHATPULSE_BASE_URL, CHATPULSE_USERNAME and CHATPULSE_PASSWORD from a file
  chatpulse auth login --env-file .env
`),
		Args: cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			var password string
			if envFile != "" {
				envVars, err := godotenv.Read(envFile)
				if err != nil {
					return fmt.Errorf("failed to read --env-file %q: %w", envFile, err)
				}
				if baseURL == "" {
					baseURL = strings.TrimSpace(envVars[config.EnvBaseURL])
				}
				if username == "" {
					username = strings.TrimSpace(envVars[config.EnvUsername])
				}
				if !cmd.Flags().Changed("profile") {
					if p := strings.TrimSpace(envVars[config.EnvProfile]); p != "" {
						profile = p
					}
				}
				password = envVars[envPassword]
			}

			if baseURL == "" {
				return fmt.Errorf("--url is required")
			}
			if username == "" {
				return fmt.Errorf("--username is required")
			}
			baseURL = strings.TrimSuffix(strings.TrimSpace(baseURL), "/")
			if err := config.ValidateBaseURL(baseURL); err != nil {
				return err
			}

			ioStreams := iocontext.GetIO(cmd.Context())
			switch {
			case passwordStdin:
				data, err := io.ReadAll(ioStreams.In)
				if err != nil {
					return fmt.Errorf("failed to read password from stdin: %w", err)
				}
				password = strings.TrimRight(string(data), "\r\n")
			case password == "":
				p, err := ioStreams.Prompt("Password: ")
				if err != nil {
					return fmt.Errorf("failed to read password: %w", err)
				}
				password = p
			}
			if password == "" {
				return fmt.Errorf("password is required")
			}

			client := newClientFactory().newClient(baseURL, "")
			cookie, err := client.Login(cmdContext(cmd), username, password)
			if err != nil {
				return err
			}

			account := config.Account{BaseURL: baseURL, Username: username, SessionCookie: cookie}
			if err := config.SaveProfile(profile, account); err != nil {
				return fmt.Errorf("failed to save credentials: %w", err)
			}

			if isJSON(cmd) {
				return printJSON(cmd, map[string]any{
					"authenticated": true,
					"base_url":      baseURL,
					"username":      username,
					"profile":       profile,
				})
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Logged in as %s\n", username)
			_, _ = fmt.Fprintf(out, "  Base URL: %s\n", baseURL)
			if profile != "" && profile != "default" {
				_, _ = fmt.Fprintf(out, "  Profile: %s\n", profile)
			}
			return nil
		}),
	}

	cmd.Flags().StringVar(&baseURL, "url", "", "Chat server base URL (e.g. https://chat.example.com)")
	cmd.Flags().StringVar(&username, "username", "", "Username to log in as")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	cmd.Flags().StringVar(&profile, "profile", "default", "Profile name to save the session under")
	cmd.Flags().StringVar(&envFile, "env-file", "", "Load CHATPULSE_* values from a .env file")
	flagAlias(cmd.Flags(), "url", "ur")
	flagAlias(cmd.Flags(), "username", "user")
	flagAlias(cmd.Flags(), "env-file", "env")

	return cmd
}

func newAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored login",
		Long:  "Display the active login (the session cookie is masked).",
		Example: strings.TrimSpace(`
  chatpulse auth status
  chatpulse auth status --json
`),
		Args: cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			usingEnv := strings.TrimSpace(os.Getenv(config.EnvBaseURL)) != "" && flags.Profile == ""

			account, err := newClientFactory().account()
			if err != nil {
				if errors.Is(err, config.ErrNotConfigured) {
					if isJSON(cmd) {
						return printJSON(cmd, map[string]any{
							"authenticated": false,
							"message":       "Not authenticated. Run 'chatpulse auth login' to log in.",
						})
					}
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Not authenticated.")
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Run 'chatpulse auth login' to log in.")
					return nil
				}
				return fmt.Errorf("failed to load credentials: %w", err)
			}

			profile := flags.Profile
			if profile == "" && !usingEnv {
				if current, err := config.CurrentProfile(); err == nil {
					profile = current
				}
			}
			source := "keychain"
			if usingEnv {
				source = "env"
			}

			if isJSON(cmd) {
				return printJSON(cmd, map[string]any{
					"authenticated": true,
					"base_url":      account.BaseURL,
					"username":      account.Username,
					"session":       maskToken(account.SessionCookie),
					"profile":       profile,
					"source":        source,
				})
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(out, "Authenticated")
			_, _ = fmt.Fprintf(out, "  Base URL: %s\n", account.BaseURL)
			_, _ = fmt.Fprintf(out, "  Username: %s\n", account.Username)
			_, _ = fmt.Fprintf(out, "  Session: %s\n", maskToken(account.SessionCookie))
			if profile != "" {
				_, _ = fmt.Fprintf(out, "  Profile: %s\n", profile)
			}
			_, _ = fmt.Fprintf(out, "  Source: %s\n", source)
			return nil
		}),
	}
}

func newAuthLogoutCmd() *cobra.Command {
	var profile string

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "End the server session and forget it",
		Example: strings.TrimSpace(`
  chatpulse auth logout
  chatpulse auth logout --profile staging
`),
		Args: cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			if profile == "" {
				current, err := config.CurrentProfile()
				if err != nil {
					return err
				}
				profile = current
			}

			account, err := config.LoadProfile(profile)
			switch {
			case errors.Is(err, config.ErrNotConfigured):
				return fmt.Errorf("profile %q is not logged in", profile)
			case err != nil:
				return err
			}

			client := newClientFactory().newClient(account.BaseURL, account.SessionCookie)
			if err := client.Logout(cmdContext(cmd)); err != nil {
				// The local copy is removed regardless.
				slog.Warn("server logout failed", "error", err)
			}
			if err := config.DeleteProfile(profile); err != nil {
				return fmt.Errorf("failed to remove credentials: %w", err)
			}

			if isJSON(cmd) {
				return printJSON(cmd, map[string]any{"logged_out": true, "profile": profile})
			}
			printIfNotQuiet(cmd, "Logged out of %s (%s)\n", account.BaseURL, profile)
			return nil
		}),
	}

	cmd.Flags().StringVar(&profile, "profile", "", "Profile to log out (defaults to current)")
	return cmd
}

// maskToken hides all but the first and last four characters.
func maskToken(token string) string {
	if len(token) < 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + strings.Repeat("*", len(token)-8) + token[len(token)-4:]
}
