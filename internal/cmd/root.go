package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/chatpulse/chatpulse-cli/internal/api"
	"github.com/chatpulse/chatpulse-cli/internal/config"
	"github.com/chatpulse/chatpulse-cli/internal/debug"
	"github.com/chatpulse/chatpulse-cli/internal/iocontext"
	"github.com/chatpulse/chatpulse-cli/internal/outfmt"
)

// rootFlags holds global CLI flags
type rootFlags struct {
	Output   string
	JSON     bool
	Debug    bool
	Quiet    bool
	Silent   bool
	Query    string
	Template string
	Compact  bool
	Timeout  time.Duration
	Settings string
	Profile  string
}

// flags holds the global command flags. It is reset at the start of every
// Execute call; reading it outside a command's RunE sees stale values.
var flags = defaultFlags()

func defaultFlags() rootFlags {
	return rootFlags{
		Output:  defaultOutput(),
		Timeout: api.DefaultTimeout,
	}
}

func defaultOutput() string {
	value := strings.TrimSpace(os.Getenv("CHATPULSE_OUTPUT"))
	if value != "" {
		return normalizeOutputFormat(value)
	}
	return "text"
}

func normalizeOutputFormat(value string) string {
	value = strings.TrimSpace(value)
	if value == "ndjson" {
		return "jsonl"
	}
	return value
}

// loadDotEnv loads <config dir>/.env when present. Variables already set in
// the environment win.
func loadDotEnv() {
	path := filepath.Join(config.Dir(), ".env")
	if _, err := os.Stat(path); err != nil {
		return
	}
	_ = godotenv.Load(path)
}

// Execute runs the root command
func Execute(ctx context.Context, args []string) error {
	// Before the flag reset so env-driven defaults see the file.
	loadDotEnv()
	flags = defaultFlags()

	root := &cobra.Command{
		Use:                "chatpulse",
		Short:              "Unread badges and conversation ordering for a chat server, in the terminal",
		SilenceUsage:       true,
		SilenceErrors:      true,
		DisableSuggestions: true, // enhanceUnknownError does it
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			flags.Output = normalizeOutputFormat(flags.Output)
			if flags.JSON {
				if flagOrAliasChanged(cmd, "output") && flags.Output != "json" {
					return fmt.Errorf("--json conflicts with --output %s", flags.Output)
				}
				flags.Output = "json"
			}
			needsJSON := flags.Query != "" || flags.Template != ""
			if needsJSON && flags.Output != "json" && flags.Output != "jsonl" {
				if flagOrAliasChanged(cmd, "output") {
					return fmt.Errorf("--query/--template require --output json or jsonl (or --json)")
				}
				flags.Output = "json"
			}

			mode, err := outfmt.Parse(flags.Output)
			if err != nil {
				return err
			}
			ctx = outfmt.WithMode(ctx, mode)
			ctx = outfmt.WithCompact(ctx, flags.Compact)

			ioStreams := iocontext.GetIO(ctx).Clone()
			if flags.Silent || flags.Quiet {
				ioStreams.ErrOut = io.Discard
			}
			if flags.Quiet && mode == outfmt.Text {
				ioStreams.Out = io.Discard
			}
			ctx = iocontext.WithIO(ctx, ioStreams)
			cmd.SetIn(ioStreams.In)
			cmd.SetOut(ioStreams.Out)
			cmd.SetErr(ioStreams.ErrOut)

			debug.SetupLoggerTo(ioStreams.ErrOut, flags.Debug, false)
			ctx = debug.WithDebug(ctx, flags.Debug)

			if flags.Query != "" {
				ctx = outfmt.WithQuery(ctx, flags.Query)
			}
			if flags.Template != "" {
				tmpl, err := loadTemplate(flags.Template)
				if err != nil {
					return err
				}
				ctx = outfmt.WithTemplate(ctx, tmpl)
			}

			if flags.Timeout < 0 {
				return fmt.Errorf("--timeout must be >= 0")
			}

			cmd.SetContext(ctx)
			return nil
		},
	}

	root.SetContext(ctx)
	root.SetArgs(args)
	root.PersistentFlags().StringVarP(&flags.Output, "output", "o", flags.Output, "Output format: text|json|jsonl|ndjson (env CHATPULSE_OUTPUT)")
	root.PersistentFlags().BoolVarP(&flags.JSON, "json", "j", false, "Shorthand for --output json")
	root.PersistentFlags().BoolVar(&flags.Debug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVarP(&flags.Query, "query", "q", "", "JQ expression to filter JSON output")
	root.PersistentFlags().StringVar(&flags.Template, "template", "", "Go template string (or @path) to render JSON output")
	root.PersistentFlags().BoolVar(&flags.Compact, "compact-json", false, "Compact JSON output (no indentation)")
	root.PersistentFlags().BoolVarP(&flags.Quiet, "quiet", "Q", false, "Suppress non-essential output")
	root.PersistentFlags().BoolVar(&flags.Silent, "silent", false, "Suppress non-error output to stderr")
	root.PersistentFlags().DurationVar(&flags.Timeout, "timeout", flags.Timeout, "HTTP request timeout (e.g., 30s, 2m)")
	root.PersistentFlags().StringVar(&flags.Settings, "settings", "", "Settings file (default <config dir>/settings.yaml)")
	root.PersistentFlags().StringVar(&flags.Profile, "profile", "", "Credential profile to use (env CHATPULSE_PROFILE)")

	flagAlias(root.PersistentFlags(), "output", "out")
	flagAlias(root.PersistentFlags(), "query", "jq")
	flagAlias(root.PersistentFlags(), "compact-json", "cj")
	flagAlias(root.PersistentFlags(), "debug", "dbg")
	flagAlias(root.PersistentFlags(), "template", "tpl")
	flagAlias(root.PersistentFlags(), "timeout", "to")

	root.AddCommand(newAuthCmd())
	root.AddCommand(newProfilesCmd())
	root.AddCommand(newWatchCmd())
	root.AddCommand(newUnreadCmd())
	root.AddCommand(newConversationsCmd())
	root.AddCommand(newReadCmd())
	root.AddCommand(newCacheCmd())
	root.AddCommand(newVersionCmd())

	targetCmd, err := root.ExecuteC()
	if err != nil {
		if !errors.Is(err, errAlreadyHandled) {
			enhanced := enhanceUnknownError(err, root, targetCmd)
			_, _ = fmt.Fprintln(root.ErrOrStderr(), enhanced)
		}
		return err
	}
	return nil
}

// enhanceUnknownError adds "did you mean?" suggestions to unknown command/flag errors.
func enhanceUnknownError(err error, root *cobra.Command, targetCmd *cobra.Command) string {
	msg := err.Error()

	if strings.Contains(msg, "unknown command") {
		if unknown := extractQuoted(msg); unknown != "" {
			var names []string
			for _, c := range root.Commands() {
				if c.IsAvailableCommand() || c.Name() == "help" {
					names = append(names, c.Name())
					names = append(names, c.Aliases...)
				}
			}
			if suggestion := suggestCommand(unknown, names); suggestion != "" {
				return fmt.Sprintf("%s\n\nDid you mean %q?", msg, suggestion)
			}
		}
	}

	if strings.Contains(msg, "unknown flag") || strings.Contains(msg, "unknown shorthand flag") {
		unknown := extractFlag(msg)
		if unknown == "" {
			return msg
		}
		seen := make(map[string]bool)
		var flagNames []string
		addFlags := func(fs *pflag.FlagSet) {
			fs.VisitAll(func(f *pflag.Flag) {
				if f.Hidden {
					return
				}
				for _, name := range []string{"--" + f.Name, "-" + f.Shorthand} {
					if name == "-" || seen[name] {
						continue
					}
					seen[name] = true
					flagNames = append(flagNames, name)
				}
			})
		}
		helpCmd := "chatpulse --help"
		if targetCmd != nil {
			addFlags(targetCmd.Flags())
			addFlags(targetCmd.InheritedFlags())
			helpCmd = targetCmd.CommandPath() + " --help"
		} else {
			addFlags(root.PersistentFlags())
		}
		if suggestion := suggestFlag(unknown, flagNames); suggestion != "" {
			return fmt.Sprintf("%s\n\nDid you mean %q?\nRun %q to see supported flags.", msg, suggestion, helpCmd)
		}
		return fmt.Sprintf("%s\n\nRun %q to see supported flags.", msg, helpCmd)
	}

	return msg
}

// extractQuoted extracts the first double-quoted substring from s.
func extractQuoted(s string) string {
	start := strings.IndexByte(s, '"')
	if start < 0 {
		return ""
	}
	end := strings.IndexByte(s[start+1:], '"')
	if end < 0 {
		return ""
	}
	return s[start+1 : start+1+end]
}

// extractFlag pulls "--name" or "-x" out of a pflag error message.
func extractFlag(s string) string {
	idx := strings.Index(s, "--")
	if idx < 0 {
		// "unknown shorthand flag: 'x' in -x"
		idx = strings.LastIndex(s, " -")
		if idx < 0 {
			return ""
		}
		idx++
	}
	rest := s[idx:]
	if end := strings.IndexAny(rest, " =\n"); end >= 0 {
		rest = rest[:end]
	}
	return rest
}

// loadTemplate returns tmpl, or the contents of the file when tmpl is "@path".
func loadTemplate(tmpl string) (string, error) {
	path, ok := strings.CutPrefix(tmpl, "@")
	if !ok {
		return tmpl, nil
	}
	if path == "" {
		return "", fmt.Errorf("--template @ requires a file path")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read template %q: %w", path, err)
	}
	return string(data), nil
}
