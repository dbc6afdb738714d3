package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/chatpulse/chatpulse-cli/internal/config"
	"github.com/chatpulse/chatpulse-cli/internal/debug"
	"github.com/chatpulse/chatpulse-cli/internal/iocontext"
	"github.com/chatpulse/chatpulse-cli/internal/outfmt"
	"github.com/chatpulse/chatpulse-cli/internal/session"
)

// settingsOverrides are per-command flags layered over the settings file.
type settingsOverrides struct {
	pollInterval time.Duration
	transport    string
	unreadSource string
	fuzzy        bool
}

func (o *settingsOverrides) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.unreadSource, "unread-source", "", "Unread source: http|redis (overrides settings)")
	cmd.Flags().BoolVar(&o.fuzzy, "fuzzy", false, "Fuzzy-match conversation names when searching")
	registerStaticCompletions(cmd, "unread-source", []string{config.UnreadHTTP, config.UnreadRedis})
}

// registerLive adds the flags only a running session uses.
func (o *settingsOverrides) registerLive(cmd *cobra.Command) {
	cmd.Flags().DurationVar(&o.pollInterval, "poll-interval", 0, "Unread poll interval (overrides settings)")
	cmd.Flags().StringVar(&o.transport, "transport", "", "Push transport: websocket|nats (overrides settings)")
	registerStaticCompletions(cmd, "transport", []string{config.TransportWebSocket, config.TransportNATS})
}

func (o *settingsOverrides) apply(cmd *cobra.Command, st *config.Settings) error {
	if cmd.Flags().Changed("poll-interval") {
		st.PollInterval = o.pollInterval
	}
	if o.transport != "" {
		st.Transport = strings.ToLower(strings.TrimSpace(o.transport))
	}
	if o.unreadSource != "" {
		st.UnreadSource = strings.ToLower(strings.TrimSpace(o.unreadSource))
	}
	if cmd.Flags().Changed("fuzzy") {
		st.FuzzySearch = o.fuzzy
	}
	return st.Validate()
}

// openSession builds a session for the stored account. cleanup must be
// called once the session is done.
func openSession(cmd *cobra.Command, overrides *settingsOverrides, opts sessionOptions, renderer session.Renderer) (*session.Session, sessionParts, error) {
	f := newClientFactory()
	acct, err := f.account()
	if err != nil {
		return nil, sessionParts{}, err
	}
	st, err := f.settings()
	if err != nil {
		return nil, sessionParts{}, err
	}
	if overrides != nil {
		if err := overrides.apply(cmd, &st); err != nil {
			return nil, sessionParts{}, err
		}
	}
	if opts.logger == nil && st.Log.Format == "json" {
		opts.logger = debug.SetupLoggerTo(iocontext.GetIO(cmd.Context()).ErrOut, flags.Debug, true)
	}

	client := f.newClient(acct.BaseURL, acct.SessionCookie)
	parts := f.sessionDeps(acct, client, st, opts)
	parts.deps.Renderer = renderer
	return session.New(parts.cfg, parts.deps), parts, nil
}

func newWatchCmd() *cobra.Command {
	var (
		overrides   settingsOverrides
		noPush      bool
		limit       int
		noClear     bool
		interactive bool
		search      string
		duration    time.Duration
	)

	cmd := &cobra.Command{
		Use:     "watch",
		Aliases: []string{"w"},
		Short:   "Live sidebar of conversations with unread badges",
		Long: strings.TrimSpace(`
Keep a live, most-recent-first list of conversations with unread badges.
Messages arrive over the push transport; unread counts are reconciled with
the server every poll interval.

With --interactive, commands are read from stdin, one per line:
  focus <conversation>   open a conversation (clears its badge)
  blur                   close the open conversation
  read <conversation>    mark a conversation read
  sent <conversation>    record that you just sent a message
  search [query]         filter the list; no query clears the filter
  quit                   stop watching
`),
		Example: strings.TrimSpace(`
  # Live sidebar
  chatpulse watch

  # One JSON view per line, piped elsewhere
  chatpulse watch -o jsonl

  # Poll only, every 30 seconds
  chatpulse watch --no-push --poll-interval 30s
`),
		Args: cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			if limit < 0 {
				return fmt.Errorf("--limit must be >= 0")
			}
			if duration < 0 {
				return fmt.Errorf("--duration must be >= 0")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}

			ioStreams := iocontext.GetIO(cmd.Context())
			var renderer session.Renderer
			if isJSON(cmd) {
				renderer = &session.JSONRenderer{W: ioStreams.Out, Query: outfmt.GetQuery(cmd.Context())}
			} else {
				renderer = &session.TextRenderer{
					W:     ioStreams.Out,
					Limit: limit,
					Clear: !noClear && !interactive && iocontext.IsTerminal(ioStreams.Out),
				}
			}

			s, parts, err := openSession(cmd, &overrides, sessionOptions{push: !noPush}, renderer)
			if err != nil {
				return err
			}
			defer parts.cleanup()

			ctx, cancel := context.WithCancel(ctx)
			defer cancel()
			if search != "" {
				go func() {
					if err := s.Search(ctx, search); err != nil {
						slog.Debug("initial search not applied", "error", err)
					}
				}()
			}
			if interactive {
				go func() {
					if readCommands(ctx, s, ioStreams.In, ioStreams.ErrOut) {
						cancel()
					}
				}()
			}
			return s.Run(ctx)
		}),
	}

	overrides.register(cmd)
	overrides.registerLive(cmd)
	cmd.Flags().BoolVar(&noPush, "no-push", false, "Do not connect a push transport; poll only")
	cmd.Flags().IntVar(&limit, "limit", 0, "Show at most N conversations (0 for all)")
	cmd.Flags().BoolVar(&noClear, "no-clear", false, "Do not clear the screen between updates")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Read commands from stdin")
	cmd.Flags().StringVar(&search, "search", "", "Start with this search filter")
	cmd.Flags().DurationVar(&duration, "duration", 0, "Stop after this long (0 runs until interrupted)")
	flagAlias(cmd.Flags(), "poll-interval", "pi")
	flagAlias(cmd.Flags(), "limit", "lim")

	return cmd
}

// readCommands applies stdin commands to s until in is exhausted or ctx
// ends. It reports true when the user asked to quit.
func readCommands(ctx context.Context, s *session.Session, in io.Reader, errOut io.Writer) bool {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return false
		}
		verb, arg, _ := strings.Cut(strings.TrimSpace(scanner.Text()), " ")
		arg = strings.TrimSpace(arg)
		if verb == "" {
			continue
		}
		if verb == "quit" || verb == "q" {
			return true
		}
		if err := runCommand(ctx, s, verb, arg); err != nil {
			_, _ = fmt.Fprintf(errOut, "%s: %v\n", verb, err)
		}
	}
	return false
}

func runCommand(ctx context.Context, s *session.Session, verb, arg string) error {
	switch verb {
	case "blur":
		return s.Blur(ctx)
	case "search", "/":
		return s.Search(ctx, arg)
	case "focus", "f", "read", "r", "sent":
	default:
		return fmt.Errorf("unknown command")
	}

	if arg == "" {
		return fmt.Errorf("requires a conversation")
	}
	view, err := s.View(ctx)
	if err != nil {
		return err
	}
	id, err := view.Resolve(arg)
	if err != nil {
		return err
	}
	switch verb {
	case "focus", "f":
		return s.Focus(ctx, id)
	case "read", "r":
		return s.MarkRead(ctx, id)
	default:
		return s.NotifySent(ctx, id, 0)
	}
}
