package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/seatyyy/ExecuMate/client"
	"github.com/seatyyy/ExecuMate/internal/browser"
	"github.com/seatyyy/ExecuMate/internal/observability"
	"github.com/seatyyy/ExecuMate/internal/profile"
	"github.com/seatyyy/ExecuMate/plugin/api"
	"github.com/seatyyy/ExecuMate/plugin/calendar/auth"
	"github.com/seatyyy/ExecuMate/plugin/calendar/oauth"
	"github.com/seatyyy/ExecuMate/plugin/realtime"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := viper.New()
	defaults := profile.Default()
	defaults.FromEnv()

	cmd := &cobra.Command{
		Use:          "execumate",
		Short:        "Chat with ExecuMate and keep your calendar in view",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := loadProfile(v)
			if err != nil {
				return err
			}
			return runChat(cmd.Context(), p, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	flags := cmd.PersistentFlags()
	flags.String("config", "", "config file (default is $HOME/.execumate.yaml)")
	flags.String("mode", defaults.Mode, `mode of client, can be "prod" or "dev"`)
	flags.String("server", defaults.ServerURL, "ExecuMate backend url")
	flags.String("socket-path", defaults.SocketPath, "realtime endpoint path on the server")
	flags.String("user", defaults.UserID, "user id")
	flags.String("provider", defaults.Provider, "calendar provider")
	flags.String("range", defaults.Range, "initial calendar range: today, week or upcoming")
	flags.Bool("require-login", defaults.RequireLogin, "show the login prompt at startup")
	flags.Duration("auth-poll-interval", defaults.AuthPollInterval, "authorization status poll interval")
	flags.Duration("auth-deadline", defaults.AuthDeadline, "give up waiting for authorization after this long")
	flags.Duration("refresh-interval", defaults.RefreshInterval, "calendar refresh interval")
	flags.Duration("http-timeout", defaults.HTTPTimeout, "timeout of each backend request")
	flags.Float64("send-rate", defaults.SendRate, "outbound messages per second")
	flags.Int("send-burst", defaults.SendBurst, "outbound message burst")
	flags.String("timezone", defaults.Timezone, "IANA timezone for event times")
	flags.String("time-layout", defaults.TimeLayout, "layout of reminder times")
	flags.String("oauth-client-id", defaults.OAuthClientID, "build the authorization url locally with this OAuth client id")
	flags.String("oauth-redirect-url", defaults.OAuthRedirectURL, "OAuth redirect url")
	flags.String("log-level", defaults.LogLevel, "debug, info, warn or error")
	flags.String("log-format", defaults.LogFormat, "text or json")
	if err := v.BindPFlags(flags); err != nil {
		panic(err)
	}

	cmd.AddCommand(newAuthURLCommand(v), newStatusCommand(v))
	return cmd
}

// loadProfile merges flags, the optional config file and the environment
// defaults into a validated profile.
func loadProfile(v *viper.Viper) (*profile.Profile, error) {
	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(".execumate")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "failed to read config")
		}
	}

	p := &profile.Profile{
		Mode:             v.GetString("mode"),
		ServerURL:        v.GetString("server"),
		SocketPath:       v.GetString("socket-path"),
		UserID:           v.GetString("user"),
		Provider:         v.GetString("provider"),
		Range:            v.GetString("range"),
		RequireLogin:     v.GetBool("require-login"),
		AuthPollInterval: v.GetDuration("auth-poll-interval"),
		AuthDeadline:     v.GetDuration("auth-deadline"),
		RefreshInterval:  v.GetDuration("refresh-interval"),
		HTTPTimeout:      v.GetDuration("http-timeout"),
		SendRate:         v.GetFloat64("send-rate"),
		SendBurst:        v.GetInt("send-burst"),
		Timezone:         v.GetString("timezone"),
		TimeLayout:       v.GetString("time-layout"),
		OAuthClientID:    v.GetString("oauth-client-id"),
		OAuthRedirectURL: v.GetString("oauth-redirect-url"),
		LogLevel:         v.GetString("log-level"),
		LogFormat:        v.GetString("log-format"),
	}
	if err := p.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return p, nil
}

func newBackend(p *profile.Profile, logger *slog.Logger) (*api.Client, error) {
	return api.NewClient(p.ServerURL, p.UserID, p.Provider,
		api.WithHTTPClient(api.NewHTTPClient(p.HTTPTimeout)),
		api.WithLogger(observability.ForComponent(logger, "api")),
	)
}

// urlSource prefers a locally built authorization url when an OAuth client
// id is configured.
func urlSource(p *profile.Profile, backend *api.Client) (auth.URLSource, error) {
	if !p.UsesLocalOAuth() {
		return backend, nil
	}
	return oauth.NewURLSource(p.OAuthClientID, p.OAuthRedirectURL, p.UserID)
}

// fallbackOpener prints the url when no browser can be launched.
type fallbackOpener struct {
	browser  auth.Opener
	renderer *terminalRenderer
	logger   *slog.Logger
}

func (o *fallbackOpener) Open(url string) error {
	if err := o.browser.Open(url); err != nil {
		o.logger.Warn("failed to launch browser", "error", err)
		o.renderer.printURL(url)
	}
	return nil
}

func runChat(ctx context.Context, p *profile.Profile, in io.Reader, out io.Writer) error {
	logger := observability.NewLogger(p.LogLevel, p.LogFormat, os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	backend, err := newBackend(p, logger)
	if err != nil {
		return err
	}
	urls, err := urlSource(p, backend)
	if err != nil {
		return err
	}
	socketURL, err := p.SocketURL()
	if err != nil {
		return err
	}
	conn, err := realtime.Dial(ctx, socketURL, nil, observability.ForComponent(logger, "realtime"))
	if err != nil {
		return errors.Wrap(err, "failed to connect to chat server")
	}
	defer conn.Close()

	renderer := newTerminalRenderer(out)
	session, err := client.New(client.ConfigFromProfile(p), client.Deps{
		Backend:  backend,
		URLs:     urls,
		Opener:   &fallbackOpener{browser: browser.New(), renderer: renderer, logger: logger},
		Channel:  conn,
		Renderer: renderer,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer session.Close()

	logger.Info("session started",
		slog.String(observability.LogFieldSessionID, session.ID()),
		slog.String(observability.LogFieldUserID, p.UserID),
		slog.String("server", p.ServerURL))
	_, _ = fmt.Fprintln(out, "Type a message, or /help for commands.")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return session.Run(gctx)
	})
	g.Go(func() error {
		defer cancel()
		return conn.Listen(gctx, func(in realtime.Inbound) {
			session.Deliver(in)
		})
	})
	g.Go(func() error {
		defer cancel()
		return readCommands(gctx, scanLines(in), session, renderer, out)
	})
	return g.Wait()
}

// scanLines feeds lines from r into a channel. The reader goroutine is left
// blocked on r when the session ends first.
func scanLines(r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

func newAuthURLCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "auth-url",
		Short: "Print the calendar authorization url",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := loadProfile(v)
			if err != nil {
				return err
			}
			logger := observability.NewLogger(p.LogLevel, p.LogFormat, os.Stderr)
			backend, err := newBackend(p, logger)
			if err != nil {
				return err
			}
			urls, err := urlSource(p, backend)
			if err != nil {
				return err
			}
			link, err := urls.AuthorizationURL(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), link)
			return nil
		},
	}
}

func newStatusCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the calendar is connected",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := loadProfile(v)
			if err != nil {
				return err
			}
			logger := observability.NewLogger(p.LogLevel, p.LogFormat, os.Stderr)
			backend, err := newBackend(p, logger)
			if err != nil {
				return err
			}
			authorized, err := backend.IsAuthorized(cmd.Context())
			if err != nil {
				return err
			}

			connected := color.New(color.FgRed).Sprint("no")
			if authorized {
				connected = color.New(color.FgGreen).Sprint("yes")
			}
			tbl := uitable.New()
			tbl.Separator = "  "
			tbl.AddRow("SERVER", p.ServerURL)
			tbl.AddRow("USER", p.UserID)
			tbl.AddRow("PROVIDER", p.Provider)
			tbl.AddRow("CALENDAR CONNECTED", connected)
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), tbl)
			return nil
		},
	}
}
