package profile

import (
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/seatyyy/ExecuMate/internal/timeout"
	"github.com/seatyyy/ExecuMate/internal/timezone"
)

// Profile is the configuration to start a client session.
type Profile struct {
	// Mode can be "prod" or "dev"
	Mode string
	// ServerURL is the base url of the ExecuMate backend (http or https).
	ServerURL string
	// SocketPath is the path of the real-time endpoint on ServerURL.
	SocketPath string
	// UserID is the single static identity of this client.
	UserID string
	// Provider is the calendar provider used in /api/authorize/{provider}.
	Provider string
	// Range is the initial calendar range (today, week, upcoming).
	Range string
	// RequireLogin shows the login overlay before the chat is usable.
	RequireLogin bool

	AuthPollInterval time.Duration
	AuthDeadline     time.Duration
	RefreshInterval  time.Duration
	HTTPTimeout      time.Duration

	// SendRate is the number of outbound messages allowed per second.
	SendRate float64
	// SendBurst is the limiter burst size.
	SendBurst int

	// Timezone is the IANA timezone used to display event times.
	Timezone string
	// TimeLayout is the Go layout used for reminder hour:minute display.
	TimeLayout string

	// OAuth client configuration. When OAuthClientID is set the client builds
	// the authorization url locally instead of asking the backend for it.
	OAuthClientID    string // EXECUMATE_OAUTH_CLIENT_ID
	OAuthRedirectURL string // EXECUMATE_OAUTH_REDIRECT_URL (default: <server>/api/callback/<provider>)

	LogLevel  string
	LogFormat string
}

// Default returns a profile filled with the built-in defaults.
func Default() *Profile {
	return &Profile{
		Mode:             "dev",
		ServerURL:        "http://localhost:5000",
		SocketPath:       "/ws",
		UserID:           "default_user",
		Provider:         "google",
		Range:            "today",
		AuthPollInterval: timeout.AuthPollInterval,
		AuthDeadline:     timeout.AuthDeadline,
		RefreshInterval:  timeout.CalendarRefreshInterval,
		HTTPTimeout:      timeout.HTTPTimeout,
		SendRate:         2,
		SendBurst:        5,
		Timezone:         "Local",
		TimeLayout:       "03:04 PM",
		LogLevel:         "info",
		LogFormat:        "text",
	}
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// UsesLocalOAuth reports whether the authorization url is built client side.
func (p *Profile) UsesLocalOAuth() bool {
	return p.OAuthClientID != ""
}

// SocketURL returns the websocket url derived from ServerURL and SocketPath.
func (p *Profile) SocketURL() (string, error) {
	u, err := url.Parse(p.ServerURL)
	if err != nil {
		return "", errors.Wrapf(err, "invalid server url %q", p.ServerURL)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(p.SocketPath, "/")
	return u.String(), nil
}

// Location resolves Timezone. "Local" and "" map to time.Local.
func (p *Profile) Location() *time.Location {
	if p.Timezone == "" || p.Timezone == "Local" {
		return time.Local
	}
	loc, err := timezone.ParseTimezone(p.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// FromEnv overrides fields from EXECUMATE_* environment variables.
// Empty values are skipped so defaults take effect.
func (p *Profile) FromEnv() {
	setString := func(key string, dst *string) {
		if val := os.Getenv(key); val != "" {
			*dst = val
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		val := os.Getenv(key)
		if val == "" {
			return
		}
		d, err := time.ParseDuration(val)
		if err != nil {
			slog.Warn("ignoring invalid duration", slog.String("key", key), slog.String("value", val))
			return
		}
		*dst = d
	}

	setString("EXECUMATE_MODE", &p.Mode)
	setString("EXECUMATE_SERVER_URL", &p.ServerURL)
	setString("EXECUMATE_SOCKET_PATH", &p.SocketPath)
	setString("EXECUMATE_USER_ID", &p.UserID)
	setString("EXECUMATE_PROVIDER", &p.Provider)
	setString("EXECUMATE_RANGE", &p.Range)
	setString("EXECUMATE_TIMEZONE", &p.Timezone)
	setString("EXECUMATE_TIME_LAYOUT", &p.TimeLayout)
	setString("EXECUMATE_OAUTH_CLIENT_ID", &p.OAuthClientID)
	setString("EXECUMATE_OAUTH_REDIRECT_URL", &p.OAuthRedirectURL)
	setString("EXECUMATE_LOG_LEVEL", &p.LogLevel)
	setString("EXECUMATE_LOG_FORMAT", &p.LogFormat)

	setDuration("EXECUMATE_AUTH_POLL_INTERVAL", &p.AuthPollInterval)
	setDuration("EXECUMATE_AUTH_DEADLINE", &p.AuthDeadline)
	setDuration("EXECUMATE_REFRESH_INTERVAL", &p.RefreshInterval)
	setDuration("EXECUMATE_HTTP_TIMEOUT", &p.HTTPTimeout)

	if val := os.Getenv("EXECUMATE_REQUIRE_LOGIN"); val != "" {
		p.RequireLogin = val == "true"
	}
	if val := os.Getenv("EXECUMATE_SEND_RATE"); val != "" {
		if rate, err := strconv.ParseFloat(val, 64); err == nil {
			p.SendRate = rate
		}
	}
}

func (p *Profile) Validate() error {
	if p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "dev"
	}

	u, err := url.Parse(p.ServerURL)
	if err != nil {
		return errors.Wrapf(err, "invalid server url %q", p.ServerURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.Errorf("server url %q must use http or https", p.ServerURL)
	}
	if u.Host == "" {
		return errors.Errorf("server url %q has no host", p.ServerURL)
	}

	p.UserID = strings.TrimSpace(p.UserID)
	if p.UserID == "" {
		return errors.New("user id is required")
	}
	if p.Provider == "" {
		p.Provider = "google"
	}
	if p.SocketPath == "" {
		p.SocketPath = "/ws"
	}

	switch p.Range {
	case "today", "week", "upcoming":
	case "":
		p.Range = "today"
	default:
		return errors.Errorf("unknown calendar range %q", p.Range)
	}

	if p.AuthPollInterval <= 0 {
		p.AuthPollInterval = timeout.AuthPollInterval
	}
	if p.AuthDeadline <= 0 {
		p.AuthDeadline = timeout.AuthDeadline
	}
	if p.AuthDeadline < p.AuthPollInterval {
		return errors.Errorf("auth deadline %s is shorter than poll interval %s", p.AuthDeadline, p.AuthPollInterval)
	}
	if p.RefreshInterval <= 0 {
		p.RefreshInterval = timeout.CalendarRefreshInterval
	}
	if p.HTTPTimeout <= 0 {
		p.HTTPTimeout = timeout.HTTPTimeout
	}
	if p.SendRate <= 0 {
		p.SendRate = 2
	}
	if p.SendBurst <= 0 {
		p.SendBurst = 1
	}
	if p.TimeLayout == "" {
		p.TimeLayout = "03:04 PM"
	}

	if p.Timezone != "" && p.Timezone != "Local" && !timezone.IsValidTimezone(p.Timezone) {
		slog.Error("invalid timezone, falling back to local", slog.String("timezone", p.Timezone))
		p.Timezone = "Local"
	}

	if p.UsesLocalOAuth() && p.OAuthRedirectURL == "" {
		p.OAuthRedirectURL = strings.TrimRight(p.ServerURL, "/") + "/api/callback/" + p.Provider
	}

	return nil
}
