// Package oauth builds the provider consent url on the client, for
// deployments that configure an OAuth client id locally instead of
// asking the backend for the url.
package oauth

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

const (
	googleAuthURL  = "https://accounts.google.com/o/oauth2/v2/auth"
	googleTokenURL = "https://oauth2.googleapis.com/token"

	// CalendarReadonlyScope grants read access to the user's calendars.
	CalendarReadonlyScope = "https://www.googleapis.com/auth/calendar.readonly"
)

// URLSource produces consent urls whose state is the user id, so the
// backend callback can attach the credentials to that user.
type URLSource struct {
	config *oauth2.Config
	userID string
}

// NewURLSource creates a source for clientID redirecting to redirectURL.
func NewURLSource(clientID, redirectURL, userID string) (*URLSource, error) {
	if strings.TrimSpace(clientID) == "" {
		return nil, errors.New("oauth client id is required")
	}
	if strings.TrimSpace(redirectURL) == "" {
		return nil, errors.New("oauth redirect url is required")
	}
	if userID == "" {
		return nil, errors.New("user id is required")
	}

	return &URLSource{
		config: &oauth2.Config{
			ClientID:    clientID,
			RedirectURL: redirectURL,
			Scopes:      []string{CalendarReadonlyScope},
			Endpoint: oauth2.Endpoint{
				AuthURL:  googleAuthURL,
				TokenURL: googleTokenURL,
			},
		},
		userID: userID,
	}, nil
}

// AuthorizationURL returns the consent url. Offline access is requested so
// the backend receives a refresh token.
func (s *URLSource) AuthorizationURL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.config.AuthCodeURL(s.userID,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	), nil
}
