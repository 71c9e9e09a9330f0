package auth

import (
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
)

// DefaultRedirectURL is a loopback address nothing listens on. After consent
// the browser shows a connection error and the address bar holds the code.
const DefaultRedirectURL = "http://127.0.0.1"

// NewConfig returns the OAuth client configuration for read-only calendar
// access. A zero endpoint selects Google's.
func NewConfig(clientID, clientSecret, redirectURL string, endpoint oauth2.Endpoint) *oauth2.Config {
	if endpoint == (oauth2.Endpoint{}) {
		endpoint = google.Endpoint
	}
	if redirectURL == "" {
		redirectURL = DefaultRedirectURL
	}
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     endpoint,
		RedirectURL:  redirectURL,
		Scopes:       []string{calendar.CalendarReadonlyScope},
	}
}
