package auth

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// Setup runs the interactive consent flow and stores the resulting token.
type Setup struct {
	Store        *SecretStore
	In           io.Reader
	Out          io.Writer
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Endpoint     oauth2.Endpoint
}

func (s *Setup) Run(ctx context.Context) error {
	in := bufio.NewReader(s.In)

	saved, err := s.Store.Load()
	if err != nil {
		return err
	}

	clientID := firstNonEmpty(s.ClientID, saved.ClientID)
	if clientID == "" {
		if clientID, err = prompt(in, s.Out, "OAuth client ID: "); err != nil {
			return err
		}
	}
	clientSecret := firstNonEmpty(s.ClientSecret, saved.ClientSecret)
	if clientSecret == "" {
		if clientSecret, err = prompt(in, s.Out, "OAuth client secret: "); err != nil {
			return err
		}
	}

	conf := NewConfig(clientID, clientSecret, s.RedirectURL, s.Endpoint)
	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()
	authURL := conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce, oauth2.S256ChallengeOption(verifier))

	fmt.Fprintf(s.Out, "Open this address in a browser and allow read access to your calendars:\n\n  %s\n\n", authURL)
	input, err := prompt(in, s.Out, "Paste the authorization code or the address you were redirected to: ")
	if err != nil {
		return err
	}
	code, err := extractCode(input, state)
	if err != nil {
		return &CredentialError{Reason: "read authorization code", Err: err}
	}

	tok, err := conf.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return &CredentialError{Reason: "exchange authorization code", Err: err}
	}

	if err := s.Store.Save(Secrets{ClientID: clientID, ClientSecret: clientSecret, Token: tok}); err != nil {
		return err
	}
	fmt.Fprintf(s.Out, "Credentials saved to %s\n", s.Store.Path())
	return nil
}

func prompt(in *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := in.ReadString('\n')
	line = strings.TrimSpace(line)
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read input: %w", err)
	}
	if line == "" {
		return "", errors.New("no value entered")
	}
	return line, nil
}

// extractCode accepts either a bare authorization code or the full redirect
// address carrying it.
func extractCode(input, state string) (string, error) {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "http://") && !strings.HasPrefix(input, "https://") {
		if input == "" {
			return "", errors.New("empty authorization code")
		}
		return input, nil
	}

	u, err := url.Parse(input)
	if err != nil {
		return "", err
	}
	q := u.Query()
	if e := q.Get("error"); e != "" {
		return "", fmt.Errorf("consent denied: %s", e)
	}
	if got := q.Get("state"); got != "" && got != state {
		return "", errors.New("state does not match this setup session")
	}
	code := q.Get("code")
	if code == "" {
		return "", errors.New("redirect address carries no code")
	}
	return code, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
