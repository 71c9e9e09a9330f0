package auth

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/oauth2"
)

// ProviderOptions override what the secrets file holds. Empty fields fall
// back to the saved values.
type ProviderOptions struct {
	ClientID     string
	ClientSecret string
	Endpoint     oauth2.Endpoint
	Logger       *slog.Logger
}

// Provider hands out access tokens from the saved credentials, refreshing
// them when they expire and writing refreshed tokens back.
type Provider struct {
	store *SecretStore
	opts  ProviderOptions
	log   *slog.Logger

	mu      sync.Mutex
	secrets Secrets
	src     oauth2.TokenSource
	last    string
}

func NewProvider(store *SecretStore, opts ProviderOptions) *Provider {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Provider{store: store, opts: opts, log: log}
}

func (p *Provider) AccessToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.src == nil {
		if err := p.init(ctx); err != nil {
			return "", err
		}
	}

	tok, err := p.src.Token()
	if err != nil {
		p.src = nil
		return "", &CredentialError{Reason: "refresh access token", Err: err}
	}

	if tok.AccessToken != p.last {
		p.last = tok.AccessToken
		p.secrets.Token = tok
		if err := p.store.Save(p.secrets); err != nil {
			p.log.Warn("persist refreshed token failed", slog.Any("err", err))
		}
	}
	return tok.AccessToken, nil
}

func (p *Provider) init(ctx context.Context) error {
	sec, err := p.store.Load()
	if err != nil {
		return &CredentialError{Reason: "load saved credentials", Err: err}
	}
	if sec.Token == nil || (sec.Token.RefreshToken == "" && !sec.Token.Valid()) {
		return &CredentialError{Reason: "no saved credentials"}
	}

	if p.opts.ClientID != "" {
		sec.ClientID = p.opts.ClientID
	}
	if p.opts.ClientSecret != "" {
		sec.ClientSecret = p.opts.ClientSecret
	}
	if sec.ClientID == "" {
		return &CredentialError{Reason: "client id is not configured"}
	}

	conf := NewConfig(sec.ClientID, sec.ClientSecret, "", p.opts.Endpoint)
	// The refresh may outlive the request that triggered it.
	p.src = conf.TokenSource(context.WithoutCancel(ctx), sec.Token)
	p.secrets = sec
	p.last = sec.Token.AccessToken
	return nil
}
