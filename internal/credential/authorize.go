package credential

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"
)

// Scopes requested during consent.
var Scopes = []string{
	gmailapi.MailGoogleComScope,
	gmailapi.GmailReadonlyScope,
	gmailapi.GmailSendScope,
	gmailapi.GmailLabelsScope,
}

// ConsentFunc obtains a token from a human for cfg.
type ConsentFunc func(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error)

// Authorizer returns an authorized token source, prompting for consent when nothing is saved.
type Authorizer struct {
	Store           Store
	CredentialsPath string
	Scopes          []string
	Consent         ConsentFunc
	Logger          *slog.Logger
}

// NewAuthorizer wires a store to the loopback consent flow.
func NewAuthorizer(store Store, credentialsPath string, consent ConsentFunc, logger *slog.Logger) *Authorizer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Authorizer{
		Store:           store,
		CredentialsPath: credentialsPath,
		Scopes:          Scopes,
		Consent:         consent,
		Logger:          logger,
	}
}

// Authorize loads the saved credential, or runs consent and saves the result.
// The returned source refreshes transparently for as long as ctx lives.
func (a *Authorizer) Authorize(ctx context.Context) (oauth2.TokenSource, error) {
	saved, err := a.Store.Load(ctx)
	switch {
	case err == nil:
		a.Logger.InfoContext(ctx, "using saved credential", "client_id", saved.ClientID)
		cfg := &oauth2.Config{
			ClientID:     saved.ClientID,
			ClientSecret: saved.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       a.Scopes,
		}
		return cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: saved.RefreshToken}), nil
	case errors.Is(err, ErrNotFound):
	default:
		// unreadable or corrupt token: fall through to consent like a missing one
		a.Logger.WarnContext(ctx, "ignoring saved credential", "error", err)
	}

	cfg, err := a.clientConfig()
	if err != nil {
		return nil, err
	}
	if a.Consent == nil {
		return nil, errors.New("no saved credential and no consent flow configured")
	}
	tok, err := a.Consent(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("interactive consent: %w", err)
	}
	if tok.RefreshToken != "" {
		cred := &Credential{
			Type:         TypeAuthorizedUser,
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RefreshToken: tok.RefreshToken,
		}
		if err := a.Store.Save(ctx, cred); err != nil {
			return nil, fmt.Errorf("save credential: %w", err)
		}
		a.Logger.InfoContext(ctx, "saved new credential", "client_id", cfg.ClientID)
	} else {
		a.Logger.WarnContext(ctx, "consent returned no refresh token; credential not saved")
	}
	return cfg.TokenSource(ctx, tok), nil
}

func (a *Authorizer) clientConfig() (*oauth2.Config, error) {
	data, err := os.ReadFile(a.CredentialsPath)
	if err != nil {
		return nil, fmt.Errorf("read client secret %s: %w", a.CredentialsPath, err)
	}
	cfg, err := google.ConfigFromJSON(data, a.Scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse client secret: %w", err)
	}
	return cfg, nil
}

// Prompt writes the consent URL for a human to follow.
func Prompt(w io.Writer, url string) {
	fmt.Fprintf(w, "\nOpen this URL in your browser to authorize replybot:\n\n  %s\n\nWaiting for authorization...\n", url)
}
