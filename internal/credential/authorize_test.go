package credential

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

const clientSecretJSON = `{"installed":{"client_id":"cid.apps.googleusercontent.com","client_secret":"csecret","auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token","redirect_uris":["http://localhost"]}}`

type memStore struct {
	cred    *Credential
	saves   int
	saveErr error
}

func (m *memStore) Load(ctx context.Context) (*Credential, error) {
	_ = ctx
	if m.cred == nil {
		return nil, ErrNotFound
	}
	return m.cred, nil
}

func (m *memStore) Save(ctx context.Context, cred *Credential) error {
	_ = ctx
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.cred = cred
	return nil
}

func writeClientSecret(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "credentials.json")
	if err := os.WriteFile(path, []byte(clientSecretJSON), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestAuthorizeUsesSavedCredential(t *testing.T) {
	store := &memStore{cred: &Credential{Type: TypeAuthorizedUser, ClientID: "a", ClientSecret: "b", RefreshToken: "c"}}
	consentCalls := 0
	auth := NewAuthorizer(store, "/does/not/matter", func(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
		consentCalls++
		return nil, errors.New("should not be called")
	}, discard())

	ts, err := auth.Authorize(context.Background())
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if ts == nil {
		t.Fatalf("expected token source")
	}
	if consentCalls != 0 {
		t.Fatalf("consent must not run when a credential is saved")
	}
}

func TestAuthorizeRunsConsentAndSaves(t *testing.T) {
	store := &memStore{}
	var seenScopes []string
	auth := NewAuthorizer(store, writeClientSecret(t), func(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
		seenScopes = cfg.Scopes
		return &oauth2.Token{AccessToken: "at", RefreshToken: "rt", Expiry: time.Now().Add(time.Hour)}, nil
	}, discard())

	ts, err := auth.Authorize(context.Background())
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if store.saves != 1 {
		t.Fatalf("expected one save, got %d", store.saves)
	}
	want := Credential{Type: TypeAuthorizedUser, ClientID: "cid.apps.googleusercontent.com", ClientSecret: "csecret", RefreshToken: "rt"}
	if *store.cred != want {
		t.Fatalf("saved %+v want %+v", store.cred, want)
	}
	if len(seenScopes) != len(Scopes) {
		t.Fatalf("consent scopes %v", seenScopes)
	}
	tok, err := ts.Token()
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if tok.AccessToken != "at" {
		t.Fatalf("access token %q", tok.AccessToken)
	}
}

func TestAuthorizeConsentFailure(t *testing.T) {
	store := &memStore{}
	auth := NewAuthorizer(store, writeClientSecret(t), func(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
		return nil, errors.New("user declined")
	}, discard())

	if _, err := auth.Authorize(context.Background()); err == nil {
		t.Fatalf("expected consent error")
	}
	if store.saves != 0 {
		t.Fatalf("nothing should be saved on failure")
	}
}

func TestAuthorizeMissingClientSecret(t *testing.T) {
	auth := NewAuthorizer(&memStore{}, filepath.Join(t.TempDir(), "missing.json"), nil, discard())
	if _, err := auth.Authorize(context.Background()); err == nil {
		t.Fatalf("expected error for missing client secret")
	}
}

func TestAuthorizeSkipsSaveWithoutRefreshToken(t *testing.T) {
	store := &memStore{}
	auth := NewAuthorizer(store, writeClientSecret(t), func(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
		return &oauth2.Token{AccessToken: "at", Expiry: time.Now().Add(time.Hour)}, nil
	}, discard())
	if _, err := auth.Authorize(context.Background()); err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if store.saves != 0 {
		t.Fatalf("expected no save without refresh token")
	}
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
