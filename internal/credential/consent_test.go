package credential

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

type urlCatcher struct{ ch chan string }

func (u urlCatcher) Write(p []byte) (int, error) {
	select {
	case u.ch <- string(p):
	default:
	}
	return len(p), nil
}

type consentResult struct {
	tok *oauth2.Token
	err error
}

type runningConsent struct {
	authURL  *url.URL
	redirect string
	state    string
	done     chan consentResult
}

func tokenServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.Form.Get("code") != "abc" {
			t.Errorf("code = %q", r.Form.Get("code"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at","refresh_token":"rt","token_type":"Bearer","expires_in":3600}`))
	}))
}

func startConsent(t *testing.T, tokenURL string) runningConsent {
	t.Helper()
	cfg := &oauth2.Config{
		ClientID:     "cid",
		ClientSecret: "secret",
		Endpoint:     oauth2.Endpoint{AuthURL: tokenURL + "/auth", TokenURL: tokenURL + "/token"},
		Scopes:       Scopes,
	}
	out := urlCatcher{ch: make(chan string, 1)}
	consent := LoopbackConsent{Out: out, Timeout: 5 * time.Second}

	done := make(chan consentResult, 1)
	go func() {
		tok, err := consent.Run(context.Background(), cfg)
		done <- consentResult{tok, err}
	}()

	var prompt string
	select {
	case prompt = <-out.ch:
	case <-time.After(5 * time.Second):
		t.Fatalf("consent URL never printed")
	}
	var raw string
	for _, field := range strings.Fields(prompt) {
		if strings.Contains(field, "redirect_uri=") {
			raw = field
		}
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse auth url %q: %v", raw, err)
	}
	return runningConsent{
		authURL:  parsed,
		redirect: parsed.Query().Get("redirect_uri"),
		state:    parsed.Query().Get("state"),
		done:     done,
	}
}

func callback(t *testing.T, target string) int {
	t.Helper()
	resp, err := http.Get(target)
	if err != nil {
		t.Fatalf("callback %s: %v", target, err)
	}
	_ = resp.Body.Close()
	return resp.StatusCode
}

func TestLoopbackConsentExchangesCode(t *testing.T) {
	tokenSrv := tokenServer(t)
	defer tokenSrv.Close()
	rc := startConsent(t, tokenSrv.URL)

	if !strings.HasPrefix(rc.redirect, "http://127.0.0.1:") {
		t.Fatalf("redirect %q", rc.redirect)
	}
	if rc.authURL.Query().Get("access_type") != "offline" {
		t.Fatalf("expected offline access, got %q", rc.authURL.Query().Get("access_type"))
	}
	if rc.state == "" || rc.state == "state" {
		t.Fatalf("expected a random state, got %q", rc.state)
	}

	code := callback(t, rc.redirect+"/?code=abc&state="+url.QueryEscape(rc.state))
	if code != http.StatusOK {
		t.Fatalf("callback status = %d", code)
	}

	select {
	case res := <-rc.done:
		if res.err != nil {
			t.Fatalf("consent: %v", res.err)
		}
		if res.tok.RefreshToken != "rt" {
			t.Fatalf("refresh token %q", res.tok.RefreshToken)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("consent did not finish")
	}
}

func TestLoopbackConsentIgnoresStrayRequests(t *testing.T) {
	tokenSrv := tokenServer(t)
	defer tokenSrv.Close()
	rc := startConsent(t, tokenSrv.URL)

	strays := []struct {
		target string
		want   int
	}{
		{rc.redirect + "/favicon.ico", http.StatusNotFound},
		{rc.redirect + "/", http.StatusBadRequest},
		{rc.redirect + "/?code=abc&state=forged", http.StatusBadRequest},
		{rc.redirect + "/?error=access_denied&state=forged", http.StatusBadRequest},
		{rc.redirect + "/?state=" + url.QueryEscape(rc.state), http.StatusBadRequest},
	}
	for _, s := range strays {
		if got := callback(t, s.target); got != s.want {
			t.Fatalf("GET %s = %d, want %d", s.target, got, s.want)
		}
	}
	select {
	case res := <-rc.done:
		t.Fatalf("consent ended early: %+v", res)
	default:
	}

	callback(t, rc.redirect+"/?code=abc&state="+url.QueryEscape(rc.state))
	select {
	case res := <-rc.done:
		if res.err != nil || res.tok.RefreshToken != "rt" {
			t.Fatalf("consent = %+v", res)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("consent did not finish")
	}
}

func TestLoopbackConsentDenied(t *testing.T) {
	tokenSrv := tokenServer(t)
	defer tokenSrv.Close()
	rc := startConsent(t, tokenSrv.URL)

	callback(t, rc.redirect+"/?error=access_denied&state="+url.QueryEscape(rc.state))
	select {
	case res := <-rc.done:
		if res.err == nil || !strings.Contains(res.err.Error(), "access_denied") {
			t.Fatalf("expected denial error, got %v", res.err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("consent did not finish")
	}
}

func TestLoopbackConsentCanceled(t *testing.T) {
	cfg := &oauth2.Config{ClientID: "cid", Endpoint: oauth2.Endpoint{AuthURL: "http://127.0.0.1/auth", TokenURL: "http://127.0.0.1/token"}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (LoopbackConsent{}).Run(ctx, cfg); err == nil {
		t.Fatalf("expected error for canceled context")
	}
}
