package credential

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// LoopbackConsent serves the OAuth redirect on 127.0.0.1 and exchanges the returned code.
type LoopbackConsent struct {
	Out         io.Writer
	OpenBrowser bool
	Timeout     time.Duration
}

// Func adapts l to ConsentFunc.
func (l LoopbackConsent) Func() ConsentFunc {
	return l.Run
}

// Run performs one consent round trip.
func (l LoopbackConsent) Run(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to start callback server: %w", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	local := *cfg
	local.RedirectURL = fmt.Sprintf("http://127.0.0.1:%d", port)

	state := uuid.NewString()
	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != state {
			http.Error(w, "Unexpected request.", http.StatusBadRequest)
			return
		}
		if reason := q.Get("error"); reason != "" {
			select {
			case errCh <- fmt.Errorf("authorization denied: %s", reason):
			default:
			}
			fmt.Fprint(w, "Authorization failed. You can close this tab.")
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "Missing authorization code.", http.StatusBadRequest)
			return
		}
		select {
		case codeCh <- code:
		default:
		}
		fmt.Fprint(w, "Authorization complete. You can close this tab.")
	})

	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case errCh <- err:
			default:
			}
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	url := local.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	if l.Out != nil {
		Prompt(l.Out, url)
	}
	if l.OpenBrowser {
		if err := openBrowser(url); err != nil && l.Out != nil {
			fmt.Fprintf(l.Out, "Could not open browser automatically: %v\n", err)
		}
	}

	timeout := l.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case code := <-codeCh:
		token, err := local.Exchange(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("failed to exchange auth code: %w", err)
		}
		return token, nil
	case err := <-errCh:
		return nil, err
	case <-timer.C:
		return nil, fmt.Errorf("authorization timed out after %s", timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "linux", "freebsd", "openbsd":
		cmd = exec.Command("xdg-open", url)
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform %s", runtime.GOOS)
	}
	return cmd.Start()
}
