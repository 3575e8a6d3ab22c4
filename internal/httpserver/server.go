// Package httpserver exposes the bot trigger and its operational endpoints.
package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joshsymonds/replybot/internal/bot"
	"github.com/joshsymonds/replybot/internal/ledger"
)

// StartedMessage is the body returned by the trigger endpoint.
const StartedMessage = "Authentication successful! The Bot is started !!"

const recentLimit = 20

// Controller is the part of the bot the server drives.
type Controller interface {
	Start(ctx context.Context) bool
	Stop() bool
	Status() bot.Status
}

// History lists recently handled messages.
type History interface {
	Recent(ctx context.Context, limit int) ([]ledger.Entry, error)
}

// Server routes requests to a Controller. Base is the lifetime context handed
// to Start, since request contexts end with the response.
type Server struct {
	Base    context.Context
	Bot     Controller
	History History
	Logger  *slog.Logger
}

// New returns a Server. history may be nil.
func New(base context.Context, b Controller, history History, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Server{Base: base, Bot: b, History: history, Logger: logger}
}

// Handler returns the routed mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleStart)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("POST /stop", s.handleStop)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if s.Bot.Start(s.Base) {
		s.Logger.InfoContext(r.Context(), "bot start requested", "remote", r.RemoteAddr)
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(StartedMessage))
}

type statusResponse struct {
	bot.Status
	Recent []ledger.Entry `json:"recent,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{Status: s.Bot.Status()}
	if s.History != nil {
		entries, err := s.History.Recent(r.Context(), recentLimit)
		if err != nil {
			s.Logger.WarnContext(r.Context(), "failed to read ledger", "error", err)
		} else {
			resp.Recent = entries
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if s.Bot.Stop() {
		s.Logger.InfoContext(r.Context(), "bot stop requested", "remote", r.RemoteAddr)
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": string(s.Bot.Status().State)})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
