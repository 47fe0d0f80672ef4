package server

import (
	"encoding/json"
	"net/http"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/session"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// LocksBody lists locked application identifiers.
type LocksBody struct {
	Apps []string `json:"apps"`
}

// OutcomeRequest carries a challenge provider outcome.
type OutcomeRequest struct {
	Ticket string `json:"ticket"`
	Result string `json:"result"`
	Reason string `json:"reason,omitempty"`
}

// SessionsResponse lists live sessions.
type SessionsResponse struct {
	Sessions []session.Info `json:"sessions"`
}

type agentStatus interface {
	Connected() bool
}

// Health reports liveness and whether a device agent is connected.
func (s *Server) Health(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{"status": "ok"}
	if a, ok := s.agent.(agentStatus); ok {
		body["agent_connected"] = a.Connected()
	}
	writeJSON(w, http.StatusOK, body)
}

// ListLocks returns the locked applications.
func (s *Server) ListLocks(w http.ResponseWriter, r *http.Request) {
	apps, err := s.registry.All(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}
	if apps == nil {
		apps = []string{}
	}
	writeJSON(w, http.StatusOK, LocksBody{Apps: apps})
}

// ReplaceLocks replaces the whole locked set with the request body.
func (s *Server) ReplaceLocks(w http.ResponseWriter, r *http.Request) {
	var body LocksBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.registry.Replace(r.Context(), body.Apps); err != nil {
		mapError(w, err)
		return
	}
	s.log.Info("locked set replaced", zap.Int("count", len(body.Apps)))
	s.ListLocks(w, r)
}

// AddLock locks the application named in the path.
func (s *Server) AddLock(w http.ResponseWriter, r *http.Request) {
	app := chi.URLParam(r, "app")
	if err := s.registry.Add(r.Context(), app); err != nil {
		mapError(w, err)
		return
	}
	s.log.Info("app locked", zap.String("app", app))
	w.WriteHeader(http.StatusNoContent)
}

// RemoveLock unlocks the application named in the path and drops its grant.
func (s *Server) RemoveLock(w http.ResponseWriter, r *http.Request) {
	app := chi.URLParam(r, "app")
	if err := s.registry.Remove(r.Context(), app); err != nil {
		mapError(w, err)
		return
	}
	s.log.Info("app unlocked", zap.String("app", app))
	w.WriteHeader(http.StatusNoContent)
}

// ClearGrants invalidates every grant, as a screen lock would.
func (s *Server) ClearGrants(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.InvalidateGrants(r.Context()); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PostOutcome delivers a challenge outcome for a ticket.
func (s *Server) PostOutcome(w http.ResponseWriter, r *http.Request) {
	var req OutcomeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result, err := goGuard.ParseResult(req.Result)
	if err != nil {
		mapError(w, err)
		return
	}
	if err := s.engine.Resolve(r.Context(), req.Ticket, result, req.Reason); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PostScreen applies a screen signal (off or present).
func (s *Server) PostScreen(w http.ResponseWriter, r *http.Request) {
	ev, err := goGuard.ParseScreenEvent(chi.URLParam(r, "event"))
	if err != nil {
		mapError(w, err)
		return
	}
	if err := s.engine.HandleScreenEvent(r.Context(), ev); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListSessions returns the live authentication sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.engine.Sessions(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}
	if sessions == nil {
		sessions = []session.Info{}
	}
	writeJSON(w, http.StatusOK, SessionsResponse{Sessions: sessions})
}
