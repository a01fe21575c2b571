package api

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/digkill/magicpixa/internal/ledger"
	"github.com/digkill/magicpixa/internal/models"
)

type alert struct {
	Path      string    `json:"path"`
	Operation string    `json:"operation"`
	Error     string    `json:"error"`
	At        time.Time `json:"at"`
}

// alertLog keeps the most recent permission errors, newest first.
type alertLog struct {
	mu    sync.Mutex
	limit int
	items []alert
}

func newAlertLog(limit int) *alertLog {
	return &alertLog{limit: limit}
}

func (a *alertLog) add(err *ledger.PermissionError) {
	a.mu.Lock()
	defer a.mu.Unlock()
	item := alert{Path: err.Path, Operation: err.Operation, Error: err.Error(), At: time.Now().UTC()}
	a.items = append([]alert{item}, a.items...)
	if len(a.items) > a.limit {
		a.items = a.items[:a.limit]
	}
}

func (a *alertLog) list() []alert {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]alert{}, a.items...)
}

type grantRequest struct {
	UID    string `json:"uid"`
	Amount int    `json:"amount"`
}

type tokenRequest struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

type promoRequest struct {
	Code    string `json:"code"`
	Credits int    `json:"credits"`
	MaxUses int    `json:"maxUses"`
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.svc.Users.List(r.Context(), parseLimit(r, 100, 1000))
	if err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleGrantCredits(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if err := decodeJSON(r, &req); err != nil {
		s.badRequest(w, "invalid json")
		return
	}
	if strings.TrimSpace(req.UID) == "" || req.Amount <= 0 {
		s.badRequest(w, "uid and positive amount required")
		return
	}
	credits, err := s.svc.Users.GrantCredits(r.Context(), strings.TrimSpace(req.UID), req.Amount)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.log.Info("credits granted", "uid", req.UID, "amount", req.Amount, "credits", credits)
	s.writeJSON(w, http.StatusOK, map[string]int{"credits": credits})
}

func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeJSON(r, &req); err != nil {
		s.badRequest(w, "invalid json")
		return
	}
	if strings.TrimSpace(req.UID) == "" {
		s.badRequest(w, "uid required")
		return
	}
	tok, err := s.svc.Tokens.Issue(models.Identity{
		State:       models.IdentityAuthenticated,
		UID:         strings.TrimSpace(req.UID),
		Email:       strings.TrimSpace(req.Email),
		DisplayName: strings.TrimSpace(req.DisplayName),
	})
	if err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"token": tok})
}

func (s *Server) handleAlerts(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.alerts.list())
}

func (s *Server) handleListPromos(w http.ResponseWriter, r *http.Request) {
	promos, err := s.svc.Promos.List(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, promos)
}

func (s *Server) handleCreatePromo(w http.ResponseWriter, r *http.Request) {
	var req promoRequest
	if err := decodeJSON(r, &req); err != nil {
		s.badRequest(w, "invalid json")
		return
	}
	promo, err := s.svc.Promos.Create(r.Context(), req.Code, req.Credits, req.MaxUses)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, promo)
}

func (s *Server) handleDeletePromo(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.badRequest(w, "invalid id")
		return
	}
	if err := s.svc.Promos.Delete(r.Context(), id); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
