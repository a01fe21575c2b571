package api

import (
	"errors"
	"net/http"

	"github.com/digkill/magicpixa/internal/ledger"
)

type creditsResponse struct {
	Credits   int          `json:"credits"`
	IsLoading bool         `json:"isLoading"`
	State     ledger.State `json:"state"`
}

type deductRequest struct {
	Amount int `json:"amount"`
}

type insufficientResponse struct {
	Error   string `json:"error"`
	Credits int    `json:"credits"`
}

// session resolves the request's identity into a ready ledger session.
func (s *Server) session(r *http.Request) (*ledger.Session, error) {
	sess := s.svc.Ledger.NewSession()
	if err := sess.SetIdentity(r.Context(), identityFrom(r.Context())); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Server) handleCredits(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	bal := sess.Balance()
	s.writeJSON(w, http.StatusOK, creditsResponse{Credits: bal.Credits, IsLoading: bal.Loading, State: sess.State()})
}

func (s *Server) handleDeduct(w http.ResponseWriter, r *http.Request) {
	var req deductRequest
	if err := decodeJSON(r, &req); err != nil {
		s.badRequest(w, "invalid json")
		return
	}
	sess, err := s.session(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	credits, err := sess.Deduct(r.Context(), req.Amount)
	if errors.Is(err, ledger.ErrInsufficientCredits) {
		s.writeJSON(w, http.StatusPaymentRequired, insufficientResponse{Error: "Insufficient credits", Credits: credits})
		return
	}
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"credits": credits})
}
