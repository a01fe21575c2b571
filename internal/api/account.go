package api

import (
	"io"
	"net/http"
	"strings"
)

type signUpRequest struct {
	DisplayName string `json:"displayName"`
}

type promoRedeemRequest struct {
	Code string `json:"code"`
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := decodeJSON(r, &req); err != nil && err != io.EOF {
		s.badRequest(w, "invalid json")
		return
	}
	acc, err := s.svc.Users.SignUp(r.Context(), identityFrom(r.Context()), req.DisplayName)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, acc)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	acc, err := s.svc.Users.Profile(r.Context(), identityFrom(r.Context()))
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, acc)
}

func (s *Server) handleCreations(w http.ResponseWriter, r *http.Request) {
	logs, err := s.svc.Users.Creations(r.Context(), identityFrom(r.Context()), parseLimit(r, 20, 100))
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, logs)
}

func (s *Server) handleRedeemPromo(w http.ResponseWriter, r *http.Request) {
	var req promoRedeemRequest
	if err := decodeJSON(r, &req); err != nil {
		s.badRequest(w, "invalid json")
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		s.badRequest(w, "code required")
		return
	}
	credits, err := s.svc.Promos.Redeem(r.Context(), identityFrom(r.Context()), req.Code)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"credits": credits})
}
