package api

import (
	"errors"
	"net/http"

	"github.com/digkill/magicpixa/internal/intake"
	"github.com/digkill/magicpixa/internal/ledger"
	"github.com/digkill/magicpixa/internal/service"
)

// fail maps a domain error to its HTTP status and writes {error}.
func (s *Server) fail(w http.ResponseWriter, err error) {
	var genErr *service.GenerationError
	switch {
	case errors.As(err, &genErr):
		s.writeError(w, http.StatusInternalServerError, genErr.Error())
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, service.ErrPromoInvalid):
		s.badRequest(w, err.Error())
	case errors.Is(err, service.ErrNotAuthenticated):
		s.writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, ledger.ErrInsufficientCredits):
		s.writeError(w, http.StatusPaymentRequired, "Insufficient credits")
	case errors.Is(err, ledger.ErrPermissionDenied):
		s.writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrAccountNotFound), errors.Is(err, service.ErrUnknownFeature):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrIdentityLoading),
		errors.Is(err, service.ErrPromoAlreadyRedeemed),
		errors.Is(err, service.ErrPromoExhausted),
		errors.Is(err, service.ErrPromoInUse):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, intake.ErrFileTooLarge):
		s.writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, intake.ErrUnsupportedFile):
		s.writeError(w, http.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, intake.ErrProcessing):
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ledger.ErrStoreUnavailable):
		s.log.Warn("credit store unavailable", "err", err)
		s.writeError(w, http.StatusServiceUnavailable, "Credit service is temporarily unavailable. Please try again.")
	default:
		s.internalError(w, err)
	}
}
