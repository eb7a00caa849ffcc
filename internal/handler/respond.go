package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lounge-pos/api/internal/cart"
	"github.com/lounge-pos/api/internal/middleware"
	"github.com/lounge-pos/api/internal/service"
	"github.com/lounge-pos/api/internal/session"
	"github.com/rs/zerolog/log"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("encode JSON response")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

var errorStatus = []struct {
	err    error
	status int
}{
	{cart.ErrAuthRequired, http.StatusUnauthorized},

	{cart.ErrInvalidQuantity, http.StatusBadRequest},
	{cart.ErrInvalidStatus, http.StatusBadRequest},
	{cart.ErrInvalidLine, http.StatusBadRequest},
	{service.ErrInvalidQuantity, http.StatusBadRequest},
	{service.ErrInvalidStatusFilter, http.StatusBadRequest},
	{service.ErrItemNotRequested, http.StatusBadRequest},
	{service.ErrQuantityExceedsRequested, http.StatusBadRequest},
	{service.ErrOriginalRequired, http.StatusBadRequest},
	{service.ErrReasonRequired, http.StatusBadRequest},
	{service.ErrInvalidModificationType, http.StatusBadRequest},
	{service.ErrReplacementRequired, http.StatusBadRequest},
	{service.ErrNegativePrice, http.StatusBadRequest},
	{service.ErrQuantityExceedsApproved, http.StatusBadRequest},

	{service.ErrNotRequestOwner, http.StatusForbidden},

	{service.ErrRequestNotFound, http.StatusNotFound},
	{service.ErrFulfillmentNotFound, http.StatusNotFound},
	{service.ErrOriginalNotFound, http.StatusNotFound},
	{service.ErrModificationNotFound, http.StatusNotFound},
	{session.ErrNoRequestLines, http.StatusNotFound},

	{service.ErrRequestNotPending, http.StatusConflict},
	{service.ErrRequestAlreadyPending, http.StatusConflict},
	{service.ErrOriginalNotApproved, http.StatusConflict},
	{service.ErrModificationNotPending, http.StatusConflict},
	{cart.ErrNotPending, http.StatusConflict},
	{session.ErrRequestOpen, http.StatusConflict},
	{session.ErrRequestLinesActive, http.StatusConflict},
	{session.ErrNothingToRequest, http.StatusConflict},
	{session.ErrPendingLines, http.StatusConflict},
	{session.ErrEmptyCart, http.StatusConflict},
}

// writeError maps domain errors to a status. Anything unknown, including
// order store failures, is logged and answered with a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			writeJSON(w, e.status, map[string]string{"error": e.err.Error()})
			return
		}
	}

	ev := log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path)
	var se *cart.StoreError
	if errors.As(err, &se) {
		ev = ev.Str("op", se.Op)
	}
	ev.Msg("request failed")
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}

// repFromRequest returns the sales rep identity carried by the JWT.
func repFromRequest(r *http.Request) (cart.Rep, bool) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		return cart.Rep{}, false
	}
	return cart.Rep{ID: claims.UserID, Name: claims.Name}, true
}
