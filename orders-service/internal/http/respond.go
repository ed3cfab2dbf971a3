package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fjod/go_shop/orders-service/internal/domain"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// the status line is already out, nothing useful left to do on failure
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

func statusForKind(k domain.Kind) int {
	switch k {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindBusinessValidation, domain.KindSignatureInvalid:
		return http.StatusBadRequest
	case domain.KindStockNotEnough:
		return http.StatusConflict
	case domain.KindNotImplemented:
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}

// handleServiceError maps the domain taxonomy onto HTTP. Anything outside it is logged and hidden.
func handleServiceError(w http.ResponseWriter, log *zap.Logger, err error) {
	var de *domain.Error
	if errors.As(err, &de) {
		respondJSON(w, statusForKind(de.Kind), ErrorResponse{
			Error:   de.Error(),
			Code:    string(de.Kind),
			Details: de.Product,
		})
		return
	}
	log.Error("request failed", zap.Error(err))
	respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}
