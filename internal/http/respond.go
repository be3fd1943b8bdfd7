package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/tamoykinden/Final-project-auto-purch/internal/domain"
	"github.com/tamoykinden/Final-project-auto-purch/internal/order"
	"github.com/tamoykinden/Final-project-auto-purch/pkg/logger"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

type FieldErrorDTO struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleServiceError converts errors of the services into HTTP status codes.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var shortages domain.OutOfStockErrors
	var shortage *domain.OutOfStockError
	var invalid validator.ValidationErrors

	switch {
	case errors.As(err, &shortages):
		respondJSON(w, http.StatusConflict, ErrorResponse{Error: domain.ErrOutOfStock.Error(), Code: "out_of_stock", Details: shortages})
	case errors.As(err, &shortage):
		respondJSON(w, http.StatusConflict, ErrorResponse{Error: domain.ErrOutOfStock.Error(), Code: "out_of_stock", Details: []*domain.OutOfStockError{shortage}})
	case errors.As(err, &invalid):
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "request validation failed", Code: "validation_error", Details: fieldErrors(invalid)})
	case errors.Is(err, domain.ErrInvalidQuantity):
		respondError(w, http.StatusBadRequest, "invalid_quantity", err.Error())
	case errors.Is(err, domain.ErrEmptyCart):
		respondError(w, http.StatusUnprocessableEntity, "empty_cart", err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		respondError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, domain.ErrSupplierUnavailable):
		respondError(w, http.StatusConflict, "supplier_unavailable", err.Error())
	case errors.Is(err, order.ErrStatusConflict):
		respondError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrForbidden):
		respondError(w, http.StatusForbidden, "forbidden", err.Error())
	default:
		logger.FromContext(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func fieldErrors(errs validator.ValidationErrors) []FieldErrorDTO {
	out := make([]FieldErrorDTO, 0, len(errs))
	for _, fe := range errs {
		// drop the DTO type name, keep the json path
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		out = append(out, FieldErrorDTO{Field: field, Rule: fe.Tag()})
	}
	return out
}
