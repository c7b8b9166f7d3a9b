package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/Wordite/tablecrm-t/internal/form"
	"github.com/Wordite/tablecrm-t/internal/order"
	"github.com/Wordite/tablecrm-t/internal/session"
	"github.com/Wordite/tablecrm-t/internal/tablecrm"
)

type ErrorResponse struct {
	Error   string   `json:"error"`
	Missing []string `json:"missing,omitempty"`
}

type ValidationErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details"`
}

// respondWithError sends a JSON error body
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Error: message})
}

// respondWithJSON sends a JSON response
func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("handler: failed to marshal JSON response")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		log.Error().Err(err).Msg("handler: failed to write JSON response")
	}
}

func mapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, session.ErrNotFound),
		errors.Is(err, form.ErrUnknownClient),
		errors.Is(err, form.ErrUnknownProduct):
		return http.StatusNotFound
	case errors.Is(err, order.ErrIncompleteSale),
		errors.Is(err, form.ErrTokenRequired):
		return http.StatusUnprocessableEntity
	case errors.Is(err, form.ErrSubmissionInFlight):
		return http.StatusConflict
	case errors.Is(err, tablecrm.ErrTransport):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondWithServiceError maps a form service error to a response. Remote
// failures are reported with the remote status but never with its body.
func respondWithServiceError(w http.ResponseWriter, err error) {
	code := mapErrorToStatusCode(err)

	resp := ErrorResponse{}
	switch code {
	case http.StatusNotFound:
		resp.Error = err.Error()
	case http.StatusUnprocessableEntity:
		resp.Error = err.Error()
		var incomplete *order.IncompleteSaleError
		if errors.As(err, &incomplete) {
			resp.Error = "Sale is incomplete"
			resp.Missing = incomplete.Missing
		}
	case http.StatusConflict:
		resp.Error = err.Error()
	case http.StatusBadGateway:
		resp.Error = "tablecrm request failed"
		var apiErr *tablecrm.APIError
		if errors.As(err, &apiErr) {
			resp.Error = fmt.Sprintf("tablecrm responded with status %d", apiErr.StatusCode)
		}
	default:
		log.Error().Err(err).Msg("handler: unexpected service error")
		resp.Error = "Internal server error"
	}
	respondWithJSON(w, code, resp)
}

func newValidator() *validator.Validate {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	validate.RegisterStructValidation(validateUpdateItem, UpdateItemRequest{})
	return validate
}

func formatValidationErrors(errs validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(errs))
	for _, fe := range errs {
		switch fe.Tag() {
		case "required":
			details[fe.Field()] = "is required"
		case "oneof":
			details[fe.Field()] = "must be one of: " + fe.Param()
		case "gt":
			details[fe.Field()] = "must be greater than " + fe.Param()
		case "gte":
			details[fe.Field()] = "must be at least " + fe.Param()
		case "lte":
			details[fe.Field()] = "must be at most " + fe.Param()
		case "max":
			details[fe.Field()] = "must be at most " + fe.Param() + " characters"
		default:
			details[fe.Field()] = "failed on '" + fe.Tag() + "'"
		}
	}
	return details
}

// decodeAndValidate reads a JSON body into dst and runs struct validation.
// It writes the error response itself and reports whether the caller may go on.
func (h *FormHandler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		log.Warn().Err(err).Msg("handler: failed to decode request body")
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request payload: %v", err))
		return false
	}

	if err := h.validate.Struct(dst); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			respondWithJSON(w, http.StatusBadRequest, ValidationErrorResponse{
				Error:   "Validation failed",
				Details: formatValidationErrors(validationErrors),
			})
		} else {
			log.Error().Err(err).Type("validation_error_type", err).Msg("handler: unexpected error type during validation")
			respondWithError(w, http.StatusInternalServerError, "Internal validation error")
		}
		return false
	}
	return true
}
