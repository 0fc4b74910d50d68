package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/zatekoja/localservices/internal/api/middleware"
	"github.com/zatekoja/localservices/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/localservices/pkg/errors"
)

// Helper functions
func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

// errorResponse is the body of a failed action. Retryable tells the client
// whether offering a retry makes sense.
type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable"`
}

// statusFor maps an application error type to its HTTP status
func statusFor(t apperrors.ErrorType) int {
	switch t {
	case apperrors.ErrorTypeValidation:
		return http.StatusBadRequest
	case apperrors.ErrorTypeNotFound:
		return http.StatusNotFound
	case apperrors.ErrorTypeUnauthorized:
		return http.StatusForbidden
	case apperrors.ErrorTypeConflict:
		return http.StatusConflict
	case apperrors.ErrorTypeDiscoveryUnavailable, apperrors.ErrorTypeLocationUnavailable:
		return http.StatusServiceUnavailable
	case apperrors.ErrorTypeConversationCreateFailed, apperrors.ErrorTypeMessageSendFailed,
		apperrors.ErrorTypeExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondWithAppError writes err using its application error type. Internal
// details are logged, never returned.
func respondWithAppError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		appErr = apperrors.NewInternalError("internal server error", err)
	}

	status := statusFor(appErr.Type)
	message := appErr.Message
	if status >= http.StatusInternalServerError {
		observability.LoggerFromContext(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		if appErr.Type == apperrors.ErrorTypeInternal {
			message = "internal server error"
		}
	}

	respondWithJSON(w, status, errorResponse{
		Error:     message,
		Code:      string(appErr.Type),
		Retryable: appErr.Retryable(),
	})
}

// requireCaller returns the request's caller or answers 401
func requireCaller(w http.ResponseWriter, r *http.Request) (middleware.Caller, bool) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, middleware.UserIDHeader+" header is required")
		return middleware.Caller{}, false
	}
	return caller, true
}

func decodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	return json.NewDecoder(r.Body).Decode(v)
}

// intParam parses an optional integer query parameter
func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.NewValidationError("invalid " + name + " parameter")
	}
	return v, nil
}
