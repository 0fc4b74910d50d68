package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/zatekoja/localservices/pkg/errors"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		errType apperrors.ErrorType
		want    int
	}{
		{apperrors.ErrorTypeValidation, http.StatusBadRequest},
		{apperrors.ErrorTypeNotFound, http.StatusNotFound},
		{apperrors.ErrorTypeUnauthorized, http.StatusForbidden},
		{apperrors.ErrorTypeConflict, http.StatusConflict},
		{apperrors.ErrorTypeDiscoveryUnavailable, http.StatusServiceUnavailable},
		{apperrors.ErrorTypeLocationUnavailable, http.StatusServiceUnavailable},
		{apperrors.ErrorTypeConversationCreateFailed, http.StatusBadGateway},
		{apperrors.ErrorTypeMessageSendFailed, http.StatusBadGateway},
		{apperrors.ErrorTypeExternal, http.StatusBadGateway},
		{apperrors.ErrorTypeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.errType), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.errType))
		})
	}
}

func TestRespondWithAppError(t *testing.T) {
	t.Run("retryable failure", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/conversations/c1/messages", nil)

		respondWithAppError(w, r, apperrors.NewMessageSendFailedError("failed to send message", errors.New("timeout")))

		assert.Equal(t, http.StatusBadGateway, w.Code)
		var body errorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, string(apperrors.ErrorTypeMessageSendFailed), body.Code)
		assert.True(t, body.Retryable)
	})

	t.Run("internal details are masked", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/conversations", nil)

		respondWithAppError(w, r, errors.New("pq: connection refused"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		var body errorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "internal server error", body.Error)
		assert.NotContains(t, w.Body.String(), "pq:")
	})

	t.Run("validation message is kept", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPut, "/api/settings/radius", nil)

		respondWithAppError(w, r, apperrors.NewValidationError("radius must be between 1 and 50 km"))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var body errorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "radius must be between 1 and 50 km", body.Error)
		assert.False(t, body.Retryable)
	})
}
