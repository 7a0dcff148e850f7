package util

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errSentinel = errors.New("sentinel")

func TestAppErrorUnwrapReachesCause(t *testing.T) {
	err := ErrActionInProgress(errSentinel)

	assert.ErrorIs(t, err, errSentinel)
	assert.True(t, HasCode(err, ErrCodeActionInProgress))
	assert.Equal(t, http.StatusConflict, err.StatusCode)
}

func TestSessionExpiredCarriesRedirect(t *testing.T) {
	err := ErrSessionExpired(nil)

	assert.Equal(t, http.StatusUnauthorized, err.StatusCode)
	assert.Equal(t, map[string]string{"redirect": "/login"}, err.Details)
}

func TestValidationWithoutFieldsHasNoDetails(t *testing.T) {
	assert.Nil(t, ErrValidation("bad", nil).Details)
	assert.Equal(t, map[string]string{"name": "required"}, ErrValidation("bad", map[string]string{"name": "required"}).Details)
}

func TestSendErrorEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"app error", ErrRemoteFailure("Failed to start bot", errSentinel), http.StatusBadGateway, ErrCodeRemoteFailure},
		{"plain error", errSentinel, http.StatusInternalServerError, ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			SendError(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			var resp Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}
