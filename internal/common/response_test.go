package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func handle(t *testing.T, err error) (int, APIResponse) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	HandleError(c, err)

	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w.Code, resp
}

func TestHandleError_ProviderDetailStaysInternal(t *testing.T) {
	code, resp := handle(t, fmt.Errorf("sending: %w", NewProviderError("sms", "isv.BUSINESS_LIMIT_CONTROL")))

	assert.Equal(t, http.StatusBadGateway, code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "notification delivery failed", resp.Error.Message)
	assert.NotContains(t, resp.Error.Message, "BUSINESS_LIMIT_CONTROL")
}

func TestHandleError_Mapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", NewNotFoundError("notification", "9"), http.StatusNotFound},
		{"template not found", NewTemplateNotFoundError("nope"), http.StatusNotFound},
		{"param missing", NewTemplateParamMissingError("payment_success", "amount"), http.StatusBadRequest},
		{"validation", NewValidationError("bad"), http.StatusBadRequest},
		{"unauthorized", NewUnauthorizedError("no"), http.StatusUnauthorized},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := handle(t, tt.err)
			assert.Equal(t, tt.want, code)
			assert.False(t, resp.Success)
		})
	}
}
