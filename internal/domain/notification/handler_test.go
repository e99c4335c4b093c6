package notification_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"notifyhub/internal/domain/notification"
	"notifyhub/internal/infra/inapp"
	"notifyhub/internal/infra/store"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	inApp := inapp.NewProvider(store.NewMemoryStore(), true)
	chat := &fakeProvider{ch: notification.ChannelChat, available: true}
	svc := newService(t, notification.NewRegistry(inApp, chat), inApp)

	r := gin.New()
	notification.NewHandler(svc).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func do(t *testing.T, r *gin.Engine, method, path string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func TestHandler_Send(t *testing.T) {
	r := newTestRouter(t)

	code, env := do(t, r, http.MethodPost, "/api/v1/send", map[string]any{
		"title":      "系统维护",
		"content":    "今晚 22:00 维护",
		"importance": "high",
	})
	require.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)

	var data struct {
		Success bool                                         `json:"success"`
		Results map[notification.Channel]notification.Result `json:"results"`
		Summary notification.Summary                         `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.True(t, data.Success)
	assert.Equal(t, notification.Summary{Total: 2, Succeeded: 2}, data.Summary)
	assert.NotNil(t, data.Results[notification.ChannelInApp].Data["notification_id"])
}

func TestHandler_SendValidation(t *testing.T) {
	r := newTestRouter(t)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing content", map[string]any{"title": "t"}},
		{"unknown importance", map[string]any{"title": "t", "content": "c", "importance": "urgent"}},
		{"unknown type", map[string]any{"title": "t", "content": "c", "notification_type": "promo"}},
		{"unknown channel", map[string]any{"title": "t", "content": "c", "channels": []string{"fax"}}},
		{"negative expiry", map[string]any{"title": "t", "content": "c", "expiry_hours": -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := do(t, r, http.MethodPost, "/api/v1/send", tt.body)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.False(t, env.Success)
		})
	}
}

func TestHandler_SendByTemplate(t *testing.T) {
	r := newTestRouter(t)

	code, env := do(t, r, http.MethodPost, "/api/v1/templates/payment_success/send", map[string]any{
		"params":   map[string]any{"amount": 99},
		"channels": []string{"in_app"},
	})
	require.Equal(t, http.StatusOK, code)
	var res notification.TemplateSendResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.True(t, res.Success)
	assert.Equal(t, "您的支付已成功完成，金额：$99.00。", res.Message.Content)

	code, _ = do(t, r, http.MethodPost, "/api/v1/templates/nope/send", map[string]any{})
	assert.Equal(t, http.StatusNotFound, code)

	code, env = do(t, r, http.MethodPost, "/api/v1/templates/payment_success/send", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Error.Message, "amount")
}

func TestHandler_Templates(t *testing.T) {
	r := newTestRouter(t)

	code, env := do(t, r, http.MethodGet, "/api/v1/templates/payment_success", nil)
	require.Equal(t, http.StatusOK, code)
	var tmpl notification.Template
	require.NoError(t, json.Unmarshal(env.Data, &tmpl))
	assert.Equal(t, 1, tmpl.Version)

	tmpl.Title = "付款成功"
	tmpl.Version = 0
	code, env = do(t, r, http.MethodPut, "/api/v1/templates/payment_success", tmpl)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &tmpl))
	assert.Equal(t, 2, tmpl.Version)
	assert.Equal(t, "付款成功", tmpl.Title)

	code, _ = do(t, r, http.MethodGet, "/api/v1/templates/nope", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestHandler_InboxFlow(t *testing.T) {
	r := newTestRouter(t)

	code, _ := do(t, r, http.MethodPost, "/api/v1/warnings/project-inactivity", map[string]any{
		"project_id": 7, "order_id": 42, "project_title": "Mall",
		"client_id": 100, "developer_id": 200,
		"days_without_commits": 4, "total_commit_count": 2,
	})
	require.Equal(t, http.StatusOK, code)

	code, env := do(t, r, http.MethodGet, "/api/v1/users/100/notifications?role=client&unread_only=true", nil)
	require.Equal(t, http.StatusOK, code)
	var list struct {
		Notifications []notification.InboxItem `json:"notifications"`
		Count         int                      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Equal(t, 1, list.Count)
	id := list.Notifications[0].ID

	code, _ = do(t, r, http.MethodPost, "/api/v1/notifications/"+strconv.FormatInt(id, 10)+"/read", map[string]any{"user_id": 100})
	require.Equal(t, http.StatusOK, code)

	code, env = do(t, r, http.MethodGet, "/api/v1/users/100/notifications/unread-count?role=client", nil)
	require.Equal(t, http.StatusOK, code)
	var count struct {
		UnreadCount int `json:"unread_count"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &count))
	assert.Zero(t, count.UnreadCount)

	code, _ = do(t, r, http.MethodPost, "/api/v1/notifications/999/read", map[string]any{"user_id": 100})
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, r, http.MethodGet, "/api/v1/users/abc/notifications", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestHandler_WarningValidation(t *testing.T) {
	r := newTestRouter(t)

	code, _ := do(t, r, http.MethodPost, "/api/v1/warnings/project-inactivity", map[string]any{"project_id": 7})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestHandler_StatusAndRules(t *testing.T) {
	r := newTestRouter(t)

	code, env := do(t, r, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, code)
	var status notification.SystemStatus
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.Equal(t, "notifyhub", status.Service)
	assert.ElementsMatch(t, []notification.Channel{notification.ChannelInApp, notification.ChannelChat}, status.AvailableProviders)

	code, _ = do(t, r, http.MethodPut, "/api/v1/rules/email", map[string]any{"enabled": true, "types": []string{"payment"}})
	assert.Equal(t, http.StatusOK, code)

	code, _ = do(t, r, http.MethodPut, "/api/v1/rules/fax", map[string]any{"enabled": true})
	assert.Equal(t, http.StatusBadRequest, code)
}
