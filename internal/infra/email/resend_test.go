package email

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"notifyhub/internal/domain/notification"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMessage() *notification.Message {
	return &notification.Message{Title: "订单已支付", Content: "订单 #12 <已支付>\n请及时处理"}
}

func TestSend(t *testing.T) {
	var payload map[string]any
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "re_1"})
	}))
	defer srv.Close()

	p := NewResendProvider(Config{
		Enabled: true, APIKey: "key", FromAddress: "noreply@example.com", FromName: "Platform", Endpoint: srv.URL,
	})

	res, err := p.Send(context.Background(), testMessage(), notification.SendOptions{Email: "a@example.com"})
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "re_1", res.Data["provider_message_id"])

	assert.Equal(t, "Bearer key", auth)
	assert.Equal(t, "Platform <noreply@example.com>", payload["from"])
	assert.Equal(t, []any{"a@example.com"}, payload["to"])
	assert.Equal(t, "订单已支付", payload["subject"])
	assert.Equal(t, "<h2>订单已支付</h2><p>订单 #12 &lt;已支付&gt;</p><p>请及时处理</p>", payload["html"])
}

func TestSend_RequiresAddress(t *testing.T) {
	p := NewResendProvider(Config{Enabled: true, APIKey: "key", FromAddress: "noreply@example.com"})

	res, err := p.Send(context.Background(), testMessage(), notification.SendOptions{})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, notification.CodeRecipientMissing, res.Code)
}

func TestSend_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]any{"statusCode": 422, "message": "Invalid `to` field"})
	}))
	defer srv.Close()

	p := NewResendProvider(Config{Enabled: true, APIKey: "key", FromAddress: "noreply@example.com", Endpoint: srv.URL})

	res, err := p.Send(context.Background(), testMessage(), notification.SendOptions{Email: "bad"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, notification.CodeSendFailed, res.Code)
	assert.Equal(t, "resend: Invalid `to` field", res.Error)
}

func TestAvailability(t *testing.T) {
	assert.False(t, NewResendProvider(Config{Enabled: true, APIKey: "key"}).IsAvailable())
	assert.False(t, NewResendProvider(Config{APIKey: "key", FromAddress: "a@b"}).IsAvailable())
	assert.True(t, NewResendProvider(Config{Enabled: true, APIKey: "key", FromAddress: "a@b"}).IsAvailable())
}
