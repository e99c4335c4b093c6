package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"notifyhub/internal/domain/notification"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFeishu struct {
	tokenCalls   atomic.Int32
	messageCalls atomic.Int32
	messageCode  int
	lastAuth     string
	lastBody     map[string]string
}

func (f *fakeFeishu) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/v3/tenant_access_token/internal", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		if in["app_secret"] != "secret" {
			_ = json.NewEncoder(w).Encode(map[string]any{"code": 10014, "msg": "app secret invalid"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code": 0, "msg": "ok", "tenant_access_token": "t-123", "expire": 7200,
		})
	})
	mux.HandleFunc("POST /im/v1/messages", func(w http.ResponseWriter, r *http.Request) {
		f.messageCalls.Add(1)
		assert.Equal(t, "chat_id", r.URL.Query().Get("receive_id_type"))
		f.lastAuth = r.Header.Get("Authorization")
		f.lastBody = nil
		require.NoError(t, json.NewDecoder(r.Body).Decode(&f.lastBody))
		if f.messageCode != 0 {
			_ = json.NewEncoder(w).Encode(map[string]any{"code": f.messageCode, "msg": "bot is not in the chat"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code": 0, "msg": "success", "data": map[string]any{"message_id": "om_1"},
		})
	})
	return mux
}

func newTestProvider(t *testing.T, secret string) (*FeishuProvider, *fakeFeishu, *time.Time) {
	t.Helper()
	f := &fakeFeishu{}
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)

	now := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	p := NewFeishuProvider(Config{
		Enabled: true, AppID: "cli_a", AppSecret: secret, ChatID: "oc_1", BaseURL: srv.URL,
	})
	p.now = func() time.Time { return now }
	return p, f, &now
}

func alert() *notification.Message {
	return &notification.Message{
		Title:      "项目提交预警",
		Content:    "项目「Mall」已连续6天没有代码提交",
		Type:       notification.TypeProject,
		Importance: notification.ImportanceHigh,
	}
}

func TestSend_TextMessage(t *testing.T) {
	p, f, _ := newTestProvider(t, "secret")

	res, err := p.Send(context.Background(), alert(), notification.SendOptions{
		Details: map[string]string{"project_id": "7"},
	})
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, notification.ChannelChat, res.Channel)
	assert.Equal(t, "om_1", res.Data["message_id"])

	assert.Equal(t, "Bearer t-123", f.lastAuth)
	assert.Equal(t, "oc_1", f.lastBody["receive_id"])
	assert.Equal(t, "text", f.lastBody["msg_type"])

	var content map[string]string
	require.NoError(t, json.Unmarshal([]byte(f.lastBody["content"]), &content))
	want := "🔴 【系统通知预警】项目提交预警\n\n" +
		"• 通知类型: project\n" +
		"• 重要级别: high\n" +
		"• 内容: 项目「Mall」已连续6天没有代码提交\n" +
		"• project_id: 7\n" +
		"\n⏰ 发送时间: 2026-03-02 09:30:00"
	assert.Equal(t, want, content["text"])
}

func TestSend_RichText(t *testing.T) {
	p, f, _ := newTestProvider(t, "secret")

	res, err := p.Send(context.Background(), alert(), notification.SendOptions{RichText: true})
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "post", f.lastBody["msg_type"])

	var content struct {
		ZhCN struct {
			Title   string          `json:"title"`
			Content [][]postElement `json:"content"`
		} `json:"zh_cn"`
	}
	require.NoError(t, json.Unmarshal([]byte(f.lastBody["content"]), &content))
	assert.Equal(t, "项目提交预警", content.ZhCN.Title)
	require.Len(t, content.ZhCN.Content, 4)
	assert.Equal(t, "通知类型: project", content.ZhCN.Content[0][0].Text)
}

func TestSend_TokenCached(t *testing.T) {
	p, f, now := newTestProvider(t, "secret")
	ctx := context.Background()

	for range 3 {
		res, err := p.Send(ctx, alert(), notification.SendOptions{})
		require.NoError(t, err)
		require.True(t, res.Success)
	}
	assert.Equal(t, int32(1), f.tokenCalls.Load())

	*now = now.Add(2 * time.Hour)
	_, err := p.Send(ctx, alert(), notification.SendOptions{})
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.tokenCalls.Load())
}

func TestSend_RejectedTokenIsDropped(t *testing.T) {
	p, f, _ := newTestProvider(t, "secret")
	ctx := context.Background()
	f.messageCode = 99991663

	res, err := p.Send(ctx, alert(), notification.SendOptions{})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, int32(1), f.messageCalls.Load())

	f.messageCode = 0
	res, err = p.Send(ctx, alert(), notification.SendOptions{})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, int32(2), f.tokenCalls.Load())
}

func TestSend_MessageFailure(t *testing.T) {
	p, f, _ := newTestProvider(t, "secret")
	f.messageCode = 230002

	res, err := p.Send(context.Background(), alert(), notification.SendOptions{})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, notification.CodeSendFailed, res.Code)
	assert.Equal(t, "bot is not in the chat", res.Error)
	assert.Equal(t, int32(1), f.tokenCalls.Load())
}

func TestSend_HTTPErrorWithoutCode(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/v3/tenant_access_token/internal", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"code": 0, "tenant_access_token": "t-1", "expire": 7200})
	})
	mux.HandleFunc("POST /im/v1/messages", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"upstream unavailable"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	p := NewFeishuProvider(Config{Enabled: true, AppID: "cli_a", AppSecret: "secret", ChatID: "oc_1", BaseURL: srv.URL})
	res, err := p.Send(context.Background(), alert(), notification.SendOptions{})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, notification.CodeSendFailed, res.Code)
	assert.Contains(t, res.Error, "status 502")
	assert.Contains(t, res.Error, "upstream unavailable")
}

func TestSend_HTTPErrorWithCodeKeepsUpstreamMessage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/v3/tenant_access_token/internal", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"code": 0, "tenant_access_token": "t-1", "expire": 7200})
	})
	mux.HandleFunc("POST /im/v1/messages", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"code": 230001, "msg": "invalid receive_id"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	p := NewFeishuProvider(Config{Enabled: true, AppID: "cli_a", AppSecret: "secret", ChatID: "oc_1", BaseURL: srv.URL})
	res, err := p.Send(context.Background(), alert(), notification.SendOptions{})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "invalid receive_id", res.Error)
}

func TestSend_TokenFailure(t *testing.T) {
	p, f, _ := newTestProvider(t, "wrong")

	res, err := p.Send(context.Background(), alert(), notification.SendOptions{})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "app secret invalid")
	assert.Zero(t, f.messageCalls.Load())
}

func TestBuildDetails(t *testing.T) {
	msg := alert()
	msg.Content = strings.Repeat("字", 250)

	details := buildDetails(msg, map[string]string{"b": "2", "a": "1", "重要级别": "critical"})
	require.Len(t, details, 5)
	assert.Equal(t, []rune(strings.Repeat("字", 200)+"..."), []rune(details[2].value))
	assert.Equal(t, "critical", details[1].value)
	assert.Equal(t, "a", details[3].key)
	assert.Equal(t, "b", details[4].key)
}

func TestGlyph(t *testing.T) {
	assert.Equal(t, "🔴", glyph(notification.ImportanceHigh))
	assert.Equal(t, "🟡", glyph(notification.ImportanceNormal))
	assert.Equal(t, "🟢", glyph(notification.ImportanceLow))
	assert.Equal(t, "🔵", glyph(""))
}

func TestAvailability(t *testing.T) {
	full := Config{Enabled: true, AppID: "a", AppSecret: "s", ChatID: "c"}
	assert.True(t, NewFeishuProvider(full).IsAvailable())

	noChat := full
	noChat.ChatID = ""
	assert.False(t, NewFeishuProvider(noChat).IsAvailable())

	disabled := full
	disabled.Enabled = false
	p := NewFeishuProvider(disabled)
	assert.False(t, p.IsAvailable())
	assert.True(t, p.ValidateConfig())

	status := NewFeishuProvider(Config{AppID: "a"}).Status()
	assert.Equal(t, true, status.Details["app_id_configured"])
	assert.Equal(t, false, status.Details["app_secret_configured"])
}
