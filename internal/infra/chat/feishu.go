package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"notifyhub/internal/domain/notification"
)

var _ notification.Provider = (*FeishuProvider)(nil)

const (
	defaultBaseURL = "https://open.feishu.cn/open-apis"
	warningType    = "系统通知预警"
	contentLimit   = 200

	// tokenMargin is subtracted from the advertised token lifetime.
	tokenMargin = 5 * time.Minute
)

// Feishu codes meaning the tenant token is missing, invalid or expired.
var tokenRejectedCodes = []int{99991661, 99991663, 99991668}

// Config holds Feishu bot settings.
type Config struct {
	Enabled   bool
	AppID     string
	AppSecret string
	ChatID    string
	BaseURL   string
	Timeout   time.Duration
}

// FeishuProvider posts notifications to a Feishu group chat as a bot.
type FeishuProvider struct {
	cfg        Config
	httpClient *http.Client
	now        func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewFeishuProvider creates a Feishu provider. The token is fetched on first send.
func NewFeishuProvider(cfg Config) *FeishuProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &FeishuProvider{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		now:        time.Now,
	}
}

// Channel returns the chat channel identifier.
func (p *FeishuProvider) Channel() notification.Channel {
	return notification.ChannelChat
}

// IsAvailable reports whether the provider is enabled and configured.
func (p *FeishuProvider) IsAvailable() bool {
	return p.cfg.Enabled && p.ValidateConfig()
}

// ValidateConfig reports whether app credentials and a chat id are present.
func (p *FeishuProvider) ValidateConfig() bool {
	return p.cfg.AppID != "" && p.cfg.AppSecret != "" && p.cfg.ChatID != ""
}

// Status returns a diagnostic snapshot.
func (p *FeishuProvider) Status() notification.ProviderStatus {
	return notification.ProviderStatus{
		Channel:     notification.ChannelChat,
		Enabled:     p.cfg.Enabled,
		Available:   p.IsAvailable(),
		ConfigValid: p.ValidateConfig(),
		Details: map[string]any{
			"chat_id":               p.cfg.ChatID,
			"app_id_configured":     p.cfg.AppID != "",
			"app_secret_configured": p.cfg.AppSecret != "",
		},
	}
}

// detail is one line of the warning block.
type detail struct {
	key   string
	value string
}

// Send posts msg to the configured chat as a warning. Failures are returned as results.
func (p *FeishuProvider) Send(ctx context.Context, msg *notification.Message, opts notification.SendOptions) (notification.Result, error) {
	token, err := p.accessToken(ctx)
	if err != nil {
		slog.Error("feishu token fetch failed", "error", err)
		return notification.Failed(notification.ChannelChat, notification.CodeSendFailed,
			"failed to get access token", err.Error()), nil
	}

	details := buildDetails(msg, opts.Details)
	sentAt := p.now().Format("2006-01-02 15:04:05")

	var msgType string
	var content any
	if opts.RichText {
		msgType = "post"
		content = richContent(msg.Title, details, sentAt)
	} else {
		msgType = "text"
		content = map[string]string{"text": warningText(msg.Title, msg.Importance, details, sentAt)}
	}

	data, err := p.postMessage(ctx, token, msgType, content)
	if err != nil {
		slog.Warn("feishu message failed", "title", msg.Title, "error", err)
		return notification.Failed(notification.ChannelChat, notification.CodeSendFailed,
			"chat message failed", err.Error()), nil
	}

	slog.Info("feishu message sent", "title", msg.Title, "msg_type", msgType)
	return notification.Succeeded(notification.ChannelChat, "chat message sent", data), nil
}

// buildDetails lists type, importance and truncated content, then caller
// details sorted by key. Caller details may replace the first three.
func buildDetails(msg *notification.Message, extra map[string]string) []detail {
	details := []detail{
		{"通知类型", string(msg.Type)},
		{"重要级别", string(msg.Importance)},
		{"内容", truncate(msg.Content, contentLimit)},
	}
	for _, k := range slices.Sorted(maps.Keys(extra)) {
		replaced := false
		for i := range details {
			if details[i].key == k {
				details[i].value = extra[k]
				replaced = true
			}
		}
		if !replaced {
			details = append(details, detail{k, extra[k]})
		}
	}
	return details
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

func glyph(imp notification.Importance) string {
	switch imp {
	case notification.ImportanceHigh:
		return "🔴"
	case notification.ImportanceNormal:
		return "🟡"
	case notification.ImportanceLow:
		return "🟢"
	default:
		return "🔵"
	}
}

func warningText(title string, imp notification.Importance, details []detail, sentAt string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s 【%s】%s\n\n", glyph(imp), warningType, title)
	for _, d := range details {
		fmt.Fprintf(&b, "• %s: %s\n", d.key, d.value)
	}
	fmt.Fprintf(&b, "\n⏰ 发送时间: %s", sentAt)
	return b.String()
}

type postElement struct {
	Tag  string `json:"tag"`
	Text string `json:"text"`
}

func richContent(title string, details []detail, sentAt string) map[string]any {
	paragraphs := make([][]postElement, 0, len(details)+1)
	for _, d := range details {
		paragraphs = append(paragraphs, []postElement{{Tag: "text", Text: d.key + ": " + d.value}})
	}
	paragraphs = append(paragraphs, []postElement{{Tag: "text", Text: "⏰ 发送时间: " + sentAt}})
	return map[string]any{
		"zh_cn": map[string]any{
			"title":   title,
			"content": paragraphs,
		},
	}
}

// accessToken returns the cached tenant token, fetching a new one when none
// is cached or the cached one is about to expire. Concurrent callers share one fetch.
func (p *FeishuProvider) accessToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && (p.expiresAt.IsZero() || p.now().Before(p.expiresAt)) {
		return p.token, nil
	}

	body, err := json.Marshal(map[string]string{"app_id": p.cfg.AppID, "app_secret": p.cfg.AppSecret})
	if err != nil {
		return "", fmt.Errorf("marshaling token request: %w", err)
	}

	var out struct {
		Code              int    `json:"code"`
		Msg               string `json:"msg"`
		TenantAccessToken string `json:"tenant_access_token"`
		Expire            int    `json:"expire"`
	}
	if err := p.do(ctx, p.cfg.BaseURL+"/auth/v3/tenant_access_token/internal", "", body, &out); err != nil {
		return "", err
	}
	if out.Code != 0 || out.TenantAccessToken == "" {
		return "", fmt.Errorf("feishu token: code %d: %s", out.Code, out.Msg)
	}

	p.token = out.TenantAccessToken
	p.expiresAt = time.Time{}
	if out.Expire > 0 {
		lifetime := time.Duration(out.Expire) * time.Second
		p.expiresAt = p.now().Add(max(lifetime-tokenMargin, lifetime/2))
	}
	return p.token, nil
}

func (p *FeishuProvider) invalidateToken(stale string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token == stale {
		p.token = ""
		p.expiresAt = time.Time{}
	}
}

func (p *FeishuProvider) postMessage(ctx context.Context, token, msgType string, content any) (map[string]any, error) {
	encoded, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("marshaling message content: %w", err)
	}
	body, err := json.Marshal(map[string]string{
		"receive_id": p.cfg.ChatID,
		"msg_type":   msgType,
		"content":    string(encoded),
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling message: %w", err)
	}

	var out struct {
		Code int            `json:"code"`
		Msg  string         `json:"msg"`
		Data map[string]any `json:"data"`
	}
	if err := p.do(ctx, p.cfg.BaseURL+"/im/v1/messages?receive_id_type=chat_id", token, body, &out); err != nil {
		return nil, err
	}
	if out.Code != 0 {
		if slices.Contains(tokenRejectedCodes, out.Code) {
			p.invalidateToken(token)
		}
		if out.Msg == "" {
			out.Msg = fmt.Sprintf("feishu error code %d", out.Code)
		}
		return nil, errors.New(out.Msg)
	}
	return out.Data, nil
}

// do posts a JSON body and decodes the JSON reply into out. Feishu reports
// most failures in the body, so non-2xx replies carrying a code are left to
// the caller; any other non-2xx reply is an error.
func (p *FeishuProvider) do(ctx context.Context, url, token string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB max
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("feishu: status %d: %s", resp.StatusCode, upstreamText(respBody))
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var envelope struct {
			Code int `json:"code"`
		}
		_ = json.Unmarshal(respBody, &envelope)
		if envelope.Code == 0 {
			return fmt.Errorf("feishu: status %d: %s", resp.StatusCode, upstreamText(respBody))
		}
	}
	return nil
}

// upstreamText shortens a reply body for error messages.
func upstreamText(body []byte) string {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return "empty response"
	}
	return truncate(text, contentLimit)
}
