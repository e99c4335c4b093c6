package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"notifyhub/internal/domain/notification"
)

var _ notification.Provider = (*ResendProvider)(nil)

const defaultEndpoint = "https://api.resend.com/emails"

// Config holds Resend settings.
type Config struct {
	Enabled     bool
	APIKey      string
	FromAddress string
	FromName    string
	Endpoint    string
}

// ResendProvider sends emails using the Resend API.
type ResendProvider struct {
	cfg        Config
	httpClient *http.Client
}

// NewResendProvider creates a new Resend email provider.
func NewResendProvider(cfg Config) *ResendProvider {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	return &ResendProvider{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Channel returns the email channel identifier.
func (p *ResendProvider) Channel() notification.Channel {
	return notification.ChannelEmail
}

// IsAvailable reports whether the provider is enabled and configured.
func (p *ResendProvider) IsAvailable() bool {
	return p.cfg.Enabled && p.ValidateConfig()
}

// ValidateConfig reports whether an API key and sender address are set.
func (p *ResendProvider) ValidateConfig() bool {
	return p.cfg.APIKey != "" && p.cfg.FromAddress != ""
}

// Status returns a diagnostic snapshot.
func (p *ResendProvider) Status() notification.ProviderStatus {
	return notification.ProviderStatus{
		Channel:     notification.ChannelEmail,
		Enabled:     p.cfg.Enabled,
		Available:   p.IsAvailable(),
		ConfigValid: p.ValidateConfig(),
		Details: map[string]any{
			"from_address":       p.cfg.FromAddress,
			"api_key_configured": p.cfg.APIKey != "",
		},
	}
}

// Send mails msg to opts.Email via the Resend API.
func (p *ResendProvider) Send(ctx context.Context, msg *notification.Message, opts notification.SendOptions) (notification.Result, error) {
	if opts.Email == "" {
		return notification.Failed(notification.ChannelEmail, notification.CodeRecipientMissing,
			"email address is required", "Email address is required"), nil
	}

	id, err := p.deliver(ctx, opts.Email, msg)
	if err != nil {
		slog.Warn("email send failed", "to", opts.Email, "error", err)
		return notification.Failed(notification.ChannelEmail, notification.CodeSendFailed, "email send failed", err.Error()), nil
	}

	slog.Info("email sent", "to", opts.Email, "provider_message_id", id)
	return notification.Succeeded(notification.ChannelEmail, "email sent", map[string]any{
		"provider_message_id": id,
		"to":                  opts.Email,
	}), nil
}

func (p *ResendProvider) deliver(ctx context.Context, to string, msg *notification.Message) (string, error) {
	from := p.cfg.FromAddress
	if p.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", p.cfg.FromName, p.cfg.FromAddress)
	}

	payload := map[string]any{
		"from":    from,
		"to":      []string{to},
		"subject": msg.Title,
		"html":    renderHTML(msg),
		"text":    msg.Content,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshaling email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB max
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Message    string `json:"message"`
			StatusCode int    `json:"statusCode"`
		}
		_ = json.Unmarshal(respBody, &errResp)

		msg := errResp.Message
		if msg == "" {
			msg = fmt.Sprintf("resend API error: status %d", resp.StatusCode)
		}
		return "", fmt.Errorf("resend: %s", msg)
	}

	var successResp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &successResp); err != nil {
		return "", fmt.Errorf("parsing resend response: %w", err)
	}

	return successResp.ID, nil
}

// renderHTML wraps the plain content in a minimal escaped body.
func renderHTML(msg *notification.Message) string {
	var b strings.Builder
	b.WriteString("<h2>")
	b.WriteString(html.EscapeString(msg.Title))
	b.WriteString("</h2>")
	for line := range strings.SplitSeq(msg.Content, "\n") {
		if line == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(html.EscapeString(line))
		b.WriteString("</p>")
	}
	return b.String()
}
