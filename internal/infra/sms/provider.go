package sms

import (
	"context"
	"log/slog"

	"notifyhub/internal/domain/notification"
)

var (
	_ notification.Provider        = (*Provider)(nil)
	_ notification.UserBatchSender = (*Provider)(nil)
	_ Gateway                      = (*AliyunGateway)(nil)
)

// Gateway is the SMS vendor boundary. Only the commit warning template exists.
type Gateway interface {
	SendProjectCommitWarning(ctx context.Context, phone string, params notification.SMSParams) error
}

// Config controls the SMS provider.
type Config struct {
	Enabled         bool
	AccessKeyID     string
	AccessKeySecret string
}

// Provider delivers notifications by SMS.
type Provider struct {
	cfg      Config
	gateway  Gateway
	contacts notification.ContactDirectory
	limiter  notification.RecipientRateLimiter
}

// NewProvider creates an SMS provider. contacts and limiter may be nil.
func NewProvider(cfg Config, gateway Gateway, contacts notification.ContactDirectory, limiter notification.RecipientRateLimiter) *Provider {
	return &Provider{
		cfg:      cfg,
		gateway:  gateway,
		contacts: contacts,
		limiter:  limiter,
	}
}

// Channel returns the SMS channel identifier.
func (p *Provider) Channel() notification.Channel {
	return notification.ChannelSMS
}

// IsAvailable reports whether the provider is enabled, configured and has a gateway.
func (p *Provider) IsAvailable() bool {
	return p.cfg.Enabled && p.gateway != nil && p.ValidateConfig()
}

// ValidateConfig reports whether the vendor credential pair is present.
func (p *Provider) ValidateConfig() bool {
	return p.cfg.AccessKeyID != "" && p.cfg.AccessKeySecret != ""
}

// Send texts msg to opts.Phone. Only commit warnings are supported.
func (p *Provider) Send(ctx context.Context, msg *notification.Message, opts notification.SendOptions) (notification.Result, error) {
	phone := opts.Phone
	if phone == "" {
		return notification.Failed(notification.ChannelSMS, notification.CodeRecipientMissing,
			"phone number is required", "Phone number is required"), nil
	}
	if msg.Extra.TemplateID != notification.TemplateProjectCommitWarning {
		return notification.Failed(notification.ChannelSMS, notification.CodeNotImplemented,
			"no SMS template for this notification", "generic SMS not implemented"), nil
	}

	if p.limiter != nil {
		allowed, err := p.limiter.Allow(ctx, notification.ChannelSMS, phone)
		if err != nil {
			slog.Error("sms rate limit check failed, proceeding without limit", "phone", maskPhone(phone), "error", err)
		} else if !allowed {
			return notification.Failed(notification.ChannelSMS, notification.CodeRateLimited,
				"SMS rate limit exceeded", "rate limit exceeded for recipient"), nil
		}
	}

	if err := p.gateway.SendProjectCommitWarning(ctx, phone, opts.SMS); err != nil {
		slog.Warn("sms send failed", "phone", maskPhone(phone), "error", err)
		return notification.Failed(notification.ChannelSMS, notification.CodeSendFailed, "SMS send failed", err.Error()), nil
	}

	slog.Info("sms sent", "phone", maskPhone(phone), "notification_type", msg.Type)
	return notification.Succeeded(notification.ChannelSMS, "SMS sent", map[string]any{"phone": phone}), nil
}

// SendToUsers resolves each user's phone number and texts them one by one.
// Users without a number get a RecipientMissing result.
func (p *Provider) SendToUsers(ctx context.Context, userIDs []int64, msg *notification.Message, params notification.SMSParams) []notification.Result {
	results := make([]notification.Result, 0, len(userIDs))
	for _, id := range userIDs {
		results = append(results, p.sendToUser(ctx, id, msg, params))
	}
	return results
}

func (p *Provider) sendToUser(ctx context.Context, userID int64, msg *notification.Message, params notification.SMSParams) notification.Result {
	withUser := func(r notification.Result) notification.Result {
		if r.Data == nil {
			r.Data = map[string]any{}
		}
		r.Data["user_id"] = userID
		return r
	}

	if p.contacts == nil {
		return withUser(notification.Failed(notification.ChannelSMS, notification.CodeConfigInvalid,
			"no contact directory configured", "contact directory not configured"))
	}
	contact, err := p.contacts.LookupContact(ctx, userID)
	if err != nil {
		return withUser(notification.Failed(notification.ChannelSMS, notification.CodeSendFailed,
			"phone lookup failed", err.Error()))
	}
	if contact == nil || contact.Phone == "" {
		return withUser(notification.Failed(notification.ChannelSMS, notification.CodeRecipientMissing,
			"user has no mobile number", "no_mobile"))
	}

	res := withUser(notification.SafeSend(ctx, p, msg, notification.SendOptions{Phone: contact.Phone, SMS: params}))
	res.Data["username"] = contact.Username
	return res
}

// Status returns a diagnostic snapshot.
func (p *Provider) Status() notification.ProviderStatus {
	return notification.ProviderStatus{
		Channel:     notification.ChannelSMS,
		Enabled:     p.cfg.Enabled,
		Available:   p.IsAvailable(),
		ConfigValid: p.ValidateConfig(),
		Details: map[string]any{
			"gateway_configured":       p.gateway != nil,
			"contact_lookup_available": p.contacts != nil,
			"rate_limited":             p.limiter != nil,
		},
	}
}

func maskPhone(phone string) string {
	if len(phone) <= 7 {
		return "****"
	}
	return phone[:3] + "****" + phone[len(phone)-4:]
}
