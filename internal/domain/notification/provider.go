package notification

import (
	"context"
	"fmt"
	"log/slog"
)

// SMSParams are the structured values an SMS template needs.
type SMSParams struct {
	ProjectTitle       string `json:"project_title"`
	DaysWithoutCommits int    `json:"days_without_commits"`
	WarningLevel       string `json:"warning_level"`
}

// SendOptions carries per-call delivery hints that are not part of the message.
type SendOptions struct {
	Phone       string
	Email       string
	SMS         SMSParams
	RichText    bool
	Details     map[string]string
	ExpiryHours int
}

// ProviderStatus is a diagnostic snapshot of one provider.
type ProviderStatus struct {
	Channel     Channel        `json:"provider_type"`
	Enabled     bool           `json:"enabled"`
	Available   bool           `json:"available"`
	ConfigValid bool           `json:"config_valid"`
	Details     map[string]any `json:"details,omitempty"`
}

// Provider defines the contract for a notification delivery channel.
// Implementations live in infra/ (in-app inbox, SMS, chat webhook, email).
type Provider interface {
	// Channel returns which delivery channel this provider handles.
	Channel() Channel

	// IsAvailable reports whether the provider is enabled and fully wired.
	IsAvailable() bool

	// ValidateConfig reports whether the provider's credentials are present.
	ValidateConfig() bool

	// Send makes one delivery attempt. Expected delivery failures are
	// returned as a failed Result; err is reserved for unexpected faults.
	Send(ctx context.Context, msg *Message, opts SendOptions) (Result, error)

	// Status returns a diagnostic snapshot.
	Status() ProviderStatus
}

// UserBatchSender is implemented by providers that resolve recipients from user ids.
type UserBatchSender interface {
	SendToUsers(ctx context.Context, userIDs []int64, msg *Message, params SMSParams) []Result
}

// TemplateRenderer defines the contract for rendering notification templates.
// Implementations live in infra/template/.
type TemplateRenderer interface {
	Render(templateID string, params map[string]any, opts RenderOptions) (*Message, error)
	RenderInactivityWarning(w ProjectInactivity, role TargetRole) (*Message, Level, error)
	Template(id string) (Template, error)
	UpdateTemplate(t Template) error
	TemplateIDs() []string
}

// SendBatch sends each message through p in order.
func SendBatch(ctx context.Context, p Provider, msgs []*Message, opts SendOptions) []Result {
	results := make([]Result, 0, len(msgs))
	for _, msg := range msgs {
		results = append(results, SafeSend(ctx, p, msg, opts))
	}
	return results
}

// SafeSend calls p.Send and converts returned errors and panics into SendFailed results.
func SafeSend(ctx context.Context, p Provider, msg *Message, opts SendOptions) (res Result) {
	ch := p.Channel()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("provider panicked", "channel", ch, "panic", r)
			res = Failed(ch, CodeSendFailed, "send failed", fmt.Sprintf("panic: %v", r))
		}
	}()

	out, err := p.Send(ctx, msg, opts)
	if err != nil {
		return Failed(ch, CodeSendFailed, "send failed", err.Error())
	}
	if out.Channel == "" {
		out.Channel = ch
	}
	return out
}

// Registry holds at most one provider per channel.
type Registry struct {
	providers map[Channel]Provider
}

// NewRegistry creates a registry from the given providers. Nil entries are skipped.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[Channel]Provider)}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds p, replacing any provider already registered for its channel.
func (r *Registry) Register(p Provider) {
	if p == nil {
		return
	}
	r.providers[p.Channel()] = p
}

// Get returns the provider for ch.
func (r *Registry) Get(ch Channel) (Provider, bool) {
	p, ok := r.providers[ch]
	return p, ok
}

// Channels returns the registered channels in dispatch order.
func (r *Registry) Channels() []Channel {
	out := make([]Channel, 0, len(r.providers))
	for _, ch := range Channels {
		if _, ok := r.providers[ch]; ok {
			out = append(out, ch)
		}
	}
	return out
}
