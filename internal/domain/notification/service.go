package notification

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"notifyhub/internal/common"
)

// Observer receives the outcome of every channel attempt.
type Observer interface {
	ObserveDispatch(ch Channel, res Result, elapsed time.Duration)
}

// Option configures a Service.
type Option func(*Service)

// WithObserver attaches an observer to every dispatch.
func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

// WithParallelDispatch fans a send out to its channels concurrently.
func WithParallelDispatch(enabled bool) Option {
	return func(s *Service) { s.parallel = enabled }
}

// WithIdentity sets the name and version reported by SystemStatus.
func WithIdentity(name, version string) Option {
	return func(s *Service) {
		s.name = name
		s.version = version
	}
}

// Service orchestrates channel selection, rendering and dispatch.
// Channel failures never abort a dispatch; they surface as Results.
type Service struct {
	rules     *RulesManager
	templates TemplateRenderer
	providers *Registry
	inbox     Inbox
	observer  Observer
	parallel  bool
	name      string
	version   string
}

// NewService creates a new notification service. inbox may be nil when no
// in-app store is configured.
func NewService(rules *RulesManager, templates TemplateRenderer, providers *Registry, inbox Inbox, opts ...Option) *Service {
	s := &Service{
		rules:     rules,
		templates: templates,
		providers: providers,
		inbox:     inbox,
		name:      "notifyhub",
		version:   "1.0.0",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send dispatches msg to channels and returns one Result per channel.
// A nil channels slice selects channels through the rules; an empty
// non-nil slice sends nowhere.
func (s *Service) Send(ctx context.Context, msg *Message, channels []Channel, opts SendOptions) map[Channel]Result {
	if channels == nil {
		channels = s.rules.SelectChannels(msg.Type, msg.Importance, msg.Title, msg.Content)
	}
	channels = dedupe(channels)
	opts = withMessageHints(msg, opts)

	results := make(map[Channel]Result, len(channels))
	if !s.parallel || len(channels) < 2 {
		for _, ch := range channels {
			results[ch] = s.dispatch(ctx, ch, msg, opts)
		}
		return results
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, ch := range channels {
		wg.Add(1)
		go func(ch Channel) {
			defer wg.Done()
			res := s.dispatch(ctx, ch, msg, opts)
			mu.Lock()
			results[ch] = res
			mu.Unlock()
		}(ch)
	}
	wg.Wait()
	return results
}

func (s *Service) dispatch(ctx context.Context, ch Channel, msg *Message, opts SendOptions) Result {
	start := time.Now()

	var res Result
	p, ok := s.providers.Get(ch)
	if !ok || !p.IsAvailable() {
		res = Failed(ch, CodeProviderUnavailable, "provider not available", "Provider not available")
	} else {
		res = SafeSend(ctx, p, msg, opts)
	}

	elapsed := time.Since(start)
	if res.Success {
		slog.Info("notification dispatched", "channel", ch, "template_id", msg.Extra.TemplateID, "duration", elapsed)
	} else {
		slog.Warn("notification dispatch failed",
			"channel", ch,
			"template_id", msg.Extra.TemplateID,
			"code", res.Code,
			"error", res.Error,
			"duration", elapsed,
		)
	}
	if s.observer != nil {
		s.observer.ObserveDispatch(ch, res, elapsed)
	}
	return res
}

// withMessageHints fills per-call options from the message's side channel.
// Values set by the caller win.
func withMessageHints(msg *Message, opts SendOptions) SendOptions {
	if opts.ExpiryHours <= 0 {
		opts.ExpiryHours = msg.Extra.ExpiryHours
	}
	if opts.ExpiryHours <= 0 {
		opts.ExpiryHours = DefaultExpiryHours
	}
	opts.RichText = opts.RichText || msg.Extra.RichText
	if len(msg.Extra.Details) > 0 {
		merged := maps.Clone(msg.Extra.Details)
		maps.Copy(merged, opts.Details)
		opts.Details = merged
	}
	return opts
}

func dedupe(channels []Channel) []Channel {
	out := make([]Channel, 0, len(channels))
	for _, ch := range channels {
		if !slices.Contains(out, ch) {
			out = append(out, ch)
		}
	}
	return out
}

// TemplateSend is the input of SendByTemplate.
type TemplateSend struct {
	TemplateID string
	Params     map[string]any
	Render     RenderOptions
	Channels   []Channel
	Options    SendOptions
}

// Summary counts the outcomes of a dispatch.
type Summary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

func summarize(results map[Channel]Result) Summary {
	sum := Summary{Total: len(results)}
	for _, r := range results {
		if r.Success {
			sum.Succeeded++
		} else {
			sum.Failed++
		}
	}
	return sum
}

// TemplateSendResult is the outcome of SendByTemplate.
type TemplateSendResult struct {
	Success bool               `json:"success"`
	Results map[Channel]Result `json:"results"`
	Message *Message           `json:"message"`
	Summary Summary            `json:"summary"`
}

// SendByTemplate renders a template and sends it. Only rendering errors are returned.
func (s *Service) SendByTemplate(ctx context.Context, req TemplateSend) (*TemplateSendResult, error) {
	msg, err := s.templates.Render(req.TemplateID, req.Params, req.Render)
	if err != nil {
		return nil, err
	}

	results := s.Send(ctx, msg, req.Channels, req.Options)
	sum := summarize(results)
	return &TemplateSendResult{
		Success: sum.Succeeded > 0,
		Results: results,
		Message: msg,
		Summary: sum,
	}, nil
}

// AudienceOutcome is the delivery outcome for one side of a dual-audience warning.
type AudienceOutcome struct {
	Role    TargetRole         `json:"target_role"`
	UserID  int64              `json:"user_id"`
	Message *Message           `json:"message,omitempty"`
	Results map[Channel]Result `json:"results,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// InactivityReport is the outcome of SendProjectInactivityWarning.
type InactivityReport struct {
	Success      bool            `json:"success"`
	Level        Level           `json:"warning_level"`
	Importance   Importance      `json:"importance"`
	Client       AudienceOutcome `json:"client"`
	Freelancer   AudienceOutcome `json:"freelancer"`
	SMSTriggered bool            `json:"sms_triggered"`
	SMS          []Result        `json:"sms_results,omitempty"`
}

// SendProjectInactivityWarning warns both the client and the developer of an
// inactive project, and texts both when the level is critical. It never fails;
// every problem is recorded in the report.
func (s *Service) SendProjectInactivityWarning(ctx context.Context, w ProjectInactivity) *InactivityReport {
	level, importance := ClassifyInactivity(w.DaysWithoutCommits, w.TotalCommitCount)
	report := &InactivityReport{Level: level, Importance: importance}

	params := SMSParams{
		ProjectTitle:       w.ProjectTitle,
		DaysWithoutCommits: w.DaysWithoutCommits,
		WarningLevel:       level.Label(),
	}
	report.Client = s.warnAudience(ctx, w, RoleClient, w.ClientID, params)
	report.Freelancer = s.warnAudience(ctx, w, RoleFreelancer, w.DeveloperID, params)

	if level == LevelCritical {
		report.SMSTriggered = true
		msg := report.Client.Message
		if msg == nil {
			msg = report.Freelancer.Message
		}
		report.SMS = s.textUsers(ctx, []int64{w.ClientID, w.DeveloperID}, msg, params)
	}

	for _, out := range []AudienceOutcome{report.Client, report.Freelancer} {
		for _, r := range out.Results {
			report.Success = report.Success || r.Success
		}
	}
	for _, r := range report.SMS {
		report.Success = report.Success || r.Success
	}

	slog.Info("project inactivity warning processed",
		"project_id", w.ProjectID,
		"order_id", w.OrderID,
		"level", level,
		"sms_triggered", report.SMSTriggered,
		"success", report.Success,
	)
	return report
}

// warnAudience renders and sends one side of the warning. SMS is left to the
// batch path so a recipient is never texted twice.
func (s *Service) warnAudience(ctx context.Context, w ProjectInactivity, role TargetRole, userID int64, params SMSParams) AudienceOutcome {
	out := AudienceOutcome{Role: role, UserID: userID}

	msg, _, err := s.templates.RenderInactivityWarning(w, role)
	if err != nil {
		slog.Error("rendering inactivity warning failed", "role", role, "project_id", w.ProjectID, "error", err)
		out.Error = err.Error()
		return out
	}
	out.Message = msg

	channels := slices.DeleteFunc(
		s.rules.SelectChannels(msg.Type, msg.Importance, msg.Title, msg.Content),
		func(ch Channel) bool { return ch == ChannelSMS },
	)
	out.Results = s.Send(ctx, msg, channels, SendOptions{SMS: params})
	return out
}

func (s *Service) textUsers(ctx context.Context, userIDs []int64, msg *Message, params SMSParams) []Result {
	failAll := func(code ErrorCode, reason, errText string) []Result {
		results := make([]Result, 0, len(userIDs))
		for _, id := range userIDs {
			r := Failed(ChannelSMS, code, reason, errText)
			r.Data = map[string]any{"user_id": id}
			results = append(results, r)
		}
		return results
	}

	if msg == nil {
		return failAll(CodeSendFailed, "send failed", "no rendered message to send")
	}
	p, ok := s.providers.Get(ChannelSMS)
	if !ok || !p.IsAvailable() {
		return failAll(CodeProviderUnavailable, "provider not available", "Provider not available")
	}
	batch, ok := p.(UserBatchSender)
	if !ok {
		return failAll(CodeProviderUnavailable, "provider cannot resolve recipients", "Provider not available")
	}

	start := time.Now()
	results := batch.SendToUsers(ctx, userIDs, msg, params)
	if s.observer != nil {
		elapsed := time.Since(start)
		for _, r := range results {
			s.observer.ObserveDispatch(ChannelSMS, r, elapsed)
		}
	}
	return results
}

// MarkRead records that userID has read in-app record id.
func (s *Service) MarkRead(ctx context.Context, id, userID int64) error {
	if s.inbox == nil {
		return common.NewValidationError("in-app inbox is not configured")
	}
	if err := s.inbox.MarkRead(ctx, id, userID); err != nil {
		return fmt.Errorf("marking notification %d read: %w", id, err)
	}
	return nil
}

// ListForUser returns the in-app records visible to a user.
func (s *Service) ListForUser(ctx context.Context, q InboxQuery) ([]InboxItem, error) {
	if s.inbox == nil {
		return nil, common.NewValidationError("in-app inbox is not configured")
	}
	if q.Role == "" {
		q.Role = RoleAll
	}
	if !IsValidRole(q.Role) {
		return nil, common.NewValidationError(fmt.Sprintf("unknown target role: %s", q.Role))
	}
	if q.Type != "" && !IsValidType(q.Type) {
		return nil, common.NewValidationError(fmt.Sprintf("unknown notification type: %s", q.Type))
	}
	if q.Importance != "" && !IsValidImportance(q.Importance) {
		return nil, common.NewValidationError(fmt.Sprintf("unknown importance: %s", q.Importance))
	}
	items, err := s.inbox.ListForUser(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("listing notifications for user %d: %w", q.UserID, err)
	}
	return items, nil
}

// UnreadCount returns how many visible records the user has not read.
func (s *Service) UnreadCount(ctx context.Context, userID int64, role TargetRole) (int, error) {
	if s.inbox == nil {
		return 0, common.NewValidationError("in-app inbox is not configured")
	}
	if role == "" {
		role = RoleAll
	}
	n, err := s.inbox.UnreadCount(ctx, userID, role)
	if err != nil {
		return 0, fmt.Errorf("counting unread notifications for user %d: %w", userID, err)
	}
	return n, nil
}

// SystemStatus is a read-only diagnostic snapshot.
type SystemStatus struct {
	Service            string                     `json:"service"`
	Version            string                     `json:"version"`
	Providers          map[Channel]ProviderStatus `json:"providers"`
	AvailableProviders []Channel                  `json:"available_providers"`
	Rules              map[Channel]Rule           `json:"rules"`
	Templates          []string                   `json:"templates"`
}

// SystemStatus reports every provider's status and the active rules.
func (s *Service) SystemStatus() SystemStatus {
	status := SystemStatus{
		Service:            s.name,
		Version:            s.version,
		Providers:          make(map[Channel]ProviderStatus),
		AvailableProviders: []Channel{},
		Rules:              s.rules.Rules(),
		Templates:          s.templates.TemplateIDs(),
	}
	for _, ch := range s.providers.Channels() {
		p, _ := s.providers.Get(ch)
		status.Providers[ch] = p.Status()
		if p.IsAvailable() {
			status.AvailableProviders = append(status.AvailableProviders, ch)
		}
	}
	return status
}

// UpdateRule replaces the routing rule of a channel.
func (s *Service) UpdateRule(ch Channel, r Rule) error {
	if err := s.rules.UpdateRule(ch, r); err != nil {
		return err
	}
	slog.Info("routing rule updated", "channel", ch, "enabled", r.Enabled)
	return nil
}

// Template returns a stored template.
func (s *Service) Template(id string) (Template, error) {
	return s.templates.Template(id)
}

// UpdateTemplate creates or replaces a template.
func (s *Service) UpdateTemplate(t Template) error {
	if err := s.templates.UpdateTemplate(t); err != nil {
		return err
	}
	slog.Info("template updated", "template_id", t.ID, "version", t.Version)
	return nil
}
