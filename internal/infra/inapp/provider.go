package inapp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"notifyhub/internal/domain/notification"
)

var (
	_ notification.Provider = (*Provider)(nil)
	_ notification.Inbox    = (*Provider)(nil)
)

const defaultListLimit = 50

// Provider delivers notifications to the in-app inbox and serves its read side.
type Provider struct {
	store   notification.InboxStore
	enabled bool
	now     func() time.Time
}

// NewProvider creates an in-app provider over store.
func NewProvider(store notification.InboxStore, enabled bool) *Provider {
	return &Provider{store: store, enabled: enabled, now: time.Now}
}

// Channel returns the in-app channel identifier.
func (p *Provider) Channel() notification.Channel {
	return notification.ChannelInApp
}

// IsAvailable reports whether the provider is enabled and has a store.
func (p *Provider) IsAvailable() bool {
	return p.enabled && p.store != nil
}

// ValidateConfig reports whether a store is wired.
func (p *Provider) ValidateConfig() bool {
	return p.store != nil
}

// Send persists msg as an inbox record.
func (p *Provider) Send(ctx context.Context, msg *notification.Message, opts notification.SendOptions) (notification.Result, error) {
	now := p.now()
	rec := &notification.InboxRecord{
		Title:        msg.Title,
		Content:      msg.Content,
		TitleEN:      msg.TitleEN,
		ContentEN:    msg.ContentEN,
		Type:         msg.Type,
		Importance:   msg.Importance,
		TargetRole:   msg.TargetRole,
		TargetUserID: msg.TargetUserID,
		ActionURL:    msg.ActionURL,
		ReadState:    map[string]string{},
		CreatedAt:    now,
	}
	if opts.ExpiryHours > 0 {
		exp := now.Add(time.Duration(opts.ExpiryHours) * time.Hour)
		rec.ExpiresAt = &exp
	}

	id, err := p.store.Insert(ctx, rec)
	if err != nil {
		return notification.Failed(notification.ChannelInApp, notification.CodeSendFailed,
			"failed to store in-app notification", err.Error()), nil
	}

	slog.Info("in-app notification stored", "notification_id", id, "target_role", msg.TargetRole)
	return notification.Succeeded(notification.ChannelInApp, "in-app notification stored",
		map[string]any{"notification_id": id}), nil
}

// Status returns a diagnostic snapshot.
func (p *Provider) Status() notification.ProviderStatus {
	return notification.ProviderStatus{
		Channel:     notification.ChannelInApp,
		Enabled:     p.enabled,
		Available:   p.IsAvailable(),
		ConfigValid: p.ValidateConfig(),
	}
}

// MarkRead stamps the current time as userID's read time on record id.
// Repeating the call moves the stamp forward.
func (p *Provider) MarkRead(ctx context.Context, id, userID int64) error {
	if err := p.store.UpdateReadState(ctx, id, userID, p.now()); err != nil {
		return err
	}
	slog.Info("in-app notification marked read", "notification_id", id, "user_id", userID)
	return nil
}

// ListForUser returns the unexpired records visible to the user, localized
// to the requested language.
func (p *Provider) ListForUser(ctx context.Context, q notification.InboxQuery) ([]notification.InboxItem, error) {
	if q.Limit <= 0 {
		q.Limit = defaultListLimit
	}
	records, err := p.store.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("querying inbox: %w", err)
	}

	now := p.now()
	english := notification.PrefersEnglish(q.Language)
	items := make([]notification.InboxItem, 0, len(records))
	for _, rec := range records {
		if expired(rec, now) {
			continue
		}
		readAt, read := rec.ReadState[notification.ReadStateKey(q.UserID)]
		if q.UnreadOnly && read {
			continue
		}
		items = append(items, localize(rec, english, read, readAt))
	}
	return items, nil
}

// UnreadCount returns how many unexpired visible records the user has not read.
func (p *Provider) UnreadCount(ctx context.Context, userID int64, role notification.TargetRole) (int, error) {
	records, err := p.store.Query(ctx, notification.InboxQuery{UserID: userID, Role: role})
	if err != nil {
		return 0, fmt.Errorf("querying inbox: %w", err)
	}

	now := p.now()
	key := notification.ReadStateKey(userID)
	count := 0
	for _, rec := range records {
		if expired(rec, now) {
			continue
		}
		if _, read := rec.ReadState[key]; !read {
			count++
		}
	}
	return count, nil
}

func expired(rec *notification.InboxRecord, now time.Time) bool {
	return rec.ExpiresAt != nil && !rec.ExpiresAt.After(now)
}

func localize(rec *notification.InboxRecord, english, read bool, readAt string) notification.InboxItem {
	item := notification.InboxItem{
		ID:           rec.ID,
		Title:        rec.Title,
		Content:      rec.Content,
		Type:         rec.Type,
		Importance:   rec.Importance,
		TargetRole:   rec.TargetRole,
		TargetUserID: rec.TargetUserID,
		ActionURL:    rec.ActionURL,
		IsRead:       read,
		ReadAt:       readAt,
		ExpiresAt:    rec.ExpiresAt,
		CreatedAt:    rec.CreatedAt,
	}
	if english {
		if rec.TitleEN != "" {
			item.Title = rec.TitleEN
		}
		if rec.ContentEN != "" {
			item.Content = rec.ContentEN
		}
	}
	return item
}
