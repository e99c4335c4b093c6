package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"notifyhub/internal/common"
	"notifyhub/internal/domain/notification"

	"github.com/supabase-community/postgrest-go"
	supa "github.com/supabase-community/supabase-go"
)

const (
	inboxTable   = "system_notifications"
	contactTable = "user_info"
)

var (
	_ notification.InboxStore       = (*SupabaseStore)(nil)
	_ notification.ContactDirectory = (*SupabaseStore)(nil)
)

// SupabaseStore persists inbox records and resolves contacts through PostgREST.
type SupabaseStore struct {
	client *supa.Client
}

// NewSupabaseStore creates a new Supabase-backed store.
func NewSupabaseStore(supabaseURL, serviceKey string) (*SupabaseStore, error) {
	client, err := supa.NewClient(supabaseURL, serviceKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating supabase client: %w", err)
	}
	return &SupabaseStore{client: client}, nil
}

// inboxRow is the PostgREST representation of a system_notifications row.
type inboxRow struct {
	NotificationID   int64             `json:"notification_id,omitempty"`
	Title            string            `json:"title"`
	Content          string            `json:"content"`
	TitleEN          *string           `json:"title_en,omitempty"`
	ContentEN        *string           `json:"content_en,omitempty"`
	NotificationType string            `json:"notification_type"`
	Importance       string            `json:"importance"`
	TargetRole       string            `json:"target_role"`
	TargetUserID     *int64            `json:"target_user_id"`
	ActionURL        *string           `json:"action_url,omitempty"`
	IsRead           map[string]string `json:"is_read"`
	ExpiryDate       *string           `json:"expiry_date,omitempty"`
	CreatedAt        string            `json:"created_at,omitempty"`
}

// contactRow is the subset of user_info the dispatcher reads.
type contactRow struct {
	UserID   int64   `json:"user_id"`
	Username *string `json:"username"`
	Mobile   *string `json:"mobile"`
}

// Insert creates a system_notifications row and returns its id.
func (s *SupabaseStore) Insert(ctx context.Context, rec *notification.InboxRecord) (int64, error) {
	row := recordToRow(rec)

	data, _, err := s.client.From(inboxTable).Insert(row, false, "", "representation", "").Execute()
	if err != nil {
		return 0, fmt.Errorf("inserting inbox record: %w", err)
	}

	var results []inboxRow
	if err := json.Unmarshal(data, &results); err != nil {
		return 0, fmt.Errorf("parsing insert response: %w", err)
	}
	if len(results) == 0 {
		return 0, fmt.Errorf("inserting inbox record: empty response")
	}
	return results[0].NotificationID, nil
}

// UpdateReadState merges a read stamp into the row's is_read column.
func (s *SupabaseStore) UpdateReadState(ctx context.Context, id, userID int64, at time.Time) error {
	key := strconv.FormatInt(id, 10)

	data, _, err := s.client.From(inboxTable).Select("is_read", "", false).Eq("notification_id", key).Execute()
	if err != nil {
		return fmt.Errorf("fetching read state: %w", err)
	}
	var rows []inboxRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("parsing read state: %w", err)
	}
	if len(rows) == 0 {
		return common.NewNotFoundError("notification", key)
	}

	readState := rows[0].IsRead
	if readState == nil {
		readState = map[string]string{}
	}
	readState[notification.ReadStateKey(userID)] = at.UTC().Format(time.RFC3339Nano)

	update := map[string]any{"is_read": readState}
	if _, _, err := s.client.From(inboxTable).Update(update, "", "").Eq("notification_id", key).Execute(); err != nil {
		return fmt.Errorf("updating read state: %w", err)
	}
	return nil
}

// Query lists the rows visible to q.UserID, newest first.
func (s *SupabaseStore) Query(ctx context.Context, q notification.InboxQuery) ([]*notification.InboxRecord, error) {
	audience := fmt.Sprintf(
		"target_user_id.eq.%d,and(target_role.eq.%s,target_user_id.is.null),and(target_role.eq.%s,target_user_id.is.null)",
		q.UserID, q.Role, notification.RoleAll,
	)

	query := s.client.From(inboxTable).Select("*", "exact", false).Or(audience, "")
	if q.Type != "" {
		query = query.Eq("notification_type", string(q.Type))
	}
	if q.Importance != "" {
		query = query.Eq("importance", string(q.Importance))
	}
	query = query.Order("created_at", &postgrest.OrderOpts{Ascending: false})
	if q.Limit > 0 {
		offset := max(q.Offset, 0)
		query = query.Range(offset, offset+q.Limit-1, "")
	}

	data, _, err := query.Execute()
	if err != nil {
		return nil, fmt.Errorf("querying inbox records: %w", err)
	}

	var rows []inboxRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing inbox records: %w", err)
	}

	records := make([]*notification.InboxRecord, len(rows))
	for i := range rows {
		records[i] = rowToRecord(&rows[i])
	}
	return records, nil
}

// LookupContact reads a user's mobile number and username from user_info.
func (s *SupabaseStore) LookupContact(ctx context.Context, userID int64) (*notification.Contact, error) {
	data, _, err := s.client.From(contactTable).
		Select("user_id,username,mobile", "", false).
		Eq("user_id", strconv.FormatInt(userID, 10)).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("fetching contact for user %d: %w", userID, err)
	}

	var rows []contactRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing contact: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	c := &notification.Contact{UserID: userID}
	if rows[0].Username != nil {
		c.Username = *rows[0].Username
	}
	if rows[0].Mobile != nil {
		c.Phone = *rows[0].Mobile
	}
	return c, nil
}

func recordToRow(rec *notification.InboxRecord) inboxRow {
	row := inboxRow{
		Title:            rec.Title,
		Content:          rec.Content,
		NotificationType: string(rec.Type),
		Importance:       string(rec.Importance),
		TargetRole:       string(rec.TargetRole),
		TargetUserID:     rec.TargetUserID,
		IsRead:           rec.ReadState,
	}
	if row.IsRead == nil {
		row.IsRead = map[string]string{}
	}
	if rec.TitleEN != "" {
		row.TitleEN = &rec.TitleEN
	}
	if rec.ContentEN != "" {
		row.ContentEN = &rec.ContentEN
	}
	if rec.ActionURL != "" {
		row.ActionURL = &rec.ActionURL
	}
	if rec.ExpiresAt != nil {
		exp := rec.ExpiresAt.UTC().Format(time.RFC3339Nano)
		row.ExpiryDate = &exp
	}
	if !rec.CreatedAt.IsZero() {
		row.CreatedAt = rec.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	return row
}

func rowToRecord(row *inboxRow) *notification.InboxRecord {
	rec := &notification.InboxRecord{
		ID:           row.NotificationID,
		Title:        row.Title,
		Content:      row.Content,
		Type:         notification.Type(row.NotificationType),
		Importance:   notification.Importance(row.Importance),
		TargetRole:   notification.TargetRole(row.TargetRole),
		TargetUserID: row.TargetUserID,
		ReadState:    row.IsRead,
	}
	if rec.ReadState == nil {
		rec.ReadState = map[string]string{}
	}
	if row.TitleEN != nil {
		rec.TitleEN = *row.TitleEN
	}
	if row.ContentEN != nil {
		rec.ContentEN = *row.ContentEN
	}
	if row.ActionURL != nil {
		rec.ActionURL = *row.ActionURL
	}
	if row.ExpiryDate != nil {
		if t, ok := parseTimestamp(*row.ExpiryDate); ok {
			rec.ExpiresAt = &t
		}
	}
	if t, ok := parseTimestamp(row.CreatedAt); ok {
		rec.CreatedAt = t
	}
	return rec
}

// parseTimestamp accepts RFC 3339 and the zone-less form PostgREST returns for
// timestamp columns.
func parseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
