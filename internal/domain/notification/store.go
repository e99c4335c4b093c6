package notification

import (
	"context"
	"strconv"
	"time"
)

// ReadStateKey is the key of a user in an InboxRecord's read-state map.
func ReadStateKey(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

// InboxRecord is a persisted in-app notification.
type InboxRecord struct {
	ID           int64
	Title        string
	Content      string
	TitleEN      string
	ContentEN    string
	Type         Type
	Importance   Importance
	TargetRole   TargetRole
	TargetUserID *int64
	ActionURL    string
	// ReadState maps a user id (decimal string) to the RFC3339 time it was read.
	ReadState map[string]string
	ExpiresAt *time.Time
	CreatedAt time.Time
}

// InboxQuery selects the records visible to one user.
type InboxQuery struct {
	UserID     int64
	Role       TargetRole
	Type       Type
	Importance Importance
	UnreadOnly bool
	// Limit <= 0 means no limit.
	Limit    int
	Offset   int
	Language string
}

// InboxStore defines the contract for persisting in-app records.
// Implementations live in infra/store/ (Supabase, in-memory).
type InboxStore interface {
	// Insert persists a record and returns its new id.
	Insert(ctx context.Context, rec *InboxRecord) (int64, error)

	// UpdateReadState stamps at into the record's read-state for userID,
	// overwriting any earlier stamp. Returns a NotFoundError for unknown ids.
	UpdateReadState(ctx context.Context, id, userID int64, at time.Time) error

	// Query returns records addressed to q.UserID directly, to q.Role with no
	// target user, or to every role with no target user, newest first.
	// Type, Importance, Limit and Offset narrow the result; expiry, read state
	// and language are left to the caller.
	Query(ctx context.Context, q InboxQuery) ([]*InboxRecord, error)
}

// Contact is the reachable identity of a user.
type Contact struct {
	UserID   int64
	Username string
	Phone    string
	Email    string
}

// ContactDirectory resolves user ids to contact details.
type ContactDirectory interface {
	// LookupContact returns nil, nil when the user does not exist.
	LookupContact(ctx context.Context, userID int64) (*Contact, error)
}

// InboxItem is an inbox record localized for one reader.
type InboxItem struct {
	ID           int64      `json:"notification_id"`
	Title        string     `json:"title"`
	Content      string     `json:"content"`
	Type         Type       `json:"notification_type"`
	Importance   Importance `json:"importance"`
	TargetRole   TargetRole `json:"target_role"`
	TargetUserID *int64     `json:"target_user_id,omitempty"`
	ActionURL    string     `json:"action_url,omitempty"`
	IsRead       bool       `json:"is_read"`
	ReadAt       string     `json:"read_at,omitempty"`
	ExpiresAt    *time.Time `json:"expiry_date,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Inbox is the read side of the in-app channel.
type Inbox interface {
	MarkRead(ctx context.Context, id, userID int64) error
	ListForUser(ctx context.Context, q InboxQuery) ([]InboxItem, error)
	UnreadCount(ctx context.Context, userID int64, role TargetRole) (int, error)
}
