package notification

import "time"

// Channel represents a notification delivery channel.
type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelSMS   Channel = "sms"
	ChannelChat  Channel = "chat"
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push" // future
)

// Channels lists every known channel in dispatch order.
var Channels = []Channel{ChannelInApp, ChannelSMS, ChannelChat, ChannelEmail, ChannelPush}

// IsValidChannel checks whether a channel is recognized.
func IsValidChannel(c Channel) bool {
	for _, known := range Channels {
		if c == known {
			return true
		}
	}
	return false
}

// Type classifies what a notification is about.
type Type string

const (
	TypeSystem  Type = "system"
	TypeOrder   Type = "order"
	TypePayment Type = "payment"
	TypeProject Type = "project"
	TypeMessage Type = "message"
)

var validTypes = map[Type]bool{
	TypeSystem:  true,
	TypeOrder:   true,
	TypePayment: true,
	TypeProject: true,
	TypeMessage: true,
}

// IsValidType checks whether a notification type is recognized.
func IsValidType(t Type) bool {
	return validTypes[t]
}

// Importance is the ordinal urgency of a notification.
type Importance string

const (
	ImportanceLow    Importance = "low"
	ImportanceNormal Importance = "normal"
	ImportanceHigh   Importance = "high"
)

// Rank returns the ordinal position of the importance (low=1, normal=2, high=3).
// Unknown values rank 0 and never satisfy a minimum.
func (i Importance) Rank() int {
	switch i {
	case ImportanceLow:
		return 1
	case ImportanceNormal:
		return 2
	case ImportanceHigh:
		return 3
	default:
		return 0
	}
}

// AtLeast reports whether i is ranked at or above floor.
func (i Importance) AtLeast(floor Importance) bool {
	return i.Rank() > 0 && i.Rank() >= floor.Rank()
}

// IsValidImportance checks whether an importance level is recognized.
func IsValidImportance(i Importance) bool {
	return i.Rank() > 0
}

// TargetRole is the audience class of a notification.
type TargetRole string

const (
	RoleAll        TargetRole = "all"
	RoleClient     TargetRole = "client"
	RoleFreelancer TargetRole = "freelancer"
	RoleAdmin      TargetRole = "admin"
)

var validRoles = map[TargetRole]bool{
	RoleAll:        true,
	RoleClient:     true,
	RoleFreelancer: true,
	RoleAdmin:      true,
}

// IsValidRole checks whether a target role is recognized.
func IsValidRole(r TargetRole) bool {
	return validRoles[r]
}

// DefaultExpiryHours applies when neither template nor caller sets an expiry.
const DefaultExpiryHours = 168

// Extra carries channel hints and bookkeeping alongside a message.
type Extra struct {
	TemplateID   string            `json:"template_id,omitempty"`
	ExpiryHours  int               `json:"expiry_hours,omitempty"`
	CreatedAt    time.Time         `json:"created_at,omitzero"`
	RichText     bool              `json:"rich_text,omitempty"`
	WarningLevel string            `json:"warning_level,omitempty"`
	Details      map[string]string `json:"details,omitempty"`
}

// Message is a rendered notification ready for delivery.
// Providers and the service treat it as read-only.
type Message struct {
	Title        string     `json:"title"`
	Content      string     `json:"content"`
	TitleEN      string     `json:"title_en,omitempty"`
	ContentEN    string     `json:"content_en,omitempty"`
	Type         Type       `json:"notification_type"`
	Importance   Importance `json:"importance"`
	TargetRole   TargetRole `json:"target_role"`
	TargetUserID *int64     `json:"target_user_id,omitempty"`
	ActionURL    string     `json:"action_url,omitempty"`
	Extra        Extra      `json:"extra"`
}

// ErrorCode is the machine-readable reason attached to a failed Result.
type ErrorCode string

const (
	CodeProviderUnavailable ErrorCode = "provider_unavailable"
	CodeConfigInvalid       ErrorCode = "config_invalid"
	CodeRecipientMissing    ErrorCode = "recipient_missing"
	CodeSendFailed          ErrorCode = "send_failed"
	CodeNotImplemented      ErrorCode = "not_implemented"
	CodeRateLimited         ErrorCode = "rate_limited"
)

// Result is the outcome of exactly one provider attempt.
type Result struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Channel Channel        `json:"channel"`
	Data    map[string]any `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
	Code    ErrorCode      `json:"code,omitempty"`
}

// Succeeded builds a successful result.
func Succeeded(ch Channel, message string, data map[string]any) Result {
	return Result{Success: true, Message: message, Channel: ch, Data: data}
}

// Failed builds a failed result.
func Failed(ch Channel, code ErrorCode, message, errText string) Result {
	return Result{Success: false, Message: message, Channel: ch, Error: errText, Code: code}
}

// ProjectInactivity describes a project that has stopped receiving commits.
type ProjectInactivity struct {
	ProjectID          int64  `json:"project_id" binding:"required"`
	OrderID            int64  `json:"order_id" binding:"required"`
	ProjectTitle       string `json:"project_title" binding:"required"`
	ClientID           int64  `json:"client_id" binding:"required"`
	DeveloperID        int64  `json:"developer_id" binding:"required"`
	DaysWithoutCommits int    `json:"days_without_commits" binding:"min=0"`
	TotalCommitCount   int    `json:"total_commit_count" binding:"min=0"`
}

// SendRequest is the API request payload for sending an ad hoc notification.
type SendRequest struct {
	Title        string            `json:"title" binding:"required"`
	Content      string            `json:"content" binding:"required"`
	TitleEN      string            `json:"title_en"`
	ContentEN    string            `json:"content_en"`
	Type         Type              `json:"notification_type"`
	Importance   Importance        `json:"importance"`
	TargetRole   TargetRole        `json:"target_role"`
	TargetUserID *int64            `json:"target_user_id"`
	ActionURL    string            `json:"action_url"`
	ExpiryHours  int               `json:"expiry_hours" binding:"min=0"`
	Channels     []Channel         `json:"channels"`
	Phone        string            `json:"phone"`
	Email        string            `json:"email"`
	RichText     bool              `json:"rich_text"`
	Details      map[string]string `json:"details"`
}

// TemplateSendRequest is the API request payload for a template-based send.
type TemplateSendRequest struct {
	Params       map[string]any    `json:"params"`
	TargetUserID *int64            `json:"target_user_id"`
	ActionURL    string            `json:"action_url"`
	Type         Type              `json:"notification_type"`
	Importance   Importance        `json:"importance"`
	TargetRole   TargetRole        `json:"target_role"`
	ExpiryHours  *int              `json:"expiry_hours"`
	Channels     []Channel         `json:"channels"`
	Phone        string            `json:"phone"`
	Email        string            `json:"email"`
	Details      map[string]string `json:"details"`
}

// MarkReadRequest is the API request payload for marking a record read.
type MarkReadRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

// ListQuery holds the query parameters of the per-user listing endpoint.
type ListQuery struct {
	Role       TargetRole `form:"role"`
	Type       Type       `form:"type"`
	Importance Importance `form:"importance"`
	UnreadOnly bool       `form:"unread_only"`
	Limit      int        `form:"limit"`
	Offset     int        `form:"offset"`
	Language   string     `form:"lang"`
}
