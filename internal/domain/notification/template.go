package notification

// Template ids shipped with the built-in catalog.
const (
	TemplateProjectCommitWarning         = "project_commit_warning"
	TemplateOrderApplication             = "order_application"
	TemplateMilestoneCompletion          = "milestone_completion"
	TemplatePaymentSuccess               = "payment_success"
	TemplateContractSigned               = "contract_signed"
	TemplateMilestoneEscrow              = "milestone_escrow"
	TemplateMilestoneAcceptanceRequest   = "milestone_acceptance_request"
	TemplateMilestoneAcceptanceConfirmed = "milestone_acceptance_confirmed"
	TemplateOfferHire                    = "offer_hire"
)

// Template is a named message blueprint. Title and content use text/template
// syntax; parameters are referenced as {{.name}}.
type Template struct {
	ID          string     `json:"id" mapstructure:"id"`
	Version     int        `json:"version" mapstructure:"version"`
	Title       string     `json:"title" mapstructure:"title"`
	Content     string     `json:"content" mapstructure:"content"`
	TitleEN     string     `json:"title_en,omitempty" mapstructure:"title_en"`
	ContentEN   string     `json:"content_en,omitempty" mapstructure:"content_en"`
	Type        Type       `json:"notification_type" mapstructure:"notification_type"`
	Importance  Importance `json:"importance" mapstructure:"importance"`
	TargetRole  TargetRole `json:"target_role,omitempty" mapstructure:"target_role"`
	ExpiryHours int        `json:"expiry_hours,omitempty" mapstructure:"expiry_hours"`
}

// Overrides replace a template's defaults for a single render.
type Overrides struct {
	Type        Type
	Importance  Importance
	TargetRole  TargetRole
	ExpiryHours *int
}

// RenderOptions are the per-call inputs of a render besides the parameters.
type RenderOptions struct {
	TargetUserID *int64
	ActionURL    string
	Overrides    Overrides
	Details      map[string]string
}
