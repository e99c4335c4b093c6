package notification

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"

	"notifyhub/internal/common"
)

// daysPattern captures the day count in phrases like "已持续5天".
var daysPattern = regexp.MustCompile(`(\d+)\s*天`)

// Rule is the condition set deciding whether a channel carries a message.
//
// Each built-in channel has fixed semantics the rule can only tune:
//   - in_app matches every message while enabled.
//   - sms requires HIGH importance and the PROJECT type. Importance, Types,
//     RequiredKeywords and MinDaysThreshold narrow it further.
//   - chat matches HIGH messages, and otherwise any Keywords hit at or above
//     MinImportanceForKeywords. Importance and Types are ignored.
//
// Other channels use the generic form: importance in Importance (any if
// empty), type in Types (any if empty), every RequiredKeywords entry present
// and the day count meeting MinDaysThreshold; failing that, any Keywords hit
// at or above MinImportanceForKeywords.
type Rule struct {
	Enabled                  bool         `json:"enabled" mapstructure:"enabled"`
	Importance               []Importance `json:"importance,omitempty" mapstructure:"importance"`
	Types                    []Type       `json:"types,omitempty" mapstructure:"types"`
	RequiredKeywords         []string     `json:"required_keywords,omitempty" mapstructure:"required_keywords"`
	Keywords                 []string     `json:"keywords,omitempty" mapstructure:"keywords"`
	MinImportanceForKeywords Importance   `json:"min_importance_for_keywords,omitempty" mapstructure:"min_importance_for_keywords"`
	MinDaysThreshold         int          `json:"min_days_threshold,omitempty" mapstructure:"min_days_threshold"`
	StrictDaysThreshold      bool         `json:"strict_days_threshold,omitempty" mapstructure:"strict_days_threshold"`
}

// Validate checks the rule for unknown enum values and negative thresholds.
func (r Rule) Validate() error {
	for _, imp := range r.Importance {
		if !IsValidImportance(imp) {
			return common.NewValidationError(fmt.Sprintf("unknown importance: %s", imp))
		}
	}
	for _, t := range r.Types {
		if !IsValidType(t) {
			return common.NewValidationError(fmt.Sprintf("unknown notification type: %s", t))
		}
	}
	if r.MinImportanceForKeywords != "" && !IsValidImportance(r.MinImportanceForKeywords) {
		return common.NewValidationError(fmt.Sprintf("unknown min_importance_for_keywords: %s", r.MinImportanceForKeywords))
	}
	if r.MinDaysThreshold < 0 {
		return common.NewValidationError("min_days_threshold must not be negative")
	}
	return nil
}

func (r Rule) clone() Rule {
	r.Importance = slices.Clone(r.Importance)
	r.Types = slices.Clone(r.Types)
	r.RequiredKeywords = slices.Clone(r.RequiredKeywords)
	r.Keywords = slices.Clone(r.Keywords)
	return r
}

func (r Rule) matches(ch Channel, t Type, imp Importance, title, content string) bool {
	if !r.Enabled {
		return false
	}
	switch ch {
	case ChannelInApp:
		return true
	case ChannelSMS:
		return imp == ImportanceHigh && t == TypeProject && r.primaryMatch(t, imp, title, content)
	case ChannelChat:
		return imp == ImportanceHigh || r.keywordMatch(imp, title, content)
	default:
		return r.primaryMatch(t, imp, title, content) || r.keywordMatch(imp, title, content)
	}
}

func (r Rule) keywordMatch(imp Importance, title, content string) bool {
	if len(r.Keywords) == 0 {
		return false
	}
	floor := r.MinImportanceForKeywords
	if floor == "" {
		floor = ImportanceLow
	}
	return containsAny(title, content, r.Keywords) && imp.AtLeast(floor)
}

func (r Rule) primaryMatch(t Type, imp Importance, title, content string) bool {
	if len(r.Importance) > 0 && !slices.Contains(r.Importance, imp) {
		return false
	}
	if len(r.Types) > 0 && !slices.Contains(r.Types, t) {
		return false
	}
	for _, kw := range r.RequiredKeywords {
		if !strings.Contains(title, kw) && !strings.Contains(content, kw) {
			return false
		}
	}
	if r.MinDaysThreshold > 0 {
		days, found := extractDays(content)
		if !found {
			return !r.StrictDaysThreshold
		}
		return days >= r.MinDaysThreshold
	}
	return true
}

func containsAny(title, content string, keywords []string) bool {
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(title, kw) || strings.Contains(content, kw) {
			return true
		}
	}
	return false
}

func extractDays(content string) (int, bool) {
	m := daysPattern.FindStringSubmatch(content)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// DefaultRules returns the built-in routing rules.
func DefaultRules() map[Channel]Rule {
	return map[Channel]Rule{
		ChannelInApp: {Enabled: true},
		ChannelSMS: {
			Enabled:          true,
			Importance:       []Importance{ImportanceHigh},
			Types:            []Type{TypeProject},
			RequiredKeywords: []string{"严重逾期", "提交预警"},
			MinDaysThreshold: 3,
		},
		ChannelChat: {
			Enabled:                  true,
			Importance:               []Importance{ImportanceHigh},
			Keywords:                 []string{"预警", "Warning", "严重"},
			MinImportanceForKeywords: ImportanceNormal,
		},
		ChannelEmail: {Enabled: false},
	}
}

// RulesManager maps a message classification to the channels that should carry it.
// It is safe for concurrent use.
type RulesManager struct {
	mu    sync.RWMutex
	rules map[Channel]Rule
}

// NewRulesManager validates rules and creates a manager. A nil map selects DefaultRules.
func NewRulesManager(rules map[Channel]Rule) (*RulesManager, error) {
	if rules == nil {
		rules = DefaultRules()
	}
	m := &RulesManager{rules: make(map[Channel]Rule, len(rules))}
	for ch, r := range rules {
		if !IsValidChannel(ch) {
			return nil, common.NewValidationError(fmt.Sprintf("unknown channel: %s", ch))
		}
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("rule for %s: %w", ch, err)
		}
		m.rules[ch] = r.clone()
	}
	return m, nil
}

// ShouldSend reports whether ch should carry a message of the given classification.
// Channels without a rule never match.
func (m *RulesManager) ShouldSend(ch Channel, t Type, imp Importance, title, content string) bool {
	m.mu.RLock()
	r, ok := m.rules[ch]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	return r.matches(ch, t, imp, title, content)
}

// SelectChannels returns every channel whose rule matches, in dispatch order.
func (m *RulesManager) SelectChannels(t Type, imp Importance, title, content string) []Channel {
	selected := make([]Channel, 0, len(Channels))
	for _, ch := range Channels {
		if m.ShouldSend(ch, t, imp, title, content) {
			selected = append(selected, ch)
		}
	}
	return selected
}

// Rule returns a copy of the rule for ch.
func (m *RulesManager) Rule(ch Channel) (Rule, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rules[ch]
	return r.clone(), ok
}

// Rules returns a copy of every rule.
func (m *RulesManager) Rules() map[Channel]Rule {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[Channel]Rule, len(m.rules))
	for ch, r := range m.rules {
		out[ch] = r.clone()
	}
	return out
}

// UpdateRule replaces the full rule for ch. Partial updates are a read-modify-write by the caller.
func (m *RulesManager) UpdateRule(ch Channel, r Rule) error {
	if !IsValidChannel(ch) {
		return common.NewValidationError(fmt.Sprintf("unknown channel: %s", ch))
	}
	if err := r.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.rules[ch] = r.clone()
	m.mu.Unlock()
	return nil
}
