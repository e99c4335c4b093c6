package template

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"
	"text/template"
	"text/template/parse"
	"time"

	"notifyhub/internal/common"
	"notifyhub/internal/domain/notification"
)

var _ notification.TemplateRenderer = (*Engine)(nil)

var funcs = template.FuncMap{
	"money": money,
}

// compiled is a template with its parsed variants and the parameters each one references.
type compiled struct {
	def       notification.Template
	title     *template.Template
	content   *template.Template
	titleEN   *template.Template
	contentEN *template.Template
	params    []string
	paramsEN  []string
}

// Engine renders notification messages from named templates using text/template.
// It is safe for concurrent use.
type Engine struct {
	mu        sync.RWMutex
	templates map[string]*compiled
	now       func() time.Time
}

// NewEngine creates an engine holding the built-in catalog plus extra, which
// may add templates or replace built-in ones by id.
func NewEngine(extra ...notification.Template) (*Engine, error) {
	e := &Engine{
		templates: make(map[string]*compiled),
		now:       time.Now,
	}
	for _, t := range slices.Concat(builtin, extra) {
		c, err := compile(t)
		if err != nil {
			return nil, err
		}
		e.templates[t.ID] = c
	}
	return e, nil
}

func compile(t notification.Template) (*compiled, error) {
	if t.ID == "" {
		return nil, common.NewValidationError("template id is required")
	}
	if t.Title == "" || t.Content == "" {
		return nil, common.NewValidationError(fmt.Sprintf("template '%s' needs a title and content", t.ID))
	}
	if t.Type != "" && !notification.IsValidType(t.Type) {
		return nil, common.NewValidationError(fmt.Sprintf("template '%s' has unknown type: %s", t.ID, t.Type))
	}
	if t.Importance != "" && !notification.IsValidImportance(t.Importance) {
		return nil, common.NewValidationError(fmt.Sprintf("template '%s' has unknown importance: %s", t.ID, t.Importance))
	}
	if t.TargetRole != "" && !notification.IsValidRole(t.TargetRole) {
		return nil, common.NewValidationError(fmt.Sprintf("template '%s' has unknown target role: %s", t.ID, t.TargetRole))
	}

	c := &compiled{def: t}
	var err error
	if c.title, err = parseVariant(t.ID, "title", t.Title); err != nil {
		return nil, err
	}
	if c.content, err = parseVariant(t.ID, "content", t.Content); err != nil {
		return nil, err
	}
	if c.titleEN, err = parseVariant(t.ID, "title_en", t.TitleEN); err != nil {
		return nil, err
	}
	if c.contentEN, err = parseVariant(t.ID, "content_en", t.ContentEN); err != nil {
		return nil, err
	}
	c.params = placeholders(c.title, c.content)
	c.paramsEN = placeholders(c.titleEN, c.contentEN)
	return c, nil
}

func parseVariant(id, part, src string) (*template.Template, error) {
	if src == "" {
		return nil, nil
	}
	t, err := template.New(id + "." + part).Funcs(funcs).Option("missingkey=error").Parse(src)
	if err != nil {
		return nil, common.NewValidationError(fmt.Sprintf("parsing template '%s' %s: %v", id, part, err))
	}
	return t, nil
}

// placeholders lists the top-level parameter names referenced by the templates, in order of first use.
func placeholders(ts ...*template.Template) []string {
	var names []string
	add := func(name string) {
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	for _, t := range ts {
		if t == nil {
			continue
		}
		if t.Tree != nil {
			walk(t.Tree.Root, add, true)
		}
		// Associated {{define}} blocks, in name order.
		assoc := t.Templates()
		slices.SortFunc(assoc, func(a, b *template.Template) int { return strings.Compare(a.Name(), b.Name()) })
		for _, at := range assoc {
			if at != t && at.Tree != nil {
				walk(at.Tree.Root, add, true)
			}
		}
	}
	return names
}

// walk collects parameter names under node. Dot fields name parameters only
// where dot is the parameter map; $ always is.
func walk(node parse.Node, add func(string), dotIsRoot bool) {
	switch n := node.(type) {
	case *parse.ListNode:
		if n == nil {
			return
		}
		for _, child := range n.Nodes {
			walk(child, add, dotIsRoot)
		}
	case *parse.ActionNode:
		walk(n.Pipe, add, dotIsRoot)
	case *parse.PipeNode:
		if n == nil {
			return
		}
		for _, cmd := range n.Cmds {
			walk(cmd, add, dotIsRoot)
		}
	case *parse.CommandNode:
		for _, arg := range n.Args {
			walk(arg, add, dotIsRoot)
		}
	case *parse.FieldNode:
		if dotIsRoot {
			add(n.Ident[0])
		}
	case *parse.VariableNode:
		if len(n.Ident) > 1 && n.Ident[0] == "$" {
			add(n.Ident[1])
		}
	case *parse.ChainNode:
		walk(n.Node, add, dotIsRoot)
	case *parse.TemplateNode:
		walk(n.Pipe, add, dotIsRoot)
	case *parse.IfNode:
		walk(n.Pipe, add, dotIsRoot)
		walk(n.List, add, dotIsRoot)
		walk(n.ElseList, add, dotIsRoot)
	case *parse.RangeNode:
		walk(n.Pipe, add, dotIsRoot)
		walk(n.List, add, false)
		walk(n.ElseList, add, dotIsRoot)
	case *parse.WithNode:
		walk(n.Pipe, add, dotIsRoot)
		walk(n.List, add, false)
		walk(n.ElseList, add, dotIsRoot)
	}
}

// Render builds a message from template id and params. Every placeholder of
// the primary and English variants is checked before anything is executed.
func (e *Engine) Render(id string, params map[string]any, opts notification.RenderOptions) (*notification.Message, error) {
	e.mu.RLock()
	c, ok := e.templates[id]
	e.mu.RUnlock()
	if !ok {
		return nil, common.NewTemplateNotFoundError(id)
	}

	for _, names := range [][]string{c.params, c.paramsEN} {
		for _, name := range names {
			if _, ok := params[name]; !ok {
				return nil, common.NewTemplateParamMissingError(id, name)
			}
		}
	}

	def := c.def
	msg := &notification.Message{
		Type:         firstNonEmpty(opts.Overrides.Type, def.Type, notification.TypeSystem),
		Importance:   firstNonEmpty(opts.Overrides.Importance, def.Importance, notification.ImportanceNormal),
		TargetRole:   firstNonEmpty(opts.Overrides.TargetRole, def.TargetRole, notification.RoleAll),
		TargetUserID: opts.TargetUserID,
		ActionURL:    opts.ActionURL,
	}

	var err error
	if msg.Title, err = execute(c.title, params); err != nil {
		return nil, err
	}
	if msg.Content, err = execute(c.content, params); err != nil {
		return nil, err
	}
	if msg.TitleEN, err = execute(c.titleEN, params); err != nil {
		return nil, err
	}
	if msg.ContentEN, err = execute(c.contentEN, params); err != nil {
		return nil, err
	}

	expiry := def.ExpiryHours
	if opts.Overrides.ExpiryHours != nil {
		expiry = *opts.Overrides.ExpiryHours
	}
	if expiry <= 0 {
		expiry = notification.DefaultExpiryHours
	}
	msg.Extra = notification.Extra{
		TemplateID:  id,
		ExpiryHours: expiry,
		CreatedAt:   e.now(),
	}
	if len(opts.Details) > 0 {
		msg.Extra.Details = maps.Clone(opts.Details)
	}
	return msg, nil
}

func execute(t *template.Template, params map[string]any) (string, error) {
	if t == nil {
		return "", nil
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, params); err != nil {
		return "", fmt.Errorf("executing template %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}

// RenderInactivityWarning renders the commit warning for one side of a project.
func (e *Engine) RenderInactivityWarning(w notification.ProjectInactivity, role notification.TargetRole) (*notification.Message, notification.Level, error) {
	var (
		userID    int64
		actionURL string
	)
	switch role {
	case notification.RoleClient:
		userID = w.ClientID
		actionURL = fmt.Sprintf("/client/order/%d/milestones", w.OrderID)
	case notification.RoleFreelancer:
		userID = w.DeveloperID
		actionURL = fmt.Sprintf("/freelancer/milestones/%d", w.OrderID)
	default:
		return nil, "", common.NewValidationError(fmt.Sprintf("inactivity warnings target client or freelancer, not %s", role))
	}

	level, importance := notification.ClassifyInactivity(w.DaysWithoutCommits, w.TotalCommitCount)
	severity, severityEN := notification.SeverityMessage(level, w.DaysWithoutCommits)

	msg, err := e.Render(notification.TemplateProjectCommitWarning, map[string]any{
		"project_title":        w.ProjectTitle,
		"days_without_commits": w.DaysWithoutCommits,
		"total_commit_count":   w.TotalCommitCount,
		"warning_level":        level.Label(),
		"warning_level_en":     level.LabelEN(),
		"severity_message":     severity,
		"severity_message_en":  severityEN,
	}, notification.RenderOptions{
		TargetUserID: &userID,
		ActionURL:    actionURL,
		Overrides: notification.Overrides{
			Importance: importance,
			TargetRole: role,
		},
		Details: map[string]string{
			"project_id":    strconv.FormatInt(w.ProjectID, 10),
			"order_id":      strconv.FormatInt(w.OrderID, 10),
			"warning_level": level.Label(),
		},
	})
	if err != nil {
		return nil, "", err
	}
	msg.Extra.WarningLevel = level.Label()
	return msg, level, nil
}

// Template returns a copy of a stored template.
func (e *Engine) Template(id string) (notification.Template, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	c, ok := e.templates[id]
	if !ok {
		return notification.Template{}, common.NewTemplateNotFoundError(id)
	}
	return c.def, nil
}

// UpdateTemplate creates or fully replaces a template. A zero version on an
// existing id is bumped from the stored one.
func (e *Engine) UpdateTemplate(t notification.Template) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if prev, ok := e.templates[t.ID]; ok && t.Version == 0 {
		t.Version = prev.def.Version + 1
	}
	if t.Version == 0 {
		t.Version = 1
	}
	c, err := compile(t)
	if err != nil {
		return err
	}
	e.templates[t.ID] = c
	return nil
}

// TemplateIDs returns the ids of every stored template, sorted.
func (e *Engine) TemplateIDs() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Sorted(maps.Keys(e.templates))
}

func firstNonEmpty[T ~string](vals ...T) T {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// money formats a numeric parameter with two decimals.
func money(v any) (string, error) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case int32:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return "", err
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return "", fmt.Errorf("money: %q is not a number", n)
		}
		f = parsed
	default:
		return "", fmt.Errorf("money: unsupported value %v (%T)", v, v)
	}
	return strconv.FormatFloat(f, 'f', 2, 64), nil
}
