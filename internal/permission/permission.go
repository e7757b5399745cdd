// Package permission provides the types exchanged in can_use_tool control requests.
package permission

import "context"

// Mode represents a CLI permission mode.
type Mode string

const (
	// ModeDefault uses standard permission prompts.
	ModeDefault Mode = "default"
	// ModeAcceptEdits automatically accepts file edits.
	ModeAcceptEdits Mode = "acceptEdits"
	// ModePlan enables plan mode.
	ModePlan Mode = "plan"
	// ModeBypassPermissions bypasses all permission checks.
	ModeBypassPermissions Mode = "bypassPermissions"
)

// UpdateType represents the kind of permission update.
type UpdateType string

const (
	UpdateTypeAddRules          UpdateType = "addRules"
	UpdateTypeReplaceRules      UpdateType = "replaceRules"
	UpdateTypeRemoveRules       UpdateType = "removeRules"
	UpdateTypeSetMode           UpdateType = "setMode"
	UpdateTypeAddDirectories    UpdateType = "addDirectories"
	UpdateTypeRemoveDirectories UpdateType = "removeDirectories"
)

// Behavior is the outcome a rule applies.
type Behavior string

const (
	BehaviorAllow Behavior = "allow"
	BehaviorDeny  Behavior = "deny"
	BehaviorAsk   Behavior = "ask"
)

// Rule is a single permission rule.
type Rule struct {
	ToolName    string
	RuleContent *string
}

// Update is a permission change suggested by the CLI or returned with an Allow.
type Update struct {
	Type        UpdateType
	Rules       []*Rule
	Behavior    *Behavior
	Mode        *Mode
	Directories []string
	Destination *string
}

// ToMap converts the update to the CLI wire format.
func (u *Update) ToMap() map[string]any {
	result := map[string]any{"type": string(u.Type)}

	if u.Destination != nil {
		result["destination"] = *u.Destination
	}

	if len(u.Rules) > 0 {
		rules := make([]map[string]any, 0, len(u.Rules))
		for _, r := range u.Rules {
			rule := map[string]any{"toolName": r.ToolName}
			if r.RuleContent != nil {
				rule["ruleContent"] = *r.RuleContent
			}

			rules = append(rules, rule)
		}

		result["rules"] = rules
	}

	if u.Behavior != nil {
		result["behavior"] = string(*u.Behavior)
	}

	if u.Mode != nil {
		result["mode"] = string(*u.Mode)
	}

	if len(u.Directories) > 0 {
		result["directories"] = u.Directories
	}

	return result
}

// ParseUpdate reads an update from its wire format. Unknown fields are ignored.
func ParseUpdate(raw map[string]any) *Update {
	u := &Update{}

	if t, ok := raw["type"].(string); ok {
		u.Type = UpdateType(t)
	}

	if d, ok := raw["destination"].(string); ok {
		u.Destination = &d
	}

	if b, ok := raw["behavior"].(string); ok {
		behavior := Behavior(b)
		u.Behavior = &behavior
	}

	if m, ok := raw["mode"].(string); ok {
		mode := Mode(m)
		u.Mode = &mode
	}

	if rules, ok := raw["rules"].([]any); ok {
		for _, r := range rules {
			rm, ok := r.(map[string]any)
			if !ok {
				continue
			}

			rule := &Rule{}
			rule.ToolName, _ = rm["toolName"].(string)

			if c, ok := rm["ruleContent"].(string); ok {
				rule.RuleContent = &c
			}

			u.Rules = append(u.Rules, rule)
		}
	}

	if dirs, ok := raw["directories"].([]any); ok {
		for _, d := range dirs {
			if s, ok := d.(string); ok {
				u.Directories = append(u.Directories, s)
			}
		}
	}

	return u
}

// Request is an incoming permission check for a tool use.
type Request struct {
	ToolName    string
	Input       map[string]any
	ToolUseID   string
	BlockedPath *string
	Suggestions []*Update
}

// Decision is the result of a permission check.
type Decision interface {
	Behavior() Behavior
	ToMap() map[string]any
}

// Compile-time verification that decision types implement Decision.
var (
	_ Decision = (*Allow)(nil)
	_ Decision = (*Deny)(nil)
)

// Allow permits the tool use, optionally rewriting its input.
type Allow struct {
	UpdatedInput       map[string]any
	UpdatedPermissions []*Update
}

// Behavior implements Decision.
func (a *Allow) Behavior() Behavior { return BehaviorAllow }

// ToMap implements Decision.
func (a *Allow) ToMap() map[string]any {
	result := map[string]any{"behavior": string(BehaviorAllow)}

	if a.UpdatedInput != nil {
		result["updatedInput"] = a.UpdatedInput
	}

	if len(a.UpdatedPermissions) > 0 {
		updates := make([]map[string]any, 0, len(a.UpdatedPermissions))
		for _, u := range a.UpdatedPermissions {
			updates = append(updates, u.ToMap())
		}

		result["updatedPermissions"] = updates
	}

	return result
}

// Deny rejects the tool use.
type Deny struct {
	Message   string
	Interrupt bool
}

// Behavior implements Decision.
func (d *Deny) Behavior() Behavior { return BehaviorDeny }

// ToMap implements Decision.
func (d *Deny) ToMap() map[string]any {
	result := map[string]any{
		"behavior": string(BehaviorDeny),
		"message":  d.Message,
	}

	if d.Interrupt {
		result["interrupt"] = true
	}

	return result
}

// Callback decides whether a tool use may proceed.
type Callback func(ctx context.Context, req *Request) (Decision, error)
