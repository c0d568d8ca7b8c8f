package models

// RiskLevel gates a playbook step behind human approval.
type RiskLevel string

// Risk level constants.
const (
	// RiskLow executes immediately, notify after.
	RiskLow RiskLevel = "low"
	// RiskMedium requires human approval (may be downgraded to low when
	// auto-remediation is enabled).
	RiskMedium RiskLevel = "medium"
	// RiskHigh always requires human approval.
	RiskHigh RiskLevel = "high"
)

// IsValid checks if the risk level is a known variant.
func (r RiskLevel) IsValid() bool {
	return r == RiskLow || r == RiskMedium || r == RiskHigh
}

// RequiresApproval reports whether a step at this risk level must go
// through the approval manager.
func (r RiskLevel) RequiresApproval() bool {
	return r == RiskMedium || r == RiskHigh
}

// ParamValue is either a literal value or a template string whose
// "{placeholder}" tokens are substituted from the incident context.
type ParamValue struct {
	literal    any
	template   string
	isTemplate bool
}

// Literal wraps a value that is passed to the tool unchanged.
func Literal(v any) ParamValue {
	return ParamValue{literal: v}
}

// Template wraps a string whose placeholders are resolved at execution time.
func Template(s string) ParamValue {
	return ParamValue{template: s, isTemplate: true}
}

// IsTemplate reports whether the value carries a template string.
func (p ParamValue) IsTemplate() bool { return p.isTemplate }

// TemplateString returns the raw template, or "" for literals.
func (p ParamValue) TemplateString() string { return p.template }

// LiteralValue returns the wrapped literal, or nil for templates.
func (p ParamValue) LiteralValue() any { return p.literal }

// PlaybookStep is a single tool invocation within a playbook.
type PlaybookStep struct {
	Name           string                `json:"name"`
	Description    string                `json:"description"`
	Risk           RiskLevel             `json:"risk_level"`
	ToolName       string                `json:"tool_name"`
	Params         map[string]ParamValue `json:"-"`
	SuccessPattern string                `json:"success_pattern,omitempty"`
}

// Playbook is an ordered, non-empty sequence of remediation steps.
// Immutable after registration.
type Playbook struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Steps       []PlaybookStep `json:"steps"`
}

// RequiresApproval reports whether any step needs human approval.
func (p Playbook) RequiresApproval() bool {
	for _, s := range p.Steps {
		if s.Risk.RequiresApproval() {
			return true
		}
	}
	return false
}
