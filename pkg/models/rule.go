package models

// Rule maps an event condition to a remediation playbook.
//
// NamespaceFilter is a regex matched against the event namespace and
// SeverityFilter is an exact, case-sensitive severity match; both are
// skipped when empty.
type Rule struct {
	ID              string         `json:"id" yaml:"id"`
	Name            string         `json:"name" yaml:"name"`
	Condition       EventType      `json:"condition" yaml:"condition"`
	PlaybookID      string         `json:"playbook_id" yaml:"playbook_id"`
	Enabled         bool           `json:"enabled" yaml:"enabled"`
	NamespaceFilter string         `json:"namespace_filter,omitempty" yaml:"namespace_filter,omitempty"`
	SeverityFilter  Severity       `json:"severity_filter,omitempty" yaml:"severity_filter,omitempty"`
	Params          map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}
