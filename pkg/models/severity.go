package models

import "strings"

// Severity ranks how urgent a cluster event is. Values compare as opaque
// strings; rule severity filters match exactly.
type Severity string

// Severity constants.
const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// IsValid checks if the severity is a known variant.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium,
		SeverityLow, SeverityWarning, SeverityInfo:
		return true
	default:
		return false
	}
}

// ParseSeverity maps an external severity label to a known variant.
// Matching is case-insensitive; unknown or empty values default to warning.
func ParseSeverity(s string) Severity {
	severity := Severity(strings.ToLower(strings.TrimSpace(s)))
	if severity.IsValid() {
		return severity
	}
	return SeverityWarning
}
