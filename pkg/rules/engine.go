// Package rules evaluates cluster events against remediation rules.
// Evaluation is pure: it maps an event to the ordered list of matching
// (rule, playbook) pairs without side effects.
package rules

import (
	"fmt"
	"log/slog"
	"regexp"
	"sync"

	"github.com/codeready-toolchain/medik/pkg/models"
)

// Match is one rule that fired for an event.
type Match struct {
	Rule       models.Rule
	PlaybookID string
}

type compiledRule struct {
	rule models.Rule
	nsRe *regexp.Regexp // nil when no namespace filter
}

// Engine holds the registered rules and evaluates events against them.
// Matches preserve registration order.
type Engine struct {
	mu     sync.RWMutex
	rules  []compiledRule
	logger *slog.Logger
}

// New creates an empty rule engine.
func New() *Engine {
	return &Engine{logger: slog.Default().With("component", "rule-engine")}
}

// NewWithDefaults creates an engine pre-loaded with the builtin rules.
func NewWithDefaults() *Engine {
	e := New()
	for _, r := range BuiltinRules() {
		if err := e.Add(r); err != nil {
			panic(fmt.Sprintf("builtin rule %q: %v", r.ID, err))
		}
	}
	return e
}

// Add registers a rule. An existing rule with the same id is replaced in
// place, keeping its original position in evaluation order.
func (e *Engine) Add(r models.Rule) error {
	if r.ID == "" {
		return fmt.Errorf("rule id is required")
	}
	if !r.Condition.IsValid() {
		return fmt.Errorf("rule %q has unknown condition %q", r.ID, r.Condition)
	}
	if r.SeverityFilter != "" && !r.SeverityFilter.IsValid() {
		return fmt.Errorf("rule %q has unknown severity filter %q", r.ID, r.SeverityFilter)
	}
	cr := compiledRule{rule: r}
	if r.NamespaceFilter != "" {
		re, err := regexp.Compile(r.NamespaceFilter)
		if err != nil {
			return fmt.Errorf("rule %q namespace filter: %w", r.ID, err)
		}
		cr.nsRe = re
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.rules {
		if e.rules[i].rule.ID == r.ID {
			e.rules[i] = cr
			e.logger.Info("Rule replaced", "rule_id", r.ID, "name", r.Name, "playbook", r.PlaybookID)
			return nil
		}
	}
	e.rules = append(e.rules, cr)
	e.logger.Info("Rule registered", "rule_id", r.ID, "name", r.Name, "playbook", r.PlaybookID)
	return nil
}

// Remove deletes a rule by id. Returns false if no such rule exists.
func (e *Engine) Remove(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.rules {
		if e.rules[i].rule.ID == id {
			e.rules = append(e.rules[:i], e.rules[i+1:]...)
			return true
		}
	}
	return false
}

// List returns the registered rules in evaluation order.
func (e *Engine) List() []models.Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]models.Rule, 0, len(e.rules))
	for _, cr := range e.rules {
		out = append(out, cr.rule)
	}
	return out
}

// Evaluate returns every enabled rule matching the event, in registration
// order. Multiple rules may match one event; all of them fire.
func (e *Engine) Evaluate(event models.ClusterEvent) []Match {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var matches []Match
	for _, cr := range e.rules {
		if !e.matches(cr, event) {
			continue
		}
		e.logger.Info("Rule matched",
			"rule_id", cr.rule.ID,
			"name", cr.rule.Name,
			"event_type", event.Type,
			"resource", event.ResourceKey())
		matches = append(matches, Match{Rule: cr.rule, PlaybookID: cr.rule.PlaybookID})
	}
	return matches
}

func (e *Engine) matches(cr compiledRule, event models.ClusterEvent) bool {
	r := cr.rule
	if !r.Enabled {
		return false
	}
	if r.Condition != event.Type {
		return false
	}
	if cr.nsRe != nil && !cr.nsRe.MatchString(event.Resource.Namespace) {
		return false
	}
	// Exact, case-sensitive comparison; severities are canonicalized at the
	// boundary.
	if r.SeverityFilter != "" && r.SeverityFilter != event.Severity {
		return false
	}
	return true
}
