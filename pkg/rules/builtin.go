package rules

import "github.com/codeready-toolchain/medik/pkg/models"

// BuiltinRules returns the shipped default rules. Each maps a critical
// anomaly type to its remediation playbook.
func BuiltinRules() []models.Rule {
	return []models.Rule{
		{
			ID:             "rule-001",
			Name:           "CrashLoop Auto-Restart",
			Condition:      models.EventTypeCrashLoop,
			PlaybookID:     "crash_loop_remediation",
			Enabled:        true,
			SeverityFilter: models.SeverityCritical,
		},
		{
			ID:             "rule-002",
			Name:           "OOMKill Memory Increase",
			Condition:      models.EventTypeOOMKilled,
			PlaybookID:     "oom_kill_remediation",
			Enabled:        true,
			SeverityFilter: models.SeverityCritical,
		},
		{
			ID:             "rule-003",
			Name:           "NotReady Node Evacuation",
			Condition:      models.EventTypeNotReadyNode,
			PlaybookID:     "node_not_ready_remediation",
			Enabled:        true,
			SeverityFilter: models.SeverityCritical,
		},
		{
			ID:             "rule-004",
			Name:           "Replication Failure Rollback",
			Condition:      models.EventTypeReplicationFailure,
			PlaybookID:     "deployment_rollback",
			Enabled:        true,
			SeverityFilter: models.SeverityCritical,
		},
	}
}
