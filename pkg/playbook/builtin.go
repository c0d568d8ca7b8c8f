package playbook

import "github.com/codeready-toolchain/medik/pkg/models"

// builtinPlaybooks returns the shipped remediation playbooks covering the
// common Kubernetes failure scenarios.
func builtinPlaybooks() []models.Playbook {
	return []models.Playbook{
		{
			ID:          "crash_loop_remediation",
			Name:        "CrashLoop Remediation",
			Description: "Diagnose and remediate a CrashLoopBackOff pod",
			Steps: []models.PlaybookStep{
				{
					Name:        "Describe Pod",
					Description: "Gather pod conditions and events",
					Risk:        models.RiskLow,
					ToolName:    "k8s_describe_resource",
					Params: map[string]models.ParamValue{
						"resource_type": models.Literal("pod"),
						"resource_name": models.Template("{resource_name}"),
						"namespace":     models.Template("{namespace}"),
					},
				},
				{
					Name:        "Fetch Recent Logs",
					Description: "Get last 100 lines of logs for error analysis",
					Risk:        models.RiskLow,
					ToolName:    "k8s_analyze_logs",
					Params: map[string]models.ParamValue{
						"pod_name":   models.Template("{resource_name}"),
						"namespace":  models.Template("{namespace}"),
						"tail_lines": models.Literal(100),
					},
				},
				{
					Name:        "Restart Pod",
					Description: "Delete pod to trigger fresh restart (controller will recreate)",
					Risk:        models.RiskMedium,
					ToolName:    "k8s_restart_pod",
					Params: map[string]models.ParamValue{
						"pod_name":  models.Template("{resource_name}"),
						"namespace": models.Template("{namespace}"),
					},
				},
				{
					Name:        "Verify Recovery",
					Description: "Check pod status after restart",
					Risk:        models.RiskLow,
					ToolName:    "k8s_get_pods",
					Params: map[string]models.ParamValue{
						"namespace":      models.Template("{namespace}"),
						"label_selector": models.Literal(""),
					},
				},
			},
		},
		{
			ID:          "oom_kill_remediation",
			Name:        "OOMKill Remediation",
			Description: "Increase memory limits for OOM-killed pods",
			Steps: []models.PlaybookStep{
				{
					Name:        "Get Current Limits",
					Description: "Describe deployment to see current memory limits",
					Risk:        models.RiskLow,
					ToolName:    "k8s_describe_resource",
					Params: map[string]models.ParamValue{
						"resource_type": models.Literal("deployment"),
						"resource_name": models.Template("{resource_name}"),
						"namespace":     models.Template("{namespace}"),
					},
				},
				{
					Name:        "Increase Memory Limit",
					Description: "Patch deployment to increase memory limit",
					Risk:        models.RiskHigh,
					ToolName:    "k8s_patch_resource",
					Params: map[string]models.ParamValue{
						"resource_type": models.Literal("deployment"),
						"resource_name": models.Template("{resource_name}"),
						"namespace":     models.Template("{namespace}"),
						"patch":         models.Template(`{"spec":{"template":{"spec":{"containers":[{"name":"{resource_name}","resources":{"limits":{"memory":"1Gi"}}}]}}}}`),
					},
				},
			},
		},
		{
			ID:          "deployment_rollback",
			Name:        "Deployment Rollback",
			Description: "Roll back a failing deployment to the previous stable revision",
			Steps: []models.PlaybookStep{
				{
					Name:        "Get Rollout History",
					Description: "Show deployment revisions available for rollback",
					Risk:        models.RiskLow,
					ToolName:    "k8s_get_rollout_history",
					Params: map[string]models.ParamValue{
						"deployment_name": models.Template("{resource_name}"),
						"namespace":       models.Template("{namespace}"),
					},
				},
				{
					Name:        "Rollback Deployment",
					Description: "Undo to previous stable revision",
					Risk:        models.RiskHigh,
					ToolName:    "k8s_rollback_deployment",
					Params: map[string]models.ParamValue{
						"deployment_name": models.Template("{resource_name}"),
						"namespace":       models.Template("{namespace}"),
					},
				},
				{
					Name:        "Check Rollout Status",
					Description: "Verify rollback completed successfully",
					Risk:        models.RiskLow,
					ToolName:    "k8s_rollout_status",
					Params: map[string]models.ParamValue{
						"deployment_name": models.Template("{resource_name}"),
						"namespace":       models.Template("{namespace}"),
					},
				},
			},
		},
		{
			ID:          "node_not_ready_remediation",
			Name:        "Node NotReady Remediation",
			Description: "Drain and cordon a NotReady node",
			Steps: []models.PlaybookStep{
				{
					Name:        "Describe Node",
					Description: "Gather node conditions and events",
					Risk:        models.RiskLow,
					ToolName:    "k8s_describe_resource",
					Params: map[string]models.ParamValue{
						"resource_type": models.Literal("node"),
						"resource_name": models.Template("{resource_name}"),
						"namespace":     models.Literal(""),
					},
				},
				{
					Name:        "Cordon Node",
					Description: "Prevent new pods from scheduling on this node",
					Risk:        models.RiskMedium,
					ToolName:    "k8s_cordon_node",
					Params: map[string]models.ParamValue{
						"node_name": models.Template("{resource_name}"),
					},
				},
				{
					Name:        "Drain Node",
					Description: "Evict all pods from the node",
					Risk:        models.RiskHigh,
					ToolName:    "k8s_drain_node",
					Params: map[string]models.ParamValue{
						"node_name": models.Template("{resource_name}"),
					},
				},
			},
		},
		{
			ID:          "scale_up_on_load",
			Name:        "Scale Up Under Load",
			Description: "Increase replica count when HPA has hit maxReplicas",
			Steps: []models.PlaybookStep{
				{
					Name:        "Scale Deployment",
					Description: "Add replicas to handle increased load",
					Risk:        models.RiskMedium,
					ToolName:    "k8s_scale_deployment",
					Params: map[string]models.ParamValue{
						"deployment": models.Template("{resource_name}"),
						"namespace":  models.Template("{namespace}"),
						"replicas":   models.Template("{target_replicas}"),
					},
				},
			},
		},
	}
}
