// Package kube provides read-only cluster snapshots for the watchloop.
// The Cluster interface abstracts the Kubernetes API so the watchloop can
// be tested against fakes.
package kube

import "context"

// PodInfo is a snapshot of a pod's health-relevant state.
type PodInfo struct {
	Name          string
	Namespace     string
	Labels        map[string]string
	Phase         string
	WaitingReason string // worst container waiting reason, "" when none
	Restarts      int32
}

// NodeInfo is a snapshot of a node's readiness.
type NodeInfo struct {
	Name   string
	Labels map[string]string
	Ready  bool
}

// DeploymentInfo is a snapshot of a deployment's replica counts.
type DeploymentInfo struct {
	Name              string
	Namespace         string
	Labels            map[string]string
	DesiredReplicas   int32
	AvailableReplicas int32
}

// Cluster lists typed snapshots of cluster state.
type Cluster interface {
	ListPods(ctx context.Context) ([]PodInfo, error)
	ListNodes(ctx context.Context) ([]NodeInfo, error)
	ListNamespaces(ctx context.Context) ([]string, error)
	ListDeployments(ctx context.Context, namespace string) ([]DeploymentInfo, error)
}
