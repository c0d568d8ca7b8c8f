package kube

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// Client implements Cluster on top of a Kubernetes clientset.
type Client struct {
	clientset kubernetes.Interface
}

// NewClient builds a client from in-cluster config when running inside a
// pod, falling back to the kubeconfig file (KUBECONFIG or ~/.kube/config).
func NewClient() (*Client, error) {
	cfg, err := rest.InClusterConfig()
	if err != nil {
		kubeconfig := os.Getenv("KUBECONFIG")
		if kubeconfig == "" {
			home, herr := os.UserHomeDir()
			if herr != nil {
				return nil, fmt.Errorf("resolving kubeconfig path: %w", herr)
			}
			kubeconfig = filepath.Join(home, ".kube", "config")
		}
		cfg, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
		if err != nil {
			return nil, fmt.Errorf("loading kubeconfig: %w", err)
		}
		slog.Info("Kubernetes client initialized", "mode", "kubeconfig", "path", kubeconfig)
	} else {
		slog.Info("Kubernetes client initialized", "mode", "in-cluster")
	}

	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating clientset: %w", err)
	}
	return &Client{clientset: clientset}, nil
}

// NewClientFromClientset wraps an existing clientset (useful for testing).
func NewClientFromClientset(clientset kubernetes.Interface) *Client {
	return &Client{clientset: clientset}
}

// ListPods returns snapshots of all pods cluster-wide.
func (c *Client) ListPods(ctx context.Context) ([]PodInfo, error) {
	list, err := c.clientset.CoreV1().Pods(metav1.NamespaceAll).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing pods: %w", err)
	}
	pods := make([]PodInfo, 0, len(list.Items))
	for i := range list.Items {
		pods = append(pods, podInfo(&list.Items[i]))
	}
	return pods, nil
}

// ListNodes returns readiness snapshots of all nodes.
func (c *Client) ListNodes(ctx context.Context) ([]NodeInfo, error) {
	list, err := c.clientset.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing nodes: %w", err)
	}
	nodes := make([]NodeInfo, 0, len(list.Items))
	for i := range list.Items {
		node := &list.Items[i]
		nodes = append(nodes, NodeInfo{
			Name:   node.Name,
			Labels: node.Labels,
			Ready:  nodeReady(node),
		})
	}
	return nodes, nil
}

// ListNamespaces returns the names of all namespaces.
func (c *Client) ListNamespaces(ctx context.Context) ([]string, error) {
	list, err := c.clientset.CoreV1().Namespaces().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing namespaces: %w", err)
	}
	names := make([]string, 0, len(list.Items))
	for i := range list.Items {
		names = append(names, list.Items[i].Name)
	}
	return names, nil
}

// ListDeployments returns replica snapshots of deployments in a namespace.
func (c *Client) ListDeployments(ctx context.Context, namespace string) ([]DeploymentInfo, error) {
	list, err := c.clientset.AppsV1().Deployments(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing deployments in %s: %w", namespace, err)
	}
	deployments := make([]DeploymentInfo, 0, len(list.Items))
	for i := range list.Items {
		dep := &list.Items[i]
		desired := int32(1)
		if dep.Spec.Replicas != nil {
			desired = *dep.Spec.Replicas
		}
		deployments = append(deployments, DeploymentInfo{
			Name:              dep.Name,
			Namespace:         dep.Namespace,
			Labels:            dep.Labels,
			DesiredReplicas:   desired,
			AvailableReplicas: dep.Status.AvailableReplicas,
		})
	}
	return deployments, nil
}

func podInfo(pod *corev1.Pod) PodInfo {
	info := PodInfo{
		Name:      pod.Name,
		Namespace: pod.Namespace,
		Labels:    pod.Labels,
		Phase:     string(pod.Status.Phase),
	}
	for _, cs := range pod.Status.ContainerStatuses {
		info.Restarts += cs.RestartCount
		if cs.State.Waiting != nil && info.WaitingReason == "" {
			info.WaitingReason = cs.State.Waiting.Reason
		}
	}
	return info
}

func nodeReady(node *corev1.Node) bool {
	for _, cond := range node.Status.Conditions {
		if cond.Type == corev1.NodeReady {
			return cond.Status == corev1.ConditionTrue
		}
	}
	return false
}
