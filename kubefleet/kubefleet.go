// Package kubefleet is a purely informational sibling-pod counter for the
// sync worker when deployed on Kubernetes (SPEC_FULL.md §C.4). It is NOT
// a coordination mechanism — lease/claim coordination stays entirely at
// the database level per spec §9; this only feeds a gauge.
package kubefleet

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	metricsclient "k8s.io/metrics/pkg/client/clientset/versioned"

	"github.com/gottino/rmirror-cloud/cmn/nlog"
	"github.com/gottino/rmirror-cloud/telemetry"
)

// Reporter counts Ready pods matching a label selector and publishes the
// count (and, if metrics-server is installed, aggregate CPU usage) as
// gauges, once per FleetSize/FleetCPUMillicores call; any periodic schedule
// comes from the caller. Safe to omit entirely outside k8s —
// callers that don't construct one simply never see the gauges move.
type Reporter struct {
	client        kubernetes.Interface
	metricsClient metricsclient.Interface
	namespace     string
	selector      string
}

// NewInCluster builds a Reporter using the in-cluster service account,
// returning an error (not a panic) when not running inside a pod so
// callers can treat it as optional.
func NewInCluster(namespace, labelSelector string) (*Reporter, error) {
	cfg, err := rest.InClusterConfig()
	if err != nil {
		return nil, fmt.Errorf("kubefleet: not running in-cluster: %w", err)
	}
	client, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, err
	}
	metricsC, err := metricsclient.NewForConfig(cfg)
	if err != nil {
		return nil, err
	}
	return &Reporter{client: client, metricsClient: metricsC, namespace: namespace, selector: labelSelector}, nil
}

// FleetSize counts Ready pods matching the selector and records it as an
// informational gauge. Errors are logged, not propagated — a broken k8s
// API connection must never affect sync worker behavior.
func (r *Reporter) FleetSize(ctx context.Context) int {
	pods, err := r.client.CoreV1().Pods(r.namespace).List(ctx, metav1.ListOptions{LabelSelector: r.selector})
	if err != nil {
		nlog.Warnf("kubefleet: list pods: %v", err)
		return 0
	}

	ready := 0
	for _, p := range pods.Items {
		if podReady(&p) {
			ready++
		}
	}
	telemetry.FleetSize.Set(float64(ready))
	return ready
}

// FleetCPUMillicores sums metrics-server's current CPU usage across pods
// matching the selector, for the same informational gauge family as
// FleetSize. Returns 0 (logging a warning) if metrics-server isn't
// installed — this must never block sync worker startup.
func (r *Reporter) FleetCPUMillicores(ctx context.Context) int64 {
	list, err := r.metricsClient.MetricsV1beta1().PodMetricses(r.namespace).List(ctx, metav1.ListOptions{LabelSelector: r.selector})
	if err != nil {
		nlog.Warnf("kubefleet: list pod metrics: %v", err)
		return 0
	}

	var total int64
	for _, pm := range list.Items {
		for _, c := range pm.Containers {
			total += c.Usage.Cpu().MilliValue()
		}
	}
	telemetry.FleetCPUMillicores.Set(float64(total))
	return total
}

func podReady(p *corev1.Pod) bool {
	if p.Status.Phase != corev1.PodRunning {
		return false
	}
	for _, c := range p.Status.Conditions {
		if c.Type == corev1.PodReady {
			return c.Status == corev1.ConditionTrue
		}
	}
	return false
}
