package kube

import (
	"context"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/tools/clientcmd"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/lexfrei/ambassador-annotation-sync/internal/metrics"
)

// DefaultAnnotationKey is the annotation Ambassador reads its config from.
const DefaultAnnotationKey = "getambassador.io/config"

// ServicePatch sets one annotation on one Service.
type ServicePatch struct {
	Namespace string
	Name      string
	Key       string
	Value     string
	DryRun    bool
}

// Client wraps Service operations against a single cluster.
type Client struct {
	client  client.Client
	metrics metrics.Collector
	logger  *slog.Logger
}

// NewClient builds a Client from the kubeconfig at kubeconfigPath.
func NewClient(kubeconfigPath string, metricsCollector metrics.Collector, logger *slog.Logger) (*Client, error) {
	restConfig, err := clientcmd.BuildConfigFromFlags("", kubeconfigPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load kubeconfig %s", kubeconfigPath)
	}

	scheme := runtime.NewScheme()
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))

	ctrlClient, err := client.New(restConfig, client.Options{Scheme: scheme})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create kubernetes client")
	}

	return NewClientFor(ctrlClient, metricsCollector, logger), nil
}

// NewClientFor wraps an existing controller-runtime client.
func NewClientFor(c client.Client, metricsCollector metrics.Collector, logger *slog.Logger) *Client {
	if metricsCollector == nil {
		metricsCollector = metrics.NewNoopCollector()
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		client:  c,
		metrics: metricsCollector,
		logger:  logger.With("component", "kube-client"),
	}
}

// GetServiceAnnotations returns the current annotations of a Service.
func (c *Client) GetServiceAnnotations(ctx context.Context, namespace, name string) (map[string]string, error) {
	c.logger.Debug("retrieving service", "namespace", namespace, "service", name)

	svc := &corev1.Service{}
	startTime := time.Now()

	err := c.client.Get(ctx, types.NamespacedName{Namespace: namespace, Name: name}, svc)
	c.record(ctx, "get", startTime, err)

	if err != nil {
		return nil, errors.Wrapf(err, "failed to get service %s/%s", namespace, name)
	}

	return svc.GetAnnotations(), nil
}

// PatchServiceAnnotation sets patch.Key to patch.Value on the Service.
func (c *Client) PatchServiceAnnotation(ctx context.Context, patch ServicePatch) error {
	if patch.Key == "" {
		return errors.New("annotation key must not be empty")
	}

	base := &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{
			Name:      patch.Name,
			Namespace: patch.Namespace,
		},
	}

	desired := base.DeepCopy()
	desired.SetAnnotations(map[string]string{patch.Key: patch.Value})

	var opts []client.PatchOption
	if patch.DryRun {
		opts = append(opts, client.DryRunAll)
	}

	c.logger.Info("patching service",
		"namespace", patch.Namespace,
		"service", patch.Name,
		"dryRun", patch.DryRun,
	)

	startTime := time.Now()

	err := c.client.Patch(ctx, desired, client.MergeFrom(base), opts...)
	c.record(ctx, "patch", startTime, err)

	if err != nil {
		return errors.Wrapf(err, "failed to patch service %s/%s", patch.Namespace, patch.Name)
	}

	return nil
}

func (c *Client) record(ctx context.Context, method string, startTime time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"

		c.metrics.RecordAPIError(ctx, method, metrics.ClassifyKubernetesError(err))
	}

	c.metrics.RecordAPICall(ctx, method, status, time.Since(startTime))
}
