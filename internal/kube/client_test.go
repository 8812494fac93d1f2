package kube_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
	"sigs.k8s.io/controller-runtime/pkg/client/interceptor"

	"github.com/lexfrei/ambassador-annotation-sync/internal/kube"
	"github.com/lexfrei/ambassador-annotation-sync/internal/metrics"
)

func newService(namespace, name string, annotations map[string]string) *corev1.Service {
	return &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{
			Name:        name,
			Namespace:   namespace,
			Annotations: annotations,
		},
	}
}

func newFakeBuilder(objs ...client.Object) *fake.ClientBuilder {
	scheme := runtime.NewScheme()
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))

	return fake.NewClientBuilder().
		WithScheme(scheme).
		WithObjects(objs...)
}

func TestNewClient_MissingKubeconfig(t *testing.T) {
	t.Parallel()

	_, err := kube.NewClient(filepath.Join(t.TempDir(), "missing.config"), metrics.NewNoopCollector(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load kubeconfig")
}

func TestGetServiceAnnotations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := newService("sbb-dev", "svc1", map[string]string{
		kube.DefaultAnnotationKey: "timeout: 5s\n",
		"owner":                   "team-a",
	})

	c := kube.NewClientFor(newFakeBuilder(svc).Build(), metrics.NewNoopCollector(), nil)

	annotations, err := c.GetServiceAnnotations(ctx, "sbb-dev", "svc1")
	require.NoError(t, err)
	assert.Equal(t, "timeout: 5s\n", annotations[kube.DefaultAnnotationKey])
	assert.Equal(t, "team-a", annotations["owner"])
}

func TestGetServiceAnnotations_NotFound(t *testing.T) {
	t.Parallel()

	c := kube.NewClientFor(newFakeBuilder().Build(), metrics.NewNoopCollector(), nil)

	_, err := c.GetServiceAnnotations(context.Background(), "sbb-dev", "missing")
	require.Error(t, err)
	assert.True(t, apierrors.IsNotFound(err))
}

func TestPatchServiceAnnotation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := newService("sbb-dev", "svc1", map[string]string{
		kube.DefaultAnnotationKey: "old: value\n",
		"owner":                   "team-a",
	})

	fakeClient := newFakeBuilder(svc).Build()
	c := kube.NewClientFor(fakeClient, metrics.NewNoopCollector(), nil)

	err := c.PatchServiceAnnotation(ctx, kube.ServicePatch{
		Namespace: "sbb-dev",
		Name:      "svc1",
		Key:       kube.DefaultAnnotationKey,
		Value:     "timeout: 5s\n",
	})
	require.NoError(t, err)

	updated := &corev1.Service{}
	require.NoError(t, fakeClient.Get(ctx, types.NamespacedName{Namespace: "sbb-dev", Name: "svc1"}, updated))

	assert.Equal(t, "timeout: 5s\n", updated.Annotations[kube.DefaultAnnotationKey])
	assert.Equal(t, "team-a", updated.Annotations["owner"], "other annotations must survive the patch")
}

func TestPatchServiceAnnotation_DryRun(t *testing.T) {
	t.Parallel()

	var captured client.PatchOptions

	fakeClient := newFakeBuilder(newService("sbb-dev", "svc1", nil)).
		WithInterceptorFuncs(interceptor.Funcs{
			Patch: func(
				ctx context.Context,
				c client.WithWatch,
				obj client.Object,
				patch client.Patch,
				opts ...client.PatchOption,
			) error {
				captured.ApplyOptions(opts)

				data, err := patch.Data(obj)
				if err != nil {
					return err
				}

				assert.JSONEq(t, `{"metadata":{"annotations":{"getambassador.io/config":"timeout: 5s\n"}}}`, string(data))

				return nil
			},
		}).
		Build()

	c := kube.NewClientFor(fakeClient, metrics.NewNoopCollector(), nil)

	err := c.PatchServiceAnnotation(context.Background(), kube.ServicePatch{
		Namespace: "sbb-dev",
		Name:      "svc1",
		Key:       kube.DefaultAnnotationKey,
		Value:     "timeout: 5s\n",
		DryRun:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{metav1.DryRunAll}, captured.DryRun)
}

func TestPatchServiceAnnotation_NotFound(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	c := kube.NewClientFor(newFakeBuilder().Build(), collector, nil)

	err := c.PatchServiceAnnotation(context.Background(), kube.ServicePatch{
		Namespace: "sbb-dev",
		Name:      "missing",
		Key:       kube.DefaultAnnotationKey,
		Value:     "timeout: 5s\n",
	})
	require.Error(t, err)
	assert.True(t, apierrors.IsNotFound(err))
	assert.Contains(t, err.Error(), "sbb-dev/missing")

	expected := `
# HELP annotation_sync_kubernetes_api_errors_total Total Kubernetes API errors by type
# TYPE annotation_sync_kubernetes_api_errors_total counter
annotation_sync_kubernetes_api_errors_total{error_type="not_found",method="patch"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "annotation_sync_kubernetes_api_errors_total"))
}

func TestPatchServiceAnnotation_EmptyKey(t *testing.T) {
	t.Parallel()

	c := kube.NewClientFor(newFakeBuilder().Build(), nil, nil)

	err := c.PatchServiceAnnotation(context.Background(), kube.ServicePatch{Namespace: "ns-dev", Name: "svc1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "annotation key must not be empty")
}

func TestPatchServiceAnnotation_APIError(t *testing.T) {
	t.Parallel()

	errServer := apierrors.NewInternalError(errors.New("etcd unavailable"))

	fakeClient := newFakeBuilder(newService("sbb-dev", "svc1", nil)).
		WithInterceptorFuncs(interceptor.Funcs{
			Patch: func(context.Context, client.WithWatch, client.Object, client.Patch, ...client.PatchOption) error {
				return errServer
			},
		}).
		Build()

	c := kube.NewClientFor(fakeClient, metrics.NewNoopCollector(), nil)

	err := c.PatchServiceAnnotation(context.Background(), kube.ServicePatch{
		Namespace: "sbb-dev",
		Name:      "svc1",
		Key:       kube.DefaultAnnotationKey,
		Value:     "x: 1\n",
	})
	require.Error(t, err)
	assert.True(t, apierrors.IsInternalError(err))
}
