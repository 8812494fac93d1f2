package syncer

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/lexfrei/ambassador-annotation-sync/internal/annotation"
	"github.com/lexfrei/ambassador-annotation-sync/internal/config"
	"github.com/lexfrei/ambassador-annotation-sync/internal/kube"
	"github.com/lexfrei/ambassador-annotation-sync/internal/metrics"
)

// ErrNoClient is recorded for services processed without a cluster client.
var ErrNoClient = errors.New("no kubernetes client available")

// ServiceClient is the cluster surface a sync pass needs.
type ServiceClient interface {
	GetServiceAnnotations(ctx context.Context, namespace, name string) (map[string]string, error)
	PatchServiceAnnotation(ctx context.Context, patch kube.ServicePatch) error
}

// ClientFactory connects to the cluster for an environment.
type ClientFactory func(ctx context.Context, environment string) (ServiceClient, error)

// Options tune a sync pass.
type Options struct {
	// AnnotationKey is the Service annotation that receives the rendered block.
	AnnotationKey string

	// DryRun submits patches for server-side validation only.
	DryRun bool

	// PreserveUnmanaged keeps entries of the current annotation value that
	// the config does not manage. When false the value is overwritten.
	PreserveUnmanaged bool

	// Services limits the pass to the named services. Empty means all.
	Services []string

	// RequestTimeout bounds each API call. Zero means no extra timeout.
	RequestTimeout time.Duration
}

// Syncer reconciles one config document onto one namespace.
type Syncer struct {
	document *config.Document
	connect  ClientFactory
	options  Options
	metrics  metrics.Collector
	logger   *slog.Logger
}

// New creates a Syncer.
func New(
	document *config.Document,
	connect ClientFactory,
	options Options,
	metricsCollector metrics.Collector,
	logger *slog.Logger,
) *Syncer {
	if options.AnnotationKey == "" {
		options.AnnotationKey = kube.DefaultAnnotationKey
	}

	if metricsCollector == nil {
		metricsCollector = metrics.NewNoopCollector()
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Syncer{
		document: document,
		connect:  connect,
		options:  options,
		metrics:  metricsCollector,
		logger:   logger.With("component", "syncer"),
	}
}

// Run performs the pass. It only returns an error for fatal problems;
// per-service failures are reported in the Result.
func (s *Syncer) Run(ctx context.Context) (*Result, error) {
	startTime := time.Now()

	namespace, err := config.ParseNamespace(s.document.Namespace)
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive environment")
	}

	logger := s.logger.With("namespace", namespace.Name)
	logger.Info("updating annotations", "environment", namespace.Environment, "services", len(s.document.Services))

	svcClient := s.connectClient(ctx, logger, namespace.Environment)

	globals, err := renderGlobals(logger, s.document.Global)
	if err != nil {
		logger.Error("failed to render global annotations", "error", err)

		return nil, err
	}

	result := &Result{Namespace: namespace.Name, DryRun: s.options.DryRun}

	for _, svc := range s.document.Services {
		if len(s.options.Services) > 0 && !slices.Contains(s.options.Services, svc.Name) {
			continue
		}

		if ctx.Err() != nil {
			s.metrics.RecordRunDuration(ctx, "interrupted", time.Since(startTime))

			return result, errors.Wrap(ctx.Err(), "sync interrupted")
		}

		serviceResult := s.syncService(ctx, logger, svcClient, namespace.Name, svc, globals)
		s.metrics.RecordServiceOutcome(ctx, string(serviceResult.Outcome))
		result.Services = append(result.Services, serviceResult)
	}

	s.metrics.RecordRunDuration(ctx, result.status(), time.Since(startTime))

	logger.Info("sync pass complete",
		"patched", result.Count(OutcomePatched),
		"failed", result.Count(OutcomeFailed),
		"skipped", result.Count(OutcomeSkipped),
		"dryRun", s.options.DryRun,
	)

	return result, nil
}

func (s *Syncer) connectClient(ctx context.Context, logger *slog.Logger, environment string) ServiceClient {
	if s.connect == nil {
		logger.Error("no kubernetes client factory configured")

		return nil
	}

	svcClient, err := s.connect(ctx, environment)
	if err != nil {
		// later patches fail per service with ErrNoClient
		logger.Error("failed to create kubernetes client", "error", err)

		return nil
	}

	return svcClient
}

func renderGlobals(logger *slog.Logger, global annotation.Spec) (annotation.Block, error) {
	block, err := annotation.Render(global)
	if errors.Is(err, annotation.ErrEmptySpec) {
		logger.Info("no globals set - skipping")

		return annotation.Block{}, nil
	}

	if err != nil {
		return nil, errors.Wrap(err, "failed to render global annotations")
	}

	return block, nil
}

func (s *Syncer) syncService(
	ctx context.Context,
	logger *slog.Logger,
	svcClient ServiceClient,
	namespace string,
	svc config.Service,
	globals annotation.Block,
) ServiceResult {
	logger = logger.With("service", svc.Name)
	result := ServiceResult{Name: svc.Name}

	rendered, err := annotation.Render(svc.Annotations)
	if err != nil {
		logger.Warn("skipping service without annotations", "error", err)

		result.Outcome = OutcomeSkipped
		result.Err = err

		return result
	}

	merged := annotation.Merge(rendered, globals)

	if svcClient == nil {
		logger.Error("cannot patch service", "error", ErrNoClient)

		result.Outcome = OutcomeFailed
		result.Err = ErrNoClient

		return result
	}

	if s.options.PreserveUnmanaged {
		existing, getErr := s.existingValue(ctx, svcClient, namespace, svc.Name)
		if getErr != nil {
			logger.Error("failed to read current annotations", "error", getErr)

			result.Outcome = OutcomeFailed
			result.Err = getErr

			return result
		}

		merged = annotation.PreserveUnmanaged(merged, existing)
	}

	result.Value = merged.String()
	s.metrics.RecordRenderedLines(ctx, svc.Name, len(merged))

	callCtx, cancel := s.callContext(ctx)
	defer cancel()

	err = svcClient.PatchServiceAnnotation(callCtx, kube.ServicePatch{
		Namespace: namespace,
		Name:      svc.Name,
		Key:       s.options.AnnotationKey,
		Value:     result.Value,
		DryRun:    s.options.DryRun,
	})
	if err != nil {
		logger.Error("failed to patch service", "error", err)

		result.Outcome = OutcomeFailed
		result.Err = err

		return result
	}

	logger.Info("patched service", "lines", len(merged), "dryRun", s.options.DryRun)

	result.Outcome = OutcomePatched

	return result
}

func (s *Syncer) existingValue(ctx context.Context, svcClient ServiceClient, namespace, name string) (string, error) {
	callCtx, cancel := s.callContext(ctx)
	defer cancel()

	annotations, err := svcClient.GetServiceAnnotations(callCtx, namespace, name)
	if err != nil {
		return "", errors.Wrap(err, "failed to read current annotations")
	}

	return annotations[s.options.AnnotationKey], nil
}

func (s *Syncer) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.options.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, s.options.RequestTimeout)
}
