package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/lexfrei/ambassador-annotation-sync/internal/config"
	"github.com/lexfrei/ambassador-annotation-sync/internal/kube"
	"github.com/lexfrei/ambassador-annotation-sync/internal/metrics"
	"github.com/lexfrei/ambassador-annotation-sync/internal/syncer"
)

//nolint:gochecknoglobals // set by SetVersion from main
var (
	version = "development"
	gitsha  = "development"
)

func SetVersion(ver, sha string) {
	version = ver
	gitsha = sha
}

//nolint:gochecknoglobals // cobra command pattern
var rootCmd = &cobra.Command{
	Use:   "annotation-sync",
	Short: "Sync Ambassador annotations from a YAML file onto Kubernetes Services",
	Long: `Reads a YAML file with global and per-service Ambassador rules, renders
them into the getambassador.io/config annotation format and patches every
listed Service in the configured namespace.`,
	RunE:          runSync,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "Log format (json, text)")

	rootCmd.Flags().String("config-file", "", "YAML file containing the annotation settings (required unless --json is set)")
	rootCmd.Flags().String("json", "", "Inline config as a JSON object, used when --config-file is not set")
	rootCmd.Flags().Bool("dry-run", false, "Validate patches server-side without persisting them")
	rootCmd.Flags().String("kubeconfig", "", "Kubeconfig path (defaults to ./kube/kube-<env>.config, then ~/.kube/config)")
	rootCmd.Flags().StringSlice("service", nil, "Only sync the named service (repeatable)")
	rootCmd.Flags().Bool("preserve-unmanaged", false, "Keep entries of the current annotation that the config does not set")
	rootCmd.Flags().String("annotation-key", kube.DefaultAnnotationKey, "Service annotation that receives the rendered config")
	rootCmd.Flags().Duration("request-timeout", 0, "Timeout for each Kubernetes API call (0 disables)")
	rootCmd.Flags().String("metrics-file", "", "Write Prometheus metrics to this file after the run")

	_ = viper.BindPFlags(rootCmd.Flags())
	_ = viper.BindPFlags(rootCmd.PersistentFlags())
}

func initConfig() {
	viper.SetEnvPrefix("ANNOTATION_SYNC")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("annotation-key", kube.DefaultAnnotationKey)
	viper.SetDefault("log-level", "info")
	viper.SetDefault("log-format", "json")
	viper.SetDefault("dry-run", false)
	viper.SetDefault("preserve-unmanaged", false)
}

func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)

		return errors.Wrap(err, "command execution failed")
	}

	return nil
}

func setupLogger() *slog.Logger {
	level := slog.LevelInfo

	switch viper.GetString("log-level") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if viper.GetString("log-format") == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

//nolint:noinlineerr // inline error handling is fine here
func runSync(_ *cobra.Command, _ []string) error {
	logger := setupLogger().With("runID", uuid.NewString())

	ctrl.SetLogger(logr.FromSlogHandler(logger.Handler()))

	logger.Info("starting annotation-sync",
		"version", version,
		"gitsha", gitsha,
	)

	doc, err := loadDocument(logger, viper.GetString("config-file"), viper.GetString("json"))
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	opts := syncer.Options{
		AnnotationKey:     viper.GetString("annotation-key"),
		DryRun:            viper.GetBool("dry-run"),
		PreserveUnmanaged: viper.GetBool("preserve-unmanaged"),
		Services:          viper.GetStringSlice("service"),
		RequestTimeout:    viper.GetDuration("request-timeout"),
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	factory := newClientFactory(viper.GetString("kubeconfig"), collector, logger)

	_, err = syncer.New(doc, factory, opts, collector, logger).Run(ctx)

	writeMetrics(logger, viper.GetString("metrics-file"), reg)

	if err != nil {
		if errors.Is(err, config.ErrInvalidNamespace) {
			logger.Error("namespace is not in the correct format", "namespace", doc.Namespace, "error", err)
		}

		return errors.Wrap(err, "sync failed")
	}

	return nil
}

func loadDocument(logger *slog.Logger, configFile, inline string) (*config.Document, error) {
	if configFile == "" && inline != "" {
		doc, err := config.LoadInline(inline)
		if err != nil {
			logger.Error("unable to parse inline config", "error", err)

			return nil, errors.Wrap(err, "failed to load config")
		}

		return doc, nil
	}

	if inline != "" {
		logger.Warn("both --config-file and --json given, using the config file")
	}

	doc, err := config.Load(configFile)
	if err != nil {
		logger.Error("unable to load config file", "path", configFile, "error", err)

		return nil, errors.Wrap(err, "failed to load config")
	}

	return doc, nil
}

func newClientFactory(explicit string, collector metrics.Collector, logger *slog.Logger) syncer.ClientFactory {
	return func(_ context.Context, environment string) (syncer.ServiceClient, error) {
		baseDir, err := os.Getwd()
		if err != nil {
			baseDir = "."
		}

		homeDir, err := os.UserHomeDir()
		if err != nil {
			homeDir = ""
		}

		kubeconfig := kube.ResolveKubeconfig(explicit, environment, baseDir, homeDir)
		logger.Info("loading kubeconfig", "path", kubeconfig, "environment", environment)

		client, err := kube.NewClient(kubeconfig, collector, logger)
		if err != nil {
			return nil, errors.Wrap(err, "error loading kube config file")
		}

		return client, nil
	}
}

func writeMetrics(logger *slog.Logger, path string, gatherer prometheus.Gatherer) {
	if path == "" {
		return
	}

	err := metrics.WriteTextfile(path, gatherer)
	if err != nil {
		logger.Error("failed to write metrics file", "path", path, "error", err)

		return
	}

	logger.Debug("wrote metrics file", "path", path)
}
