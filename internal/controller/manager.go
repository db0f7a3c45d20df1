package controller

import (
	"context"

	"github.com/cockroachdb/errors"
	"k8s.io/apimachinery/pkg/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/cache"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	"sigs.k8s.io/controller-runtime/pkg/log"
	ctrlmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"
	"sigs.k8s.io/controller-runtime/pkg/metrics/server"

	streamlitv1 "github.com/document-crunch/streamlit-operator/api/v1"
	"github.com/document-crunch/streamlit-operator/internal/config"
	"github.com/document-crunch/streamlit-operator/internal/manifest"
	"github.com/document-crunch/streamlit-operator/internal/metrics"
)

const controllerName = "streamlit-operator"

// Config holds all configuration options for the controller manager.
// Values are typically populated from CLI flags or environment variables.
type Config struct {
	// ConfigFile is the path of the static YAML config with the DNS zone
	// and ingress annotations.
	ConfigFile string

	// Namespace is the single namespace apps and their objects live in.
	Namespace string

	// MetricsAddr is the address for the Prometheus metrics endpoint.
	MetricsAddr string

	// HealthAddr is the address for health and readiness probe endpoints.
	HealthAddr string

	// LeaderElect enables leader election for high availability.
	// Required when running multiple replicas.
	LeaderElect bool

	// LeaderElectNS is the namespace for the leader election lease.
	// Defaults to Namespace.
	LeaderElectNS string

	// LeaderElectName is the name of the leader election lease.
	LeaderElectName string

	// MaxConcurrentReconciles bounds parallel reconciles.
	MaxConcurrentReconciles int

	// GitSyncImage overrides the git-sync sidecar image. Must be tagged v4 or newer, or pinned by digest.
	GitSyncImage string

	// AppImage overrides the image running streamlit.
	AppImage string

	// SkipHub disables creating the hub app at startup.
	SkipHub bool
}

// Run initializes and starts the controller manager with the provided configuration.
// It blocks until the context is cancelled or an error occurs.
//
// The function performs the following steps:
//  1. Loads the static config file and checks the git-sync image
//  2. Creates the hub app with an uncached client
//  3. Initializes controller-runtime manager with metrics and health endpoints
//  4. Sets up the StreamlitAppReconciler
//  5. Starts the manager and blocks until shutdown
//
//nolint:funlen // controller setup requires multiple steps
func Run(ctx context.Context, cfg *Config) error {
	logger := log.FromContext(ctx).WithName("manager")
	logger.Info("initializing controller manager", "namespace", cfg.Namespace)

	appConfig, err := config.LoadFile(cfg.ConfigFile)
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	logger.Info("loaded config",
		"baseDnsRecord", appConfig.BaseDNSRecord,
		"suffix", appConfig.Suffix,
		"annotationOverrides", len(appConfig.IngressAnnotations),
	)

	gitSyncImage := cfg.GitSyncImage
	if gitSyncImage == "" {
		gitSyncImage = manifest.DefaultGitSyncImage
	}

	err = manifest.ValidateGitSyncImage(gitSyncImage)
	if err != nil {
		return errors.Wrap(err, "invalid git-sync image")
	}

	restConfig, err := ctrl.GetConfig()
	if err != nil {
		return errors.Wrap(err, "failed to get kubernetes config")
	}

	scheme, err := newScheme()
	if err != nil {
		return err
	}

	collector := metrics.NewCollector(ctrlmetrics.Registry)

	if cfg.SkipHub {
		logger.Info("hub bootstrap disabled")
	} else {
		directClient, clientErr := client.New(restConfig, client.Options{Scheme: scheme})
		if clientErr != nil {
			return errors.Wrap(clientErr, "failed to create kubernetes client")
		}

		err = EnsureHub(ctx, directClient, cfg.Namespace, collector)
		if err != nil {
			return err
		}
	}

	logger.Info("creating ctrl.Manager")

	mgr, err := ctrl.NewManager(restConfig, managerOptions(cfg, scheme))
	if err != nil {
		return errors.Wrap(err, "failed to create manager")
	}

	reconciler := &StreamlitAppReconciler{
		Client:                  mgr.GetClient(),
		Scheme:                  mgr.GetScheme(),
		Recorder:                mgr.GetEventRecorder(controllerName),
		Metrics:                 collector,
		Namespace:               cfg.Namespace,
		Config:                  appConfig,
		GitSyncImage:            gitSyncImage,
		AppImage:                cfg.AppImage,
		MaxConcurrentReconciles: cfg.MaxConcurrentReconciles,
	}

	err = reconciler.SetupWithManager(mgr)
	if err != nil {
		return errors.Wrap(err, "failed to setup streamlitapp controller")
	}

	err = mgr.AddHealthzCheck("healthz", healthz.Ping)
	if err != nil {
		return errors.Wrap(err, "failed to set up health check")
	}

	err = mgr.AddReadyzCheck("readyz", healthz.Ping)
	if err != nil {
		return errors.Wrap(err, "failed to set up ready check")
	}

	logger.Info("starting manager")

	err = mgr.Start(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to start manager")
	}

	return nil
}

func newScheme() (*runtime.Scheme, error) {
	scheme := runtime.NewScheme()

	err := clientgoscheme.AddToScheme(scheme)
	if err != nil {
		return nil, errors.Wrap(err, "failed to add client-go scheme")
	}

	err = streamlitv1.AddToScheme(scheme)
	if err != nil {
		return nil, errors.Wrap(err, "failed to add streamlit scheme")
	}

	return scheme, nil
}

// managerOptions restricts the cache to the target namespace, so the
// manager only needs namespaced RBAC.
func managerOptions(cfg *Config, scheme *runtime.Scheme) ctrl.Options {
	opts := ctrl.Options{
		Scheme: scheme,
		Metrics: server.Options{
			BindAddress: cfg.MetricsAddr,
		},
		HealthProbeBindAddress: cfg.HealthAddr,
		Cache: cache.Options{
			DefaultNamespaces: map[string]cache.Config{
				cfg.Namespace: {},
			},
		},
	}

	if cfg.LeaderElect {
		opts.LeaderElection = true
		opts.LeaderElectionID = cfg.LeaderElectName
		opts.LeaderElectionNamespace = cfg.LeaderElectNS

		if opts.LeaderElectionNamespace == "" {
			opts.LeaderElectionNamespace = cfg.Namespace
		}
	}

	return opts
}
