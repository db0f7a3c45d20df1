package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/document-crunch/streamlit-operator/internal/config"
	"github.com/document-crunch/streamlit-operator/internal/controller"
	"github.com/document-crunch/streamlit-operator/internal/manifest"
)

const (
	defaultNamespace       = "streamlit"
	defaultLeaderElectName = "streamlit-operator-leader"
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
	Use:   "streamlit-operator",
	Short: "Kubernetes operator running Streamlit apps from git",
	Long: `A Kubernetes controller that watches StreamlitApp resources and provisions
a git-synced Deployment, a Service and an ALB Ingress for each of them,
plus an optional 1Password secret reference.`,
	RunE:          runController,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "Log format (json, text)")

	rootCmd.Flags().String("config-file", config.DefaultPath, "Path of the YAML config with baseDnsRecord, suffix and ingressAnnotations")
	rootCmd.Flags().String("namespace", defaultNamespace, "Namespace apps are provisioned in (or use NAMESPACE env var)")
	rootCmd.Flags().String("metrics-addr", ":8080", "Address for metrics endpoint")
	rootCmd.Flags().String("health-addr", ":8081", "Address for health probe endpoint")
	rootCmd.Flags().Int("max-concurrent-reconciles", 1, "Maximum number of apps reconciled in parallel")
	rootCmd.Flags().String("git-sync-image", manifest.DefaultGitSyncImage, "git-sync sidecar image, tagged v4 or newer or pinned by digest")
	rootCmd.Flags().String("app-image", manifest.DefaultAppImage, "Image running the streamlit container")
	rootCmd.Flags().Bool("skip-hub", false, "Do not create the hub app at startup")

	// Leader election flags
	rootCmd.Flags().Bool("leader-elect", false, "Enable leader election for high availability")
	rootCmd.Flags().String("leader-election-namespace", "", "Namespace for leader election lease (defaults to --namespace)")
	rootCmd.Flags().String("leader-election-name", defaultLeaderElectName, "Name of the leader election lease")

	_ = viper.BindPFlags(rootCmd.Flags())
	_ = viper.BindPFlags(rootCmd.PersistentFlags())
}

func initConfig() {
	bindEnv(viper.GetViper())
}

// bindEnv maps flags to STREAMLIT_* variables and the target namespace to
// the unprefixed NAMESPACE variable set by the downward API.
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("STREAMLIT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("namespace", "NAMESPACE")

	v.SetDefault("config-file", config.DefaultPath)
	v.SetDefault("namespace", defaultNamespace)
	v.SetDefault("metrics-addr", ":8080")
	v.SetDefault("health-addr", ":8081")
	v.SetDefault("max-concurrent-reconciles", 1)
	v.SetDefault("git-sync-image", manifest.DefaultGitSyncImage)
	v.SetDefault("app-image", manifest.DefaultAppImage)
	v.SetDefault("log-level", "info")
	v.SetDefault("log-format", "json")
	v.SetDefault("leader-elect", false)
	v.SetDefault("leader-election-name", defaultLeaderElectName)
}

func Execute() error {
	return errors.Wrap(rootCmd.Execute(), "command execution failed")
}

func parseLogLevel(value string) slog.Level {
	switch strings.ToLower(value) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func setupLogger() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLogLevel(viper.GetString("log-level")),
	}

	var handler slog.Handler
	if viper.GetString("log-format") == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

// newControllerConfig reads the manager settings from v.
func newControllerConfig(v *viper.Viper) (controller.Config, error) {
	cfg := controller.Config{
		ConfigFile:              v.GetString("config-file"),
		Namespace:               strings.TrimSpace(v.GetString("namespace")),
		MetricsAddr:             v.GetString("metrics-addr"),
		HealthAddr:              v.GetString("health-addr"),
		MaxConcurrentReconciles: v.GetInt("max-concurrent-reconciles"),
		GitSyncImage:            v.GetString("git-sync-image"),
		AppImage:                v.GetString("app-image"),
		SkipHub:                 v.GetBool("skip-hub"),

		LeaderElect:     v.GetBool("leader-elect"),
		LeaderElectNS:   v.GetString("leader-election-namespace"),
		LeaderElectName: v.GetString("leader-election-name"),
	}

	if cfg.Namespace == "" {
		return controller.Config{}, errors.New("namespace is required (use --namespace or NAMESPACE env var)")
	}

	if cfg.ConfigFile == "" {
		return controller.Config{}, errors.New("config-file is required")
	}

	if cfg.MaxConcurrentReconciles < 1 {
		return controller.Config{}, errors.Newf("max-concurrent-reconciles must be at least 1, got %d", cfg.MaxConcurrentReconciles)
	}

	return cfg, nil
}

//nolint:noinlineerr // inline error handling is fine here
func runController(_ *cobra.Command, _ []string) error {
	logger := setupLogger()
	slog.SetDefault(logger)

	ctrl.SetLogger(logr.FromSlogHandler(logger.Handler()))

	logger.Info("starting streamlit-operator",
		"version", version,
		"gitsha", gitsha,
	)

	cfg, err := newControllerConfig(viper.GetViper())
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := controller.Run(ctx, &cfg); err != nil {
		return errors.Wrap(err, "failed to run controller")
	}

	return nil
}
