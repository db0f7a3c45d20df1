package controller

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"

	streamlitv1 "github.com/document-crunch/streamlit-operator/api/v1"
)

func TestNewScheme(t *testing.T) {
	t.Parallel()

	scheme := newTestScheme(t)

	for _, gvk := range []schema.GroupVersionKind{
		streamlitv1.GroupVersion.WithKind("StreamlitApp"),
		appsv1.SchemeGroupVersion.WithKind("Deployment"),
		corev1.SchemeGroupVersion.WithKind("Service"),
		networkingv1.SchemeGroupVersion.WithKind("Ingress"),
	} {
		assert.True(t, scheme.Recognizes(gvk), "scheme should recognize %s", gvk)
	}
}

func TestManagerOptions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name              string
		cfg               Config
		expectLeader      bool
		expectedLeaderNS  string
		expectedLeaderID  string
		expectedMetrics   string
		expectedHealthAdr string
	}{
		{
			name: "defaults",
			cfg: Config{
				Namespace:   "streamlit",
				MetricsAddr: ":8080",
				HealthAddr:  ":8081",
			},
			expectedMetrics:   ":8080",
			expectedHealthAdr: ":8081",
		},
		{
			name: "leader election falls back to app namespace",
			cfg: Config{
				Namespace:       "streamlit",
				LeaderElect:     true,
				LeaderElectName: "streamlit-operator-leader",
			},
			expectLeader:     true,
			expectedLeaderNS: "streamlit",
			expectedLeaderID: "streamlit-operator-leader",
		},
		{
			name: "explicit lease namespace",
			cfg: Config{
				Namespace:       "streamlit",
				LeaderElect:     true,
				LeaderElectNS:   "ops",
				LeaderElectName: "lease",
			},
			expectLeader:     true,
			expectedLeaderNS: "ops",
			expectedLeaderID: "lease",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			scheme := newTestScheme(t)
			opts := managerOptions(&tt.cfg, scheme)

			assert.Same(t, scheme, opts.Scheme)
			assert.Equal(t, tt.expectedMetrics, opts.Metrics.BindAddress)
			assert.Equal(t, tt.expectedHealthAdr, opts.HealthProbeBindAddress)
			assert.Equal(t, tt.expectLeader, opts.LeaderElection)
			assert.Equal(t, tt.expectedLeaderNS, opts.LeaderElectionNamespace)
			assert.Equal(t, tt.expectedLeaderID, opts.LeaderElectionID)

			require.Len(t, opts.Cache.DefaultNamespaces, 1)
			assert.Contains(t, opts.Cache.DefaultNamespaces, tt.cfg.Namespace)
		})
	}
}

func TestRun_InvalidConfigFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("suffix: -dev\n"), 0o600))

	err := Run(context.Background(), &Config{ConfigFile: path, Namespace: testNamespace})

	assert.ErrorContains(t, err, "failed to load config")
}

func TestRun_RejectsOldGitSyncImage(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("baseDnsRecord: example.com\n"), 0o600))

	err := Run(context.Background(), &Config{
		ConfigFile:   path,
		Namespace:    testNamespace,
		GitSyncImage: "registry.k8s.io/git-sync/git-sync:v3.6.9",
	})

	assert.ErrorContains(t, err, "invalid git-sync image")
}
