package controller

import (
	"context"

	"github.com/cockroachdb/errors"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	streamlitv1 "github.com/document-crunch/streamlit-operator/api/v1"
	"github.com/document-crunch/streamlit-operator/internal/metrics"
)

// The hub app lists the other apps. It is created once at startup and is
// reconciled like any other StreamlitApp afterwards.
const (
	HubName    = "hub"
	HubRepo    = "https://github.com/document-crunch/streamlit-operator.git"
	HubBranch  = "main"
	HubCodeDir = "streamlit-hub"
)

// HubApp returns the hub StreamlitApp for the given namespace.
func HubApp(namespace string) *streamlitv1.StreamlitApp {
	return &streamlitv1.StreamlitApp{
		TypeMeta: metav1.TypeMeta{
			APIVersion: streamlitv1.GroupVersion.String(),
			Kind:       "StreamlitApp",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:      HubName,
			Namespace: namespace,
		},
		Spec: streamlitv1.StreamlitAppSpec{
			Repo:       HubRepo,
			Branch:     HubBranch,
			CodeDir:    HubCodeDir,
			HasSecrets: false,
		},
	}
}

// EnsureHub creates the hub app. An existing hub counts as success and is
// left untouched.
func EnsureHub(ctx context.Context, c client.Client, namespace string, collector metrics.Collector) error {
	logger := log.FromContext(ctx).WithName("hub")

	if collector == nil {
		collector = metrics.NewNoopCollector()
	}

	err := c.Create(ctx, HubApp(namespace))

	switch {
	case err == nil:
		collector.RecordHubBootstrap(ctx, metrics.ResultCreated)
		logger.Info("created hub app", "namespace", namespace)

		return nil
	case apierrors.IsAlreadyExists(err):
		collector.RecordHubBootstrap(ctx, metrics.ResultExists)
		logger.Info("hub app already exists", "namespace", namespace)

		return nil
	default:
		collector.RecordHubBootstrap(ctx, metrics.ResultError)
		collector.RecordAPIError(ctx, "StreamlitApp", metrics.ClassifyAPIError(err))

		return errors.Wrapf(err, "failed to create hub app in namespace %s", namespace)
	}
}
