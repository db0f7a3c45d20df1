package controller

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/tools/events"
	"k8s.io/client-go/util/retry"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"

	streamlitv1 "github.com/document-crunch/streamlit-operator/api/v1"
	"github.com/document-crunch/streamlit-operator/internal/config"
	"github.com/document-crunch/streamlit-operator/internal/manifest"
	"github.com/document-crunch/streamlit-operator/internal/metrics"
)

const tracerName = "github.com/document-crunch/streamlit-operator/internal/controller"

// Object kinds used in metrics, events and errors.
const (
	KindOnePasswordItem = "OnePasswordItem"
	KindDeployment      = "Deployment"
	KindService         = "Service"
	KindIngress         = "Ingress"
)

// Event actions.
const (
	actionProvision = "Provision"
	actionValidate  = "Validate"
)

// StreamlitAppReconciler provisions the stack of every StreamlitApp once.
// It never updates or deletes the objects it created; the API server
// garbage-collects them through their owner reference.
type StreamlitAppReconciler struct {
	client.Client

	// Scheme resolves the owner GVK for controller references.
	Scheme *runtime.Scheme

	// Recorder emits Kubernetes events on the app. Optional.
	Recorder events.EventRecorder

	// Metrics records reconcile outcomes. Defaults to a no-op collector.
	Metrics metrics.Collector

	// Tracer wraps reconciles and creates in spans. Defaults to a no-op tracer.
	Tracer trace.Tracer

	// Namespace is where every app and its objects live.
	Namespace string

	// Config holds the ingress settings loaded at startup. Read-only.
	Config *config.Config

	// GitSyncImage and AppImage override the default container images.
	GitSyncImage string
	AppImage     string

	// MaxConcurrentReconciles bounds parallel reconciles. Zero means one.
	MaxConcurrentReconciles int
}

// stackObject is one object of an app stack with the kind used to report it.
type stackObject struct {
	kind string
	obj  client.Object
}

// stackResult holds what a successful provision reports on the app status.
type stackResult struct {
	deploymentName string
	serviceName    string
	ingressName    string
	secretName     string
	url            string
}

func (r *StreamlitAppReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	start := time.Now()

	ctx, span := r.tracer().Start(ctx, "StreamlitApp.Reconcile",
		trace.WithAttributes(
			attribute.String("streamlit.app", req.Name),
			attribute.String("k8s.namespace", req.Namespace),
		),
	)
	defer span.End()

	status, err := r.reconcile(ctx, req)

	r.collector().RecordReconcile(ctx, status, time.Since(start))
	span.SetAttributes(attribute.String("streamlit.reconcile.status", status))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	return ctrl.Result{}, err
}

func (r *StreamlitAppReconciler) reconcile(ctx context.Context, req ctrl.Request) (string, error) {
	logger := log.FromContext(ctx)

	var app streamlitv1.StreamlitApp

	err := r.Get(ctx, req.NamespacedName, &app)
	if err != nil {
		if apierrors.IsNotFound(err) {
			return metrics.StatusSkipped, nil
		}

		return metrics.StatusError, errors.Wrap(err, "failed to get StreamlitApp")
	}

	if !app.DeletionTimestamp.IsZero() {
		logger.V(1).Info("app is being deleted, skipping", "name", app.Name)

		return metrics.StatusSkipped, nil
	}

	if app.IsProvisioned() {
		logger.V(1).Info("app already provisioned, skipping", "name", app.Name)

		return metrics.StatusSkipped, nil
	}

	logger.Info("reconciling StreamlitApp", "name", app.Name, "generation", app.Generation)

	invalidErr := r.validate(&app)
	if invalidErr != nil {
		return metrics.StatusInvalid, r.rejectApp(ctx, &app, invalidErr)
	}

	result, err := r.provision(ctx, &app)
	if err != nil {
		r.recordEvent(&app, corev1.EventTypeWarning, streamlitv1.ReasonProvisioningFailed, actionProvision, err.Error())

		statusErr := r.setNotReady(ctx, req.NamespacedName, streamlitv1.ReasonProvisioningFailed, err.Error())
		if statusErr != nil {
			logger.Error(statusErr, "failed to record provisioning failure", "name", app.Name)
		}

		return metrics.StatusError, err
	}

	err = r.setProvisioned(ctx, req.NamespacedName, result)
	if err != nil {
		return metrics.StatusError, err
	}

	r.recordEvent(&app, corev1.EventTypeNormal, streamlitv1.ReasonProvisioned, actionProvision,
		"provisioned app at "+result.url)

	logger.Info("provisioned StreamlitApp",
		"name", app.Name,
		"deployment", result.deploymentName,
		"service", result.serviceName,
		"ingress", result.ingressName,
		"secret", result.secretName,
		"url", result.url,
	)

	return metrics.StatusSuccess, nil
}

func (r *StreamlitAppReconciler) validate(app *streamlitv1.StreamlitApp) error {
	if app.Namespace != r.Namespace {
		//nolint:wrapcheck // marked sentinel, not an external error
		return errors.Mark(&FieldError{
			Field:   FieldNamespace,
			Message: "apps must be created in namespace " + r.Namespace,
		}, ErrInvalidSpec)
	}

	return ValidateSpec(&app.Spec)
}

// rejectApp records an invalid spec and returns the terminal error that
// stops controller-runtime from requeueing the app. A failed status write
// is only logged so the app is never requeued.
func (r *StreamlitAppReconciler) rejectApp(ctx context.Context, app *streamlitv1.StreamlitApp, invalidErr error) error {
	logger := log.FromContext(ctx)

	field := invalidFieldName(invalidErr)
	r.collector().RecordValidationError(ctx, field)
	r.recordEvent(app, corev1.EventTypeWarning, streamlitv1.ReasonInvalidSpec, actionValidate, invalidErr.Error())

	logger.Info("rejected StreamlitApp", "name", app.Name, "field", field, "reason", invalidErr.Error())

	err := r.setNotReady(ctx, client.ObjectKeyFromObject(app), streamlitv1.ReasonInvalidSpec, invalidErr.Error())
	if err != nil {
		logger.Error(err, "failed to record invalid spec", "name", app.Name)
	}

	return reconcile.TerminalError(invalidErr)
}

// provision creates the stack in order and stops at the first failure.
// Objects created before the failure stay in place.
func (r *StreamlitAppReconciler) provision(ctx context.Context, app *streamlitv1.StreamlitApp) (stackResult, error) {
	objects, result := r.buildStack(app)

	for _, item := range objects {
		err := controllerutil.SetControllerReference(app, item.obj, r.Scheme)
		if err != nil {
			return stackResult{}, errors.Wrapf(err, "failed to set owner reference on %s %s", item.kind, item.obj.GetName())
		}

		err = r.createObject(ctx, item)
		if err != nil {
			return stackResult{}, err
		}
	}

	return result, nil
}

func (r *StreamlitAppReconciler) buildStack(app *streamlitv1.StreamlitApp) ([]stackObject, stackResult) {
	name := app.Name
	namespace := app.Namespace

	var params manifest.IngressParams
	if r.Config != nil {
		params = r.Config.IngressParams()
	}

	deployment := manifest.Deployment(manifest.DeploymentParams{
		Name:         name,
		Namespace:    namespace,
		Repo:         app.Spec.Repo,
		Branch:       app.Spec.Branch,
		CodeDir:      app.Spec.CodeDir,
		HasSecrets:   app.Spec.HasSecrets,
		GitSyncImage: r.GitSyncImage,
		AppImage:     r.AppImage,
	})
	service := manifest.Service(name, namespace)
	ingress := manifest.Ingress(name, namespace, params)

	result := stackResult{
		deploymentName: deployment.Name,
		serviceName:    service.Name,
		ingressName:    ingress.Name,
		url:            "https://" + manifest.Hostname(name, params.Suffix, params.BaseDNSRecord),
	}

	objects := make([]stackObject, 0, 4)

	if app.Spec.HasSecrets {
		secret := manifest.SecretReference(name, namespace)
		result.secretName = secret.GetName()
		objects = append(objects, stackObject{kind: KindOnePasswordItem, obj: secret})
	}

	objects = append(objects,
		stackObject{kind: KindDeployment, obj: deployment},
		stackObject{kind: KindService, obj: service},
		stackObject{kind: KindIngress, obj: ingress},
	)

	return objects, result
}

// createObject creates one object. An object that already exists is kept
// as it is and counts as created.
func (r *StreamlitAppReconciler) createObject(ctx context.Context, item stackObject) error {
	ctx, span := r.tracer().Start(ctx, "StreamlitApp.Create"+item.kind,
		trace.WithAttributes(
			attribute.String("k8s.kind", item.kind),
			attribute.String("k8s.name", item.obj.GetName()),
		),
	)
	defer span.End()

	logger := log.FromContext(ctx)

	err := r.Create(ctx, item.obj)

	switch {
	case err == nil:
		r.collector().RecordObjectCreate(ctx, item.kind, metrics.ResultCreated)
		logger.V(1).Info("created object", "kind", item.kind, "name", item.obj.GetName())

		return nil
	case apierrors.IsAlreadyExists(err):
		r.collector().RecordObjectCreate(ctx, item.kind, metrics.ResultExists)
		logger.Info("object already exists, keeping it", "kind", item.kind, "name", item.obj.GetName())

		return nil
	default:
		r.collector().RecordObjectCreate(ctx, item.kind, metrics.ResultError)
		r.collector().RecordAPIError(ctx, item.kind, metrics.ClassifyAPIError(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return errors.Wrapf(err, "failed to create %s %s", item.kind, item.obj.GetName())
	}
}

func (r *StreamlitAppReconciler) setProvisioned(ctx context.Context, key types.NamespacedName, result stackResult) error {
	return r.updateStatus(ctx, key, func(app *streamlitv1.StreamlitApp) {
		app.Status.DeploymentName = result.deploymentName
		app.Status.ServiceName = result.serviceName
		app.Status.IngressName = result.ingressName
		app.Status.SecretName = result.secretName
		app.Status.URL = result.url
		app.Status.ObservedGeneration = app.Generation

		meta.SetStatusCondition(&app.Status.Conditions, metav1.Condition{
			Type:               streamlitv1.ConditionTypeReady,
			Status:             metav1.ConditionTrue,
			ObservedGeneration: app.Generation,
			Reason:             streamlitv1.ReasonProvisioned,
			Message:            "all objects of the app stack exist",
		})
	})
}

func (r *StreamlitAppReconciler) setNotReady(ctx context.Context, key types.NamespacedName, reason, message string) error {
	return r.updateStatus(ctx, key, func(app *streamlitv1.StreamlitApp) {
		app.Status.ObservedGeneration = app.Generation

		meta.SetStatusCondition(&app.Status.Conditions, metav1.Condition{
			Type:               streamlitv1.ConditionTypeReady,
			Status:             metav1.ConditionFalse,
			ObservedGeneration: app.Generation,
			Reason:             reason,
			Message:            message,
		})
	})
}

func (r *StreamlitAppReconciler) updateStatus(
	ctx context.Context,
	key types.NamespacedName,
	mutate func(app *streamlitv1.StreamlitApp),
) error {
	//nolint:wrapcheck // retry wrapper handles errors internally
	return retry.RetryOnConflict(retry.DefaultRetry, func() error {
		var fresh streamlitv1.StreamlitApp
		if err := r.Get(ctx, key, &fresh); err != nil {
			return errors.Wrap(err, "failed to get fresh StreamlitApp")
		}

		mutate(&fresh)

		if err := r.Status().Update(ctx, &fresh); err != nil {
			return errors.Wrap(err, "failed to update StreamlitApp status")
		}

		return nil
	})
}

func (r *StreamlitAppReconciler) recordEvent(app *streamlitv1.StreamlitApp, eventType, reason, action, note string) {
	if r.Recorder == nil {
		return
	}

	r.Recorder.Eventf(app, nil, eventType, reason, action, "%s", note)
}

func (r *StreamlitAppReconciler) collector() metrics.Collector {
	if r.Metrics == nil {
		return metrics.NewNoopCollector()
	}

	return r.Metrics
}

func (r *StreamlitAppReconciler) tracer() trace.Tracer {
	if r.Tracer == nil {
		return noop.NewTracerProvider().Tracer(tracerName)
	}

	return r.Tracer
}

// SetupWithManager sets up the controller with the Manager.
func (r *StreamlitAppReconciler) SetupWithManager(mgr ctrl.Manager) error {
	maxConcurrent := r.MaxConcurrentReconciles
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	//nolint:wrapcheck // controller-runtime builder pattern
	return ctrl.NewControllerManagedBy(mgr).
		For(&streamlitv1.StreamlitApp{}).
		WithEventFilter(provisionOncePredicate()).
		WithOptions(controller.Options{MaxConcurrentReconciles: maxConcurrent}).
		Complete(r)
}
