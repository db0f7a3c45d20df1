package controller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/tools/events"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
	"sigs.k8s.io/controller-runtime/pkg/client/interceptor"

	streamlitv1 "github.com/document-crunch/streamlit-operator/api/v1"
	"github.com/document-crunch/streamlit-operator/internal/config"
)

const testNamespace = "streamlit"

func newTestScheme(t *testing.T) *runtime.Scheme {
	t.Helper()

	scheme, err := newScheme()
	require.NoError(t, err)

	return scheme
}

func newTestApp(name string, spec streamlitv1.StreamlitAppSpec) *streamlitv1.StreamlitApp {
	return &streamlitv1.StreamlitApp{
		ObjectMeta: metav1.ObjectMeta{
			Name:       name,
			Namespace:  testNamespace,
			UID:        types.UID(uuid.NewString()),
			Generation: 1,
		},
		Spec: spec,
	}
}

func validSpec(hasSecrets bool) streamlitv1.StreamlitAppSpec {
	return streamlitv1.StreamlitAppSpec{
		Repo:       "https://github.com/document-crunch/demo.git",
		Branch:     "main",
		CodeDir:    "app",
		HasSecrets: hasSecrets,
	}
}

func testConfig() *config.Config {
	return &config.Config{
		BaseDNSRecord: "apps.example.com",
		Suffix:        "-stg",
		IngressAnnotations: map[string]string{
			"alb.ingress.kubernetes.io/scheme": "internet-facing",
		},
	}
}

func requestFor(app *streamlitv1.StreamlitApp) ctrl.Request {
	return ctrl.Request{NamespacedName: client.ObjectKeyFromObject(app)}
}

// fakeAPI records every create call and fails the kinds listed in failOn.
// Objects that are not failed are kept in submitted and passed on.
// OnePasswordItem creates never reach the fake client because its GVK is
// not registered in the scheme. Status writes fail with statusErr when set.
type fakeAPI struct {
	mu        sync.Mutex
	attempts  []string
	submitted []client.Object
	failOn    map[string]error
	statusErr error
}

func (f *fakeAPI) funcs() interceptor.Funcs {
	return interceptor.Funcs{
		SubResourceUpdate: func(
			ctx context.Context,
			c client.Client,
			subResourceName string,
			obj client.Object,
			opts ...client.SubResourceUpdateOption,
		) error {
			f.mu.Lock()
			failure := f.statusErr
			f.mu.Unlock()

			if failure != nil {
				return failure
			}

			return c.SubResource(subResourceName).Update(ctx, obj, opts...)
		},
		Create: func(ctx context.Context, c client.WithWatch, obj client.Object, opts ...client.CreateOption) error {
			kind := obj.GetObjectKind().GroupVersionKind().Kind

			f.mu.Lock()
			f.attempts = append(f.attempts, kind)
			failure := f.failOn[kind]
			f.mu.Unlock()

			if failure != nil {
				return failure
			}

			copied, _ := obj.DeepCopyObject().(client.Object)

			f.mu.Lock()
			f.submitted = append(f.submitted, copied)
			f.mu.Unlock()

			if _, ok := obj.(*unstructured.Unstructured); ok {
				return nil
			}

			return c.Create(ctx, obj, opts...)
		},
	}
}

func (f *fakeAPI) createAttempts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.attempts...)
}

func (f *fakeAPI) submittedObjects() []client.Object {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]client.Object(nil), f.submitted...)
}

// recordingCollector keeps every metric call for assertions.
type recordingCollector struct {
	mu               sync.Mutex
	statuses         []string
	validationFields []string
	creates          []string
	apiErrors        []string
	hub              []string
}

func (c *recordingCollector) RecordReconcile(_ context.Context, status string, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.statuses = append(c.statuses, status)
}

func (c *recordingCollector) RecordValidationError(_ context.Context, field string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.validationFields = append(c.validationFields, field)
}

func (c *recordingCollector) RecordObjectCreate(_ context.Context, kind, result string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.creates = append(c.creates, kind+"/"+result)
}

func (c *recordingCollector) RecordAPIError(_ context.Context, kind, errorType string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.apiErrors = append(c.apiErrors, kind+"/"+errorType)
}

func (c *recordingCollector) RecordHubBootstrap(_ context.Context, result string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.hub = append(c.hub, result)
}

type testEnv struct {
	reconciler *StreamlitAppReconciler
	client     client.Client
	api        *fakeAPI
	metrics    *recordingCollector
	recorder   *events.FakeRecorder
}

func newTestEnv(t *testing.T, failOn map[string]error, objs ...client.Object) *testEnv {
	t.Helper()

	scheme := newTestScheme(t)
	api := &fakeAPI{failOn: failOn}

	fakeClient := fake.NewClientBuilder().
		WithScheme(scheme).
		WithObjects(objs...).
		WithStatusSubresource(&streamlitv1.StreamlitApp{}).
		WithInterceptorFuncs(api.funcs()).
		Build()

	collector := &recordingCollector{}
	recorder := events.NewFakeRecorder(16)

	return &testEnv{
		reconciler: &StreamlitAppReconciler{
			Client:    fakeClient,
			Scheme:    scheme,
			Recorder:  recorder,
			Metrics:   collector,
			Namespace: testNamespace,
			Config:    testConfig(),
		},
		client:   fakeClient,
		api:      api,
		metrics:  collector,
		recorder: recorder,
	}
}

func (e *testEnv) getApp(t *testing.T, name string) *streamlitv1.StreamlitApp {
	t.Helper()

	var app streamlitv1.StreamlitApp
	require.NoError(t, e.client.Get(context.Background(), types.NamespacedName{Name: name, Namespace: testNamespace}, &app))

	return &app
}

func (e *testEnv) drainEvents() []string {
	var out []string

	for {
		select {
		case evt := <-e.recorder.Events:
			out = append(out, evt)
		default:
			return out
		}
	}
}
