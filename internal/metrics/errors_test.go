package metrics

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

// Test error definitions for error classification tests.
var (
	errContextDeadline   = errors.New("context deadline exceeded")
	errRequestTimeout    = errors.New("request timeout")
	errConnectionRefused = errors.New("dial tcp: connection refused")
	errNoSuchHost        = errors.New("no such host")
	errRandomError       = errors.New("some random error")
	errWrapper           = errors.New("wrapper")
)

func TestClassifyAPIError(t *testing.T) {
	t.Parallel()

	deployments := schema.GroupResource{Group: "apps", Resource: "deployments"}

	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: "",
		},
		{
			name:     "unauthorized",
			err:      apierrors.NewUnauthorized("no token"),
			expected: ErrorTypeAuth,
		},
		{
			name:     "forbidden",
			err:      apierrors.NewForbidden(deployments, "acme", errRandomError),
			expected: ErrorTypeAuth,
		},
		{
			name:     "rate limit",
			err:      apierrors.NewTooManyRequests("slow down", 1),
			expected: ErrorTypeRateLimit,
		},
		{
			name:     "server timeout",
			err:      apierrors.NewServerTimeout(deployments, "create", 1),
			expected: ErrorTypeTimeout,
		},
		{
			name:     "already exists",
			err:      apierrors.NewAlreadyExists(deployments, "acme"),
			expected: ErrorTypeConflict,
		},
		{
			name:     "not found",
			err:      apierrors.NewNotFound(deployments, "acme"),
			expected: ErrorTypeNotFound,
		},
		{
			name: "invalid",
			err: apierrors.NewInvalid(schema.GroupKind{Group: "apps", Kind: "Deployment"}, "acme",
				field.ErrorList{field.Required(field.NewPath("spec"), "")}),
			expected: ErrorTypeInvalid,
		},
		{
			name:     "internal error",
			err:      apierrors.NewInternalError(errRandomError),
			expected: ErrorTypeServerError,
		},
		{
			name:     "service unavailable",
			err:      apierrors.NewServiceUnavailable("etcd down"),
			expected: ErrorTypeServerError,
		},
		{
			name:     "method not supported",
			err:      apierrors.NewMethodNotSupported(deployments, "patch"),
			expected: ErrorTypeClientError,
		},
		{
			name:     "timeout error",
			err:      errContextDeadline,
			expected: ErrorTypeTimeout,
		},
		{
			name:     "timeout error variant",
			err:      errRequestTimeout,
			expected: ErrorTypeTimeout,
		},
		{
			name:     "network error connection refused",
			err:      errConnectionRefused,
			expected: ErrorTypeNetwork,
		},
		{
			name:     "network error no such host",
			err:      errNoSuchHost,
			expected: ErrorTypeNetwork,
		},
		{
			name:     "unknown error",
			err:      errRandomError,
			expected: ErrorTypeUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			result := ClassifyAPIError(tt.err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestClassifyAPIErrorWrapped(t *testing.T) {
	t.Parallel()

	apiErr := apierrors.NewUnauthorized("expired")
	wrappedErr := errors.Join(errWrapper, apiErr)

	result := ClassifyAPIError(wrappedErr)
	assert.Equal(t, ErrorTypeAuth, result)
}

func TestClassifyByStatusCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code     int
		expected string
	}{
		{code: 500, expected: ErrorTypeServerError},
		{code: 599, expected: ErrorTypeServerError},
		{code: 400, expected: ErrorTypeClientError},
		{code: 418, expected: ErrorTypeClientError},
		{code: 200, expected: ErrorTypeUnknown},
		{code: 600, expected: ErrorTypeUnknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, classifyByStatusCode(tt.code), "code %d", tt.code)
	}
}
