package metrics

import (
	"errors"
	"net/http"
	"strings"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
)

// Error type constants for metrics labels.
const (
	ErrorTypeAuth        = "auth"
	ErrorTypeRateLimit   = "rate_limit"
	ErrorTypeServerError = "server_error"
	ErrorTypeClientError = "client_error"
	ErrorTypeConflict    = "conflict"
	ErrorTypeNotFound    = "not_found"
	ErrorTypeInvalid     = "invalid"
	ErrorTypeTimeout     = "timeout"
	ErrorTypeNetwork     = "network"
	ErrorTypeUnknown     = "unknown"
)

// ClassifyAPIError classifies an error from the Kubernetes API for metrics labeling.
// Returns an empty string for nil errors.
func ClassifyAPIError(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case apierrors.IsUnauthorized(err) || apierrors.IsForbidden(err):
		return ErrorTypeAuth
	case apierrors.IsTooManyRequests(err):
		return ErrorTypeRateLimit
	case apierrors.IsTimeout(err) || apierrors.IsServerTimeout(err):
		return ErrorTypeTimeout
	case apierrors.IsAlreadyExists(err) || apierrors.IsConflict(err):
		return ErrorTypeConflict
	case apierrors.IsNotFound(err):
		return ErrorTypeNotFound
	case apierrors.IsInvalid(err) || apierrors.IsBadRequest(err):
		return ErrorTypeInvalid
	}

	var statusErr apierrors.APIStatus
	if errors.As(err, &statusErr) {
		return classifyByStatusCode(int(statusErr.Status().Code))
	}

	// Fallback for transport errors based on error message
	return classifyByErrorMessage(err.Error())
}

func classifyByStatusCode(statusCode int) string {
	switch {
	case statusCode >= http.StatusInternalServerError && statusCode < 600:
		return ErrorTypeServerError
	case statusCode >= http.StatusBadRequest && statusCode < http.StatusInternalServerError:
		return ErrorTypeClientError
	default:
		return ErrorTypeUnknown
	}
}

func classifyByErrorMessage(errStr string) string {
	errLower := strings.ToLower(errStr)

	switch {
	case strings.Contains(errLower, "timeout") || strings.Contains(errLower, "deadline"):
		return ErrorTypeTimeout
	case strings.Contains(errLower, "connection refused") || strings.Contains(errLower, "no such host"):
		return ErrorTypeNetwork
	default:
		return ErrorTypeUnknown
	}
}
