package controller

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-git/go-git/v5/plumbing/transport"

	streamlitv1 "github.com/document-crunch/streamlit-operator/api/v1"
)

// Spec field names as they appear in the resource.
const (
	FieldRepo      = "repo"
	FieldBranch    = "branch"
	FieldCodeDir   = "code_dir"
	FieldNamespace = "metadata.namespace"
)

// ErrInvalidSpec marks errors caused by the resource itself. Retrying them
// cannot succeed until the user edits the object.
var ErrInvalidSpec = errors.New("invalid StreamlitApp spec")

// FieldError reports the first spec field that failed validation.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}

func invalidField(field, format string, args ...any) error {
	//nolint:wrapcheck // marked sentinel, not an external error
	return errors.Mark(&FieldError{Field: field, Message: fmt.Sprintf(format, args...)}, ErrInvalidSpec)
}

// ValidateSpec checks the required fields in declaration order and returns
// the first failure. Blank strings count as missing.
func ValidateSpec(spec *streamlitv1.StreamlitAppSpec) error {
	repo := strings.TrimSpace(spec.Repo)
	if repo == "" {
		return invalidField(FieldRepo, "is required")
	}

	endpoint, err := transport.NewEndpoint(repo)
	if err != nil {
		return invalidField(FieldRepo, "%q is not a git URL", spec.Repo)
	}

	if endpoint.Protocol == "file" {
		return invalidField(FieldRepo, "%q must be a remote git URL", spec.Repo)
	}

	if strings.TrimSpace(spec.Branch) == "" {
		return invalidField(FieldBranch, "is required")
	}

	if strings.TrimSpace(spec.CodeDir) == "" {
		return invalidField(FieldCodeDir, "is required")
	}

	return nil
}

// invalidFieldName returns the field carried by a validation error, or
// "unknown" when err holds none.
func invalidFieldName(err error) string {
	var fieldErr *FieldError
	if errors.As(err, &fieldErr) {
		return fieldErr.Field
	}

	return "unknown"
}
