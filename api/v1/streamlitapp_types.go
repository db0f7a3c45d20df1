package v1

import (
	"encoding/json"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const (
	// ConditionTypeReady reports whether the app stack has been provisioned.
	ConditionTypeReady = "Ready"

	// ReasonProvisioned means every object of the stack was created or already existed.
	ReasonProvisioned = "Provisioned"

	// ReasonInvalidSpec means a required field is missing or malformed. Not retried.
	ReasonInvalidSpec = "InvalidSpec"

	// ReasonProvisioningFailed means an API call failed. Retried with backoff.
	ReasonProvisioningFailed = "ProvisioningFailed"
)

// StreamlitAppSpec describes the repository to run.
//
// The schema keeps unknown fields so the camelCase aliases codeDir and
// hasSecrets survive admission. code_dir is therefore checked by the
// controller, not the schema.
//
// +kubebuilder:pruning:PreserveUnknownFields
type StreamlitAppSpec struct {
	// Repo is the git URL the code is synced from.
	// +kubebuilder:validation:Required
	// +kubebuilder:validation:MinLength=1
	Repo string `json:"repo"`

	// Branch is the git branch to sync.
	// +kubebuilder:validation:Required
	// +kubebuilder:validation:MinLength=1
	Branch string `json:"branch"`

	// CodeDir is the directory inside the repository holding main.py.
	// Also accepted as codeDir.
	// +optional
	CodeDir string `json:"code_dir"`

	// HasSecrets requests a OnePasswordItem named <name>-secrets whose
	// keys are exposed to the app container as environment variables.
	// Also accepted as hasSecrets.
	// +optional
	// +kubebuilder:default=false
	HasSecrets bool `json:"has_secrets,omitempty"`
}

// UnmarshalJSON accepts the camelCase spellings codeDir and hasSecrets as
// well. The snake_case fields win when both are present.
func (s *StreamlitAppSpec) UnmarshalJSON(data []byte) error {
	type plain StreamlitAppSpec

	var aux struct {
		plain

		CodeDirCamel    *string `json:"codeDir,omitempty"`
		HasSecretsCamel *bool   `json:"hasSecrets,omitempty"`
	}

	err := json.Unmarshal(data, &aux)
	if err != nil {
		//nolint:wrapcheck // decoding errors are surfaced as-is to the apimachinery codec
		return err
	}

	*s = StreamlitAppSpec(aux.plain)

	if s.CodeDir == "" && aux.CodeDirCamel != nil {
		s.CodeDir = *aux.CodeDirCamel
	}

	if !s.HasSecrets && aux.HasSecretsCamel != nil {
		s.HasSecrets = *aux.HasSecretsCamel
	}

	return nil
}

// StreamlitAppStatus defines the observed state of StreamlitApp.
type StreamlitAppStatus struct {
	// DeploymentName is the name of the created Deployment.
	// +optional
	DeploymentName string `json:"deploymentName,omitempty"`

	// ServiceName is the name of the created Service.
	// +optional
	ServiceName string `json:"serviceName,omitempty"`

	// IngressName is the name of the created Ingress.
	// +optional
	IngressName string `json:"ingressName,omitempty"`

	// SecretName is the name of the OnePasswordItem, empty when has_secrets is false.
	// +optional
	SecretName string `json:"secretName,omitempty"`

	// URL is where the app is served once DNS has propagated.
	// +optional
	URL string `json:"url,omitempty"`

	// ObservedGeneration is the generation last provisioned.
	// +optional
	ObservedGeneration int64 `json:"observedGeneration,omitempty"`

	// Conditions describe the current state of the StreamlitApp.
	// +optional
	// +listType=map
	// +listMapKey=type
	Conditions []metav1.Condition `json:"conditions,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:resource:path=streamlit-apps,singular=streamlit-app,shortName=sapp
// +kubebuilder:printcolumn:name="Repo",type=string,JSONPath=`.spec.repo`
// +kubebuilder:printcolumn:name="Branch",type=string,JSONPath=`.spec.branch`
// +kubebuilder:printcolumn:name="URL",type=string,JSONPath=`.status.url`
// +kubebuilder:printcolumn:name="Ready",type=string,JSONPath=`.status.conditions[?(@.type=="Ready")].status`
// +kubebuilder:printcolumn:name="Age",type=date,JSONPath=`.metadata.creationTimestamp`

// StreamlitApp is the Schema for the streamlit-apps API.
type StreamlitApp struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   StreamlitAppSpec   `json:"spec,omitempty"`
	Status StreamlitAppStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true

// StreamlitAppList contains a list of StreamlitApp.
type StreamlitAppList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []StreamlitApp `json:"items"`
}

func init() {
	SchemeBuilder.Register(&StreamlitApp{}, &StreamlitAppList{})
}

// ReadyCondition returns the Ready condition, or nil if it was never set.
func (s *StreamlitAppStatus) ReadyCondition() *metav1.Condition {
	for i := range s.Conditions {
		if s.Conditions[i].Type == ConditionTypeReady {
			return &s.Conditions[i]
		}
	}

	return nil
}

// IsProvisioned reports whether the stack was created. Apps are provisioned
// once; later spec edits do not change the created objects.
func (a *StreamlitApp) IsProvisioned() bool {
	cond := a.Status.ReadyCondition()
	if cond == nil {
		return false
	}

	return cond.Status == metav1.ConditionTrue && cond.Reason == ReasonProvisioned
}
