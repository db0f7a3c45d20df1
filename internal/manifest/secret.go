package manifest

import (
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

const (
	secretNameSuffix = "-secrets"
	vaultItemPrefix  = "vaults/Dev Secrets/items/"
	vaultItemSuffix  = "-streamlit"
	secretTypeOpaque = "kubernetes.io/Opaque"
)

// OnePasswordItemGVK identifies the 1Password operator's item resource.
//
//nolint:gochecknoglobals // immutable GVK value
var OnePasswordItemGVK = schema.GroupVersionKind{
	Group:   "onepassword.com",
	Version: "v1",
	Kind:    "OnePasswordItem",
}

// SecretName returns the name of the OnePasswordItem and of the Secret it produces.
func SecretName(name string) string {
	return name + secretNameSuffix
}

// ItemPath returns the 1Password vault item the app's secrets are read from.
func ItemPath(name string) string {
	return vaultItemPrefix + name + vaultItemSuffix
}

// SecretReference builds the OnePasswordItem for an app. The 1Password
// operator materializes it as a Secret named SecretName(name).
func SecretReference(name, namespace string) *unstructured.Unstructured {
	secretName := SecretName(name)

	obj := &unstructured.Unstructured{
		Object: map[string]any{
			"spec": map[string]any{
				"itemPath":   ItemPath(name),
				"secretName": secretName,
				"secretType": secretTypeOpaque,
			},
		},
	}

	obj.SetGroupVersionKind(OnePasswordItemGVK)
	obj.SetName(secretName)
	obj.SetNamespace(namespace)
	obj.SetLabels(ObjectLabels(name))

	return obj
}
