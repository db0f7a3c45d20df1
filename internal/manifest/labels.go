package manifest

const (
	// LabelApp is the label linking every object of a stack to its app.
	LabelApp = "app"

	// LabelManagedBy marks objects created by this operator.
	LabelManagedBy = "app.kubernetes.io/managed-by"

	// ManagedByValue is the value of LabelManagedBy.
	ManagedByValue = "streamlit-operator"

	// HTTPPort is the port the streamlit container, Service and Ingress use.
	HTTPPort = 80
)

// SelectorLabels returns the labels used to select the pods of an app.
func SelectorLabels(name string) map[string]string {
	return map[string]string{LabelApp: name}
}

// ObjectLabels returns the labels placed on every top-level object of an app.
func ObjectLabels(name string) map[string]string {
	return map[string]string{
		LabelApp:       name,
		LabelManagedBy: ManagedByValue,
	}
}
