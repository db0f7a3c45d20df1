package controller

import (
	"sigs.k8s.io/controller-runtime/pkg/event"
	"sigs.k8s.io/controller-runtime/pkg/predicate"

	streamlitv1 "github.com/document-crunch/streamlit-operator/api/v1"
)

// provisionOncePredicate admits new apps, and edits of apps that were never
// provisioned. Deletion is left to owner-reference garbage collection.
func provisionOncePredicate() predicate.Funcs {
	return predicate.Funcs{
		CreateFunc: func(event.CreateEvent) bool {
			return true
		},
		UpdateFunc: func(e event.UpdateEvent) bool {
			if !(predicate.GenerationChangedPredicate{}).Update(e) {
				return false
			}

			app, ok := e.ObjectNew.(*streamlitv1.StreamlitApp)
			if !ok {
				return false
			}

			return !app.IsProvisioned()
		},
		DeleteFunc: func(event.DeleteEvent) bool {
			return false
		},
		GenericFunc: func(event.GenericEvent) bool {
			return false
		},
	}
}
