// Package controller implements the StreamlitApp controller.
//
// StreamlitAppReconciler provisions one application stack per StreamlitApp:
// an optional OnePasswordItem, then a Deployment, a Service and an Ingress,
// all owned by the app. Each stack is created once and never updated. The
// API server garbage-collects it when the app is deleted.
//
// # Flow
//
//	┌──────────────┐  create   ┌────────────────────────┐
//	│ StreamlitApp │──────────>│ StreamlitAppReconciler │
//	└──────────────┘           └───────────┬────────────┘
//	                                       │ validate, then create in order
//	                                       ▼
//	          OnePasswordItem ─> Deployment ─> Service ─> Ingress
//
// Invalid specs end as a terminal error with Ready=False/InvalidSpec. API
// failures are returned and retried by controller-runtime with backoff.
// Objects that already exist are kept as they are.
//
// # Startup
//
// Run loads the static config file, creates the hub app with an uncached
// client and then starts the manager. The manager cache only watches the
// target namespace.
//
// # Leader Election
//
// When running multiple replicas for high availability, enable leader election
// via --leader-elect flag to ensure only one controller actively reconciles
// resources at a time.
package controller
