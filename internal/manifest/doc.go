// Package manifest builds the Kubernetes objects that make up one Streamlit
// app stack.
//
// Every function in this package is pure: given the same inputs it returns
// the same objects and performs no I/O. The reconciler in
// internal/controller attaches owner references and submits the objects.
//
// # Objects
//
// For an app named NAME the stack consists of:
//
//   - OnePasswordItem NAME-secrets (only when has_secrets is set), which the
//     1Password operator turns into a Secret of the same name
//   - Deployment NAME running a git-sync sidecar and the streamlit container
//   - Service NAME of type NodePort on port 80
//   - Ingress NAME with host NAME<suffix>.<baseDnsRecord> for the AWS load
//     balancer controller
//
// All objects carry the label app=NAME, which is also the Deployment
// selector and the Service selector.
package manifest
