// Package kube reads and patches the gateway annotation on Services.
//
// # Credentials
//
// ResolveKubeconfig picks the kubeconfig for an environment in this order:
//
//   - an explicit path (a leading ~/ is expanded)
//   - <base>/kube/kube-<env>.config, where <env> is "dev" for the dev
//     environment and "prod" for everything else
//   - ~/.kube/config
//
// # Patching
//
// PatchServiceAnnotation sends a JSON merge patch that sets exactly one
// annotation key. Other annotations on the Service are left untouched.
// Dry-run patches are validated by the API server but not persisted.
package kube
