package kube

import (
	"os"
	"path/filepath"
	"strings"
)

// DevEnvironment is the only environment that gets its own kubeconfig file.
const DevEnvironment = "dev"

// KubeconfigFileName returns the per-environment kubeconfig file name.
func KubeconfigFileName(env string) string {
	if env == DevEnvironment {
		return "kube-dev.config"
	}

	return "kube-prod.config"
}

// ResolveKubeconfig returns the kubeconfig path to use for env.
func ResolveKubeconfig(explicit, env, baseDir, homeDir string) string {
	if explicit != "" {
		return expandHome(explicit, homeDir)
	}

	candidate := filepath.Join(baseDir, "kube", KubeconfigFileName(env))

	_, err := os.Stat(candidate)
	if err == nil {
		return candidate
	}

	return filepath.Join(homeDir, ".kube", "config")
}

func expandHome(path, homeDir string) string {
	if path == "~" {
		return homeDir
	}

	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		return filepath.Join(homeDir, rest)
	}

	return path
}
