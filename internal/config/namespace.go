package config

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrInvalidNamespace is returned for namespaces not in <client>-<env> form.
var ErrInvalidNamespace = errors.New("namespace must be in <client>-<env> format")

// Namespace is a parsed <client>-<env> namespace.
type Namespace struct {
	Name        string
	Client      string
	Environment string
}

// ParseNamespace splits name on its last "-". The suffix is the environment.
// Both halves must be non-empty, so "sbb-" and "-dev" are rejected along with
// names that have no "-" at all.
func ParseNamespace(name string) (Namespace, error) {
	idx := strings.LastIndex(name, "-")
	if idx <= 0 || idx == len(name)-1 {
		return Namespace{}, errors.Wrapf(ErrInvalidNamespace, "got %q", name)
	}

	return Namespace{
		Name:        name,
		Client:      name[:idx],
		Environment: name[idx+1:],
	}, nil
}
