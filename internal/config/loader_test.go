package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexfrei/ambassador-annotation-sync/internal/annotation"
	"github.com/lexfrei/ambassador-annotation-sync/internal/config"
)

const topLevelConfig = `
namespace: sbb-dev
global:
  add_response_headers:
    X-Foo: bar
services:
  zeta:
    timeout: 5s
  alpha:
    prefix: /alpha/
    retries: 3
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "annotations.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func serviceNames(doc *config.Document) []string {
	names := make([]string, 0, len(doc.Services))
	for _, svc := range doc.Services {
		names = append(names, svc.Name)
	}

	return names
}

func TestLoad_TopLevel(t *testing.T) {
	t.Parallel()

	doc, err := config.Load(writeConfig(t, topLevelConfig))
	require.NoError(t, err)

	assert.Equal(t, "sbb-dev", doc.Namespace)
	assert.Equal(t, []string{"zeta", "alpha"}, serviceNames(doc))

	headers, ok := doc.Global.Get(annotation.ResponseHeadersKey)
	require.True(t, ok)
	require.Len(t, headers.Nested, 1)
	assert.Equal(t, "X-Foo", headers.Nested[0].Key)
	assert.Equal(t, "bar", headers.Nested[0].Scalar)

	require.Len(t, doc.Services[1].Annotations, 2)
	assert.Equal(t, "prefix", doc.Services[1].Annotations[0].Key)
	assert.Equal(t, "retries", doc.Services[1].Annotations[1].Key)
}

func TestLoad_PlatformVariant(t *testing.T) {
	t.Parallel()

	content := `
platform:
  namespace: acme-prod
  services:
    api:
      timeout_ms: 3000
`

	doc, err := config.Load(writeConfig(t, content))
	require.NoError(t, err)

	assert.Equal(t, "acme-prod", doc.Namespace)
	assert.Empty(t, doc.Global)
	assert.Equal(t, []string{"api"}, serviceNames(doc))
}

func TestLoad_ServiceWithoutAnnotations(t *testing.T) {
	t.Parallel()

	content := `
namespace: sbb-dev
services:
  empty:
  full:
    timeout: 5s
`

	doc, err := config.Load(writeConfig(t, content))
	require.NoError(t, err)

	require.Len(t, doc.Services, 2)
	assert.Empty(t, doc.Services[0].Annotations)
	assert.Len(t, doc.Services[1].Annotations, 1)
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		target  error
		wantErr string
	}{
		{
			name:    "missing namespace",
			content: "services:\n  svc1:\n    timeout: 5s\n",
			target:  config.ErrMissingNamespace,
		},
		{
			name:    "missing services",
			content: "namespace: sbb-dev\n",
			target:  config.ErrMissingServices,
		},
		{
			name:    "empty services",
			content: "namespace: sbb-dev\nservices: {}\n",
			target:  config.ErrMissingServices,
		},
		{
			name:    "empty document",
			content: "",
			target:  config.ErrMissingNamespace,
		},
		{
			name:    "malformed yaml",
			content: "namespace: [unterminated\n",
			wantErr: "failed to parse YAML",
		},
		{
			name:    "services is a list",
			content: "namespace: sbb-dev\nservices:\n  - svc1\n",
			wantErr: "services must be a mapping",
		},
		{
			name:    "service annotations are a list",
			content: "namespace: sbb-dev\nservices:\n  svc1:\n    - timeout\n",
			wantErr: "service \"svc1\"",
		},
		{
			name:    "duplicate service",
			content: "namespace: sbb-dev\nservices:\n  svc1:\n    timeout: 5s\n  svc1:\n    timeout: 1s\n",
			wantErr: "line 5: duplicate service \"svc1\"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := config.Load(writeConfig(t, tt.content))
			require.Error(t, err)

			if tt.target != nil {
				assert.True(t, errors.Is(err, tt.target), "expected %v, got %v", tt.target, err)
			}

			if tt.wantErr != "" {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoad_NoPath(t *testing.T) {
	t.Parallel()

	_, err := config.Load("")
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrNoConfigFile))
}

func TestLoad_FileNotFound(t *testing.T) {
	t.Parallel()

	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrConfigNotFound))
}

func TestParse_PlatformWins(t *testing.T) {
	t.Parallel()

	content := `
namespace: outer-dev
services:
  outer:
    timeout: 1s
platform:
  namespace: inner-prod
  services:
    inner:
      timeout: 2s
`

	doc, err := config.Parse([]byte(content))
	require.NoError(t, err)

	assert.Equal(t, "inner-prod", doc.Namespace)
	assert.Equal(t, []string{"inner"}, serviceNames(doc))
}

func TestParse_MergeKeys(t *testing.T) {
	t.Parallel()

	doc, err := config.Parse([]byte(`
namespace: sbb-dev
common: &common {timeout_ms: 3000, retries: 2}
services:
  svc1:
    <<: *common
    prefix: /svc1/
  svc2:
    <<: *common
    retries: 0
`))
	require.NoError(t, err)
	require.Len(t, doc.Services, 2)

	block, err := annotation.Render(doc.Services[0].Annotations)
	require.NoError(t, err)
	assert.Equal(t, "timeout_ms: 3000\nretries: 2\nprefix: /svc1/\n", block.String())

	block, err = annotation.Render(doc.Services[1].Annotations)
	require.NoError(t, err)
	assert.Equal(t, "timeout_ms: 3000\nretries: 0\n", block.String())
}

func TestLoadInline(t *testing.T) {
	t.Parallel()

	doc, err := config.LoadInline(`{"namespace": "sbb-dev", ` +
		`"global": {"add_response_headers": {"X-Foo": "bar"}}, ` +
		`"services": {"zeta": {"timeout": "5s"}, "alpha": {"prefix": "/alpha/"}}}`)
	require.NoError(t, err)

	assert.Equal(t, "sbb-dev", doc.Namespace)
	assert.Equal(t, []string{"zeta", "alpha"}, serviceNames(doc))

	headers, ok := doc.Global.Get(annotation.ResponseHeadersKey)
	require.True(t, ok)
	assert.Equal(t, "bar", headers.Nested[0].Scalar)
}

func TestLoadInline_Errors(t *testing.T) {
	t.Parallel()

	_, err := config.LoadInline("  ")
	assert.True(t, errors.Is(err, config.ErrNoConfigFile))

	_, err = config.LoadInline(`{"namespace": "sbb-dev"}`)
	assert.True(t, errors.Is(err, config.ErrMissingServices))

	_, err = config.LoadInline(`{"namespace": `)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid inline config")
}
