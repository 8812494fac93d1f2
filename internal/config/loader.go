// Package config loads the annotation document that drives a sync run.
package config

import (
	"io/fs"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/lexfrei/ambassador-annotation-sync/internal/annotation"
)

var (
	// ErrNoConfigFile is returned when no config file path was supplied.
	ErrNoConfigFile = errors.New("no config file provided")
	// ErrConfigNotFound is returned when the config file does not exist.
	ErrConfigNotFound = errors.New("config file does not exist")
	// ErrMissingNamespace is returned when the document has no namespace.
	ErrMissingNamespace = errors.New("config is missing required key: namespace")
	// ErrMissingServices is returned when the document has no services.
	ErrMissingServices = errors.New("config is missing required key: services")
)

// Service is a named Service and the annotations managed on it.
type Service struct {
	Name        string
	Annotations annotation.Spec
}

// Document is a loaded annotation config.
type Document struct {
	// Namespace in <client>-<env> form.
	Namespace string

	// Global annotations are appended to every service.
	Global annotation.Spec

	// Services in document order.
	Services []Service
}

// Services decodes the services mapping in document order.
type Services []Service

// UnmarshalYAML keeps the order in which services are declared and rejects
// a service listed twice.
//
//nolint:wrapcheck // errors.Newf creates new errors
func (s *Services) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return errors.Newf("line %d: services must be a mapping of service name to annotations", node.Line)
	}

	pairs, err := annotation.MappingPairs(node, "service")
	if err != nil {
		return err
	}

	services := make(Services, 0, len(pairs))

	for _, pair := range pairs {
		name := pair.Key.Value

		var spec annotation.Spec

		decodeErr := pair.Value.Decode(&spec)
		if decodeErr != nil {
			return errors.Wrapf(decodeErr, "service %q", name)
		}

		services = append(services, Service{Name: name, Annotations: spec})
	}

	*s = services

	return nil
}

type rawDocument struct {
	Namespace string          `yaml:"namespace"`
	Global    annotation.Spec `yaml:"global"`
	Services  Services        `yaml:"services"`
	Platform  *rawDocument    `yaml:"platform"`
}

// Load reads and validates the config file at path.
func Load(path string) (*Document, error) {
	if path == "" {
		return nil, ErrNoConfigFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(ErrConfigNotFound, "%s", path)
		}

		return nil, errors.Wrapf(err, "failed to read config file %s", path)
	}

	doc, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid config file %s", path)
	}

	return doc, nil
}

// LoadInline parses a document passed on the command line. JSON objects are
// accepted since they are valid YAML flow mappings.
func LoadInline(data string) (*Document, error) {
	if strings.TrimSpace(data) == "" {
		return nil, ErrNoConfigFile
	}

	doc, err := Parse([]byte(data))
	if err != nil {
		return nil, errors.Wrap(err, "invalid inline config")
	}

	return doc, nil
}

// Parse decodes and validates a config document. Keys may sit at the top
// level or nested under "platform"; the nested form wins when present.
func Parse(data []byte) (*Document, error) {
	var raw rawDocument

	err := yaml.Unmarshal(data, &raw)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse YAML")
	}

	source := &raw
	if raw.Platform != nil {
		source = raw.Platform
	}

	doc := &Document{
		Namespace: source.Namespace,
		Global:    source.Global,
		Services:  source.Services,
	}

	err = doc.Validate()
	if err != nil {
		return nil, err
	}

	return doc, nil
}

// Validate checks the keys a run cannot do without.
func (d *Document) Validate() error {
	if d.Namespace == "" {
		return ErrMissingNamespace
	}

	if len(d.Services) == 0 {
		return ErrMissingServices
	}

	return nil
}
