package annotation

import (
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Kind describes the YAML shape of an annotation value.
type Kind int

const (
	// KindScalar is a string, number, bool or null value.
	KindScalar Kind = iota
	// KindMapping is a nested key/value mapping.
	KindMapping
	// KindSequence is a list value.
	KindSequence
)

// Entry is a single annotation key and its value.
type Entry struct {
	Key  string
	Kind Kind

	// Scalar holds the source text of scalar values and the flow-style
	// rendering of sequence values.
	Scalar string

	// Nested holds the entries of a mapping value.
	Nested Spec
}

// Spec is an ordered annotation mapping. Order follows the source document.
type Spec []Entry

// Get returns the entry for key.
func (s Spec) Get(key string) (Entry, bool) {
	for _, entry := range s {
		if entry.Key == key {
			return entry, true
		}
	}

	return Entry{}, false
}

// UnmarshalYAML decodes a YAML mapping node while keeping key order. Merge
// keys are expanded before decoding.
//
//nolint:wrapcheck // errors.Newf creates new errors
func (s *Spec) UnmarshalYAML(node *yaml.Node) error {
	node = resolve(node)

	if node.Kind != yaml.MappingNode {
		return errors.Newf("line %d: annotations must be a mapping, got %s", node.Line, describe(node))
	}

	pairs, err := MappingPairs(node, "annotation key")
	if err != nil {
		return err
	}

	spec := make(Spec, 0, len(pairs))

	for _, pair := range pairs {
		entry, decodeErr := decodeEntry(pair.Key.Value, resolve(pair.Value))
		if decodeErr != nil {
			return decodeErr
		}

		spec = append(spec, entry)
	}

	*s = spec

	return nil
}

func decodeEntry(key string, node *yaml.Node) (Entry, error) {
	entry := Entry{Key: key}

	switch node.Kind {
	case yaml.MappingNode:
		entry.Kind = KindMapping

		err := entry.Nested.UnmarshalYAML(node)
		if err != nil {
			return Entry{}, errors.Wrapf(err, "annotation %q", key)
		}
	case yaml.SequenceNode:
		entry.Kind = KindSequence

		flow, err := flowStyle(node)
		if err != nil {
			return Entry{}, errors.Wrapf(err, "annotation %q", key)
		}

		entry.Scalar = flow
	default:
		entry.Kind = KindScalar
		entry.Scalar = node.Value
	}

	return entry, nil
}

func flowStyle(node *yaml.Node) (string, error) {
	flow := *node
	flow.Style |= yaml.FlowStyle

	out, err := yaml.Marshal(&flow)
	if err != nil {
		return "", errors.Wrap(err, "failed to encode sequence")
	}

	return strings.TrimSuffix(string(out), "\n"), nil
}

func resolve(node *yaml.Node) *yaml.Node {
	for node.Kind == yaml.AliasNode && node.Alias != nil {
		node = node.Alias
	}

	if node.Kind == yaml.DocumentNode && len(node.Content) == 1 {
		return resolve(node.Content[0])
	}

	return node
}

func describe(node *yaml.Node) string {
	switch node.Kind {
	case yaml.SequenceNode:
		return "sequence"
	case yaml.ScalarNode:
		return "scalar " + node.ShortTag()
	default:
		return "node"
	}
}
