package annotation

import (
	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

const mergeTag = "!!merge"

// Pair is one key/value of a YAML mapping.
type Pair struct {
	Key   *yaml.Node
	Value *yaml.Node
}

// MappingPairs returns the pairs of a mapping node in document order with
// merge keys ("<<: *anchor") expanded. Merged pairs come first and explicit
// keys override them in place. When several mappings are merged the first
// one listed wins. An explicit key given twice is an error naming noun.
//
//nolint:wrapcheck // errors.Newf creates new errors
func MappingPairs(node *yaml.Node, noun string) ([]Pair, error) {
	node = resolve(node)

	if node.Kind != yaml.MappingNode {
		return nil, errors.Newf("line %d: expected a mapping, got %s", node.Line, describe(node))
	}

	var merged []Pair

	explicit := make([]Pair, 0, len(node.Content)/2)
	seen := make(map[string]struct{}, len(node.Content)/2)

	for idx := 0; idx+1 < len(node.Content); idx += 2 {
		keyNode := resolve(node.Content[idx])
		valueNode := node.Content[idx+1]

		if isMergeKey(keyNode) {
			pairs, err := mergeSources(valueNode, noun)
			if err != nil {
				return nil, err
			}

			merged = firstWins(merged, pairs)

			continue
		}

		if _, dup := seen[keyNode.Value]; dup {
			return nil, errors.Newf("line %d: duplicate %s %q", keyNode.Line, noun, keyNode.Value)
		}

		seen[keyNode.Value] = struct{}{}
		explicit = append(explicit, Pair{Key: keyNode, Value: valueNode})
	}

	return override(merged, explicit), nil
}

func isMergeKey(node *yaml.Node) bool {
	return node.Kind == yaml.ScalarNode && node.ShortTag() == mergeTag
}

//nolint:wrapcheck // errors.Newf creates new errors
func mergeSources(node *yaml.Node, noun string) ([]Pair, error) {
	node = resolve(node)

	switch node.Kind {
	case yaml.MappingNode:
		return MappingPairs(node, noun)
	case yaml.SequenceNode:
		var pairs []Pair

		for _, item := range node.Content {
			item = resolve(item)
			if item.Kind != yaml.MappingNode {
				return nil, errors.Newf("line %d: merge sequence must contain mappings, got %s", item.Line, describe(item))
			}

			itemPairs, err := MappingPairs(item, noun)
			if err != nil {
				return nil, err
			}

			pairs = firstWins(pairs, itemPairs)
		}

		return pairs, nil
	default:
		return nil, errors.Newf("line %d: merge value must be a mapping or a sequence of mappings, got %s",
			node.Line, describe(node))
	}
}

// firstWins appends the pairs of extra whose keys base does not have yet.
func firstWins(base, extra []Pair) []Pair {
	present := make(map[string]struct{}, len(base))
	for _, pair := range base {
		present[pair.Key.Value] = struct{}{}
	}

	result := make([]Pair, 0, len(base)+len(extra))
	result = append(result, base...)

	for _, pair := range extra {
		if _, ok := present[pair.Key.Value]; ok {
			continue
		}

		present[pair.Key.Value] = struct{}{}
		result = append(result, pair)
	}

	return result
}

// override replaces the values of base keys that top sets again and appends
// the rest of top.
func override(base, top []Pair) []Pair {
	result := make([]Pair, 0, len(base)+len(top))
	result = append(result, base...)

	position := make(map[string]int, len(base))
	for idx, pair := range result {
		position[pair.Key.Value] = idx
	}

	for _, pair := range top {
		if idx, ok := position[pair.Key.Value]; ok {
			result[idx] = pair

			continue
		}

		position[pair.Key.Value] = len(result)
		result = append(result, pair)
	}

	return result
}
