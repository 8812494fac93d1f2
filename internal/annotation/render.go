package annotation

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ResponseHeadersKey is the only key whose nested mapping gets rendered.
const ResponseHeadersKey = "add_response_headers"

// ErrEmptySpec is returned when there is nothing to render.
var ErrEmptySpec = errors.New("annotation spec is empty")

// Render formats spec into annotation lines, preserving key order.
func Render(spec Spec) (Block, error) {
	if len(spec) == 0 {
		return nil, ErrEmptySpec
	}

	block := make(Block, 0, len(spec))

	for _, entry := range spec {
		if entry.Kind != KindMapping {
			block = append(block, fmt.Sprintf("%s: %s\n", entry.Key, entry.Scalar))

			continue
		}

		if entry.Key != ResponseHeadersKey {
			continue
		}

		block = append(block, entry.Key+":\n")

		for _, header := range entry.Nested {
			block = append(block, fmt.Sprintf("  %s: \"%s\"\n", header.Key, header.Scalar))
		}
	}

	return block, nil
}
