package annotation

import "slices"

// Merge returns the service lines followed by the global lines, with the
// first empty line (if any) removed. Neither input is modified.
func Merge(service, global Block) Block {
	merged := make(Block, 0, len(service)+len(global))
	merged = append(merged, service...)
	merged = append(merged, global...)

	if idx := slices.Index(merged, ""); idx >= 0 {
		merged = slices.Delete(merged, idx, idx+1)
	}

	return merged
}
