package annotation

import "strings"

// Block is an ordered sequence of rendered annotation lines.
// Every line carries its own trailing newline.
type Block []string

// String joins the block into the annotation value sent to the cluster.
func (b Block) String() string {
	return strings.Join(b, "")
}

// TopLevelKeys returns the keys of lines that start a top-level entry.
func (b Block) TopLevelKeys() []string {
	keys := make([]string, 0, len(b))

	for _, line := range b {
		if key, ok := topLevelKey(line); ok {
			keys = append(keys, key)
		}
	}

	return keys
}

func topLevelKey(line string) (string, bool) {
	if strings.TrimSpace(line) == "" {
		return "", false
	}

	if line[0] == ' ' || line[0] == '\t' {
		return "", false
	}

	key, _, _ := strings.Cut(line, ":")

	return strings.TrimSpace(key), true
}
