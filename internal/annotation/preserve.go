package annotation

import "strings"

const documentSeparator = "---"

type existingEntry struct {
	key   string
	lines []string
}

// identity tells gateway resources in one annotation value apart.
type identity struct {
	kind string
	name string
}

// PreserveUnmanaged combines rendered with the current annotation value.
//
// The existing value may hold several YAML documents. The document with the
// same kind and name as rendered (both empty for plain key lists) is merged
// entry by entry: its entries whose top-level key rendered does not set are
// appended after the rendered lines, indented continuation lines staying with
// their parent key. Every other document is kept whole after a separator.
// Entries and documents keep their original order; empty documents are
// dropped.
func PreserveUnmanaged(rendered Block, existing string) Block {
	result := make(Block, 0, len(rendered))
	result = append(result, rendered...)

	own := identityOf(rendered)
	merged := false

	var others [][]string

	for _, doc := range splitDocuments(existing) {
		if !merged && identityOf(doc) == own {
			result = appendUnmanaged(result, rendered, doc)
			merged = true

			continue
		}

		others = append(others, doc)
	}

	for _, doc := range others {
		result = append(result, documentSeparator+"\n")
		result = append(result, doc...)
	}

	return result
}

func appendUnmanaged(result, rendered Block, doc []string) Block {
	managed := make(map[string]struct{})
	for _, key := range rendered.TopLevelKeys() {
		managed[key] = struct{}{}
	}

	for _, entry := range splitEntries(doc) {
		if _, ok := managed[entry.key]; ok {
			continue
		}

		result = append(result, entry.lines...)
	}

	return result
}

// splitDocuments splits value on "---" lines into newline-terminated lines
// per document, skipping documents without content.
func splitDocuments(value string) [][]string {
	var (
		docs    [][]string
		current []string
	)

	flush := func() {
		if hasContent(current) {
			docs = append(docs, current)
		}

		current = nil
	}

	for _, line := range strings.SplitAfter(value, "\n") {
		if line == "" {
			continue
		}

		if !strings.HasSuffix(line, "\n") {
			line += "\n"
		}

		if strings.TrimRight(line, " \t\r\n") == documentSeparator {
			flush()

			continue
		}

		current = append(current, line)
	}

	flush()

	return docs
}

func hasContent(lines []string) bool {
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			return true
		}
	}

	return false
}

func identityOf(lines []string) identity {
	var id identity

	for _, line := range lines {
		key, ok := topLevelKey(line)
		if !ok {
			continue
		}

		_, value, _ := strings.Cut(line, ":")
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		switch key {
		case "kind":
			id.kind = value
		case "name":
			id.name = value
		}
	}

	return id
}

func splitEntries(lines []string) []existingEntry {
	var entries []existingEntry

	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}

		key, ok := topLevelKey(line)
		if ok {
			entries = append(entries, existingEntry{key: key, lines: []string{line}})

			continue
		}

		// continuation lines without a parent cannot be placed safely
		if len(entries) == 0 {
			continue
		}

		last := &entries[len(entries)-1]
		last.lines = append(last.lines, line)
	}

	return entries
}
