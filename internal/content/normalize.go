package content

import "strings"

const fenceMarker = "```"

// Normalize trims the document and unwraps a document-wide fenced code block.
// The opening fence line is dropped together with everything from the last
// fence marker onward. An unclosed fence keeps the remainder intact.
func Normalize(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if !strings.HasPrefix(cleaned, fenceMarker) {
		return cleaned
	}

	start := len(cleaned)
	if idx := strings.IndexByte(cleaned, '\n'); idx >= 0 {
		start = idx + 1
	}

	end := strings.LastIndex(cleaned, fenceMarker)
	if end < start {
		end = len(cleaned)
	}

	return strings.TrimSpace(cleaned[start:end])
}
