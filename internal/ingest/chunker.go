package ingest

import "strings"

// DefaultChunkSize is the window length in characters.
const DefaultChunkSize = 500

// SplitText cuts text into consecutive windows of size characters (runes), with
// no overlap. Windows that are empty or whitespace-only are dropped; the others
// are kept untrimmed so that joining them reproduces the input minus the
// dropped windows.
func SplitText(text string, size int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}

	runes := []rune(text)
	chunks := make([]string, 0, len(runes)/size+1)
	for start := 0; start < len(runes); start += size {
		end := min(start+size, len(runes))
		window := string(runes[start:end])
		if strings.TrimSpace(window) == "" {
			continue
		}
		chunks = append(chunks, window)
	}
	return chunks
}
