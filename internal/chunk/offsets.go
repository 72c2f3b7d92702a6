package chunk

import "strings"

// Offsets splits text at raw character offsets, backing the cut up to the
// nearest preceding newline, period, or space within shrinking look-back
// windows (200/100/50 characters) to avoid mid-word and mid-sentence cuts.
// If no boundary is found in range, the cut lands at the raw offset.
// Consecutive chunks share up to overlap characters. This is the variant used
// by the managed-collection ingestion path.
func Offsets(text string, size, overlap int) []string {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	if len(text) <= size {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + size
		if end >= len(text) {
			end = len(text)
		} else {
			end = boundary(text, start, end)
		}

		chunks = append(chunks, strings.TrimSpace(text[start:end]))

		if end == len(text) {
			break
		}

		next := end - overlap
		if next <= start {
			// Boundary seeking plus overlap can stall; force progress.
			next = end
		}
		start = next
	}

	return chunks
}

// boundary seeks the nearest preceding newline, then period, then space
// before end, within 200/100/50 character look-back windows respectively.
func boundary(text string, start, end int) int {
	if nl := strings.LastIndexByte(text[start:end], '\n'); nl >= 0 {
		abs := start + nl
		if abs > start && abs > end-200 {
			return abs + 1 // include the newline
		}
	}
	if p := strings.LastIndexByte(text[start:end], '.'); p >= 0 {
		abs := start + p
		if abs > start && abs > end-100 {
			return abs + 1
		}
	}
	if sp := strings.LastIndexByte(text[start:end], ' '); sp >= 0 {
		abs := start + sp
		if abs > start && abs > end-50 {
			return abs + 1
		}
	}
	return end
}
