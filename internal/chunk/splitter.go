// Package chunk splits normalized document text into bounded, overlapping
// segments suitable for embedding.
package chunk

import (
	"regexp"
	"strings"

	"github.com/motordesk/docindex/internal/domain"
)

const (
	// MaxCharsPerEmbedding is the hard ceiling imposed by the embedding
	// service's input window; chunk sizes clamp to it.
	MaxCharsPerEmbedding = 8000

	// DefaultMaxText caps document text before chunking.
	DefaultMaxText = 100_000
)

var paragraphSep = regexp.MustCompile(`\r?\n\r?\n`)

// Splitter accumulates paragraphs into chunks of at most size characters,
// seeding each new chunk with the trailing ~overlap worth of words from the
// previous one. A single paragraph larger than size is emitted as its own
// oversized chunk rather than split further.
type Splitter struct {
	size    int
	overlap int
	maxText int
}

// NewSplitter creates a paragraph splitter. size clamps to
// MaxCharsPerEmbedding; non-positive arguments fall back to the defaults
// (1000/200).
func NewSplitter(size, overlap, maxText int) *Splitter {
	if size <= 0 {
		size = 1000
	}
	if size > MaxCharsPerEmbedding {
		size = MaxCharsPerEmbedding
	}
	if overlap < 0 {
		overlap = 200
	}
	if maxText <= 0 {
		maxText = DefaultMaxText
	}
	return &Splitter{size: size, overlap: overlap, maxText: maxText}
}

// Split chunks text and tags every chunk with filename/source plus its index
// and the final total count. Text no longer than the chunk size yields
// exactly one chunk equal to the text.
func (s *Splitter) Split(text, filename, source string) []domain.Chunk {
	if len(text) > s.maxText {
		text = text[:s.maxText]
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}

	meta := func(idx int) domain.ChunkMeta {
		return domain.ChunkMeta{
			Filename:   filename,
			Source:     source,
			ChunkIndex: idx,
			// TotalChunks backfilled below
			TotalChunks: -1,
		}
	}

	if len(text) <= s.size {
		chunks := []domain.Chunk{{Content: text, Meta: meta(0)}}
		chunks[0].Meta.TotalChunks = 1
		return chunks
	}

	paragraphs := paragraphSep.Split(text, -1)

	var chunks []domain.Chunk
	var current string
	idx := 0

	emit := func() {
		chunks = append(chunks, domain.Chunk{Content: current, Meta: meta(idx)})
		idx++
	}

	for _, para := range paragraphs {
		if len(current)+len(para) > s.size && len(current) > 0 {
			emit()
			current = s.overlapTail(current)
		}

		if current != "" {
			current += "\n\n" + para
		} else {
			current = para
		}

		// A lone paragraph exceeding the chunk size goes out as-is.
		if len(current) > s.size {
			emit()
			current = ""
		}
	}

	if strings.TrimSpace(current) != "" {
		emit()
	}

	for i := range chunks {
		chunks[i].Meta.TotalChunks = len(chunks)
	}
	return chunks
}

// overlapTail returns the longest whole-word suffix of prev that fits the
// overlap budget. Capping at whole words keeps the seed from starting
// mid-word; capping at overlap characters keeps the shared text bounded.
func (s *Splitter) overlapTail(prev string) string {
	if s.overlap == 0 {
		return ""
	}
	words := strings.Split(prev, " ")
	var tail string
	for i := len(words) - 1; i >= 0; i-- {
		candidate := words[i]
		if tail != "" {
			candidate = words[i] + " " + tail
		}
		if len(candidate) > s.overlap {
			break
		}
		tail = candidate
	}
	return tail
}
