package domain

// Chunk is a bounded slice of a document's extracted text, the unit of
// embedding and retrieval. Chunks from one document are numbered
// 0..TotalChunks-1 contiguously; TotalChunks is backfilled once the full
// split completes.
type Chunk struct {
	Content string    `json:"content"`
	Meta    ChunkMeta `json:"metadata"`
}

// ChunkMeta identifies a chunk's origin within its source document.
type ChunkMeta struct {
	Filename    string `json:"filename"`
	Source      string `json:"source"`
	ChunkIndex  int    `json:"chunk_index"`
	TotalChunks int    `json:"total_chunks"`
	Section     string `json:"section,omitempty"`
}
