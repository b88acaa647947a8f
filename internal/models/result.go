package models

// ContextChunk is a retrieved chunk with its similarity score and selection rank.
type ContextChunk struct {
	Chunk *Chunk  `json:"chunk"`
	Score float64 `json:"score"`
	Rank  int     `json:"rank"`
}

// RetrieveResponse is the response for a retrieve request.
type RetrieveResponse struct {
	Fingerprint string          `json:"fingerprint"`
	Query       string          `json:"query"`
	Chunks      []*ContextChunk `json:"chunks"`
	QueryTime   int64           `json:"query_time_ms"`
}

// IngestResponse is returned to clients after a successful ingest.
type IngestResponse struct {
	Fingerprint    string         `json:"fingerprint"`
	PageCount      int            `json:"page_count"`
	ChunkCount     int            `json:"chunk_count"`
	ExtractionMode ExtractionMode `json:"extraction_mode"`
	// Cached is true when the fingerprint was already indexed and nothing was rebuilt.
	Cached bool `json:"cached"`
}
