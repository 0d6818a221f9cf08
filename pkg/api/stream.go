package api

// ChunkType discriminates the normalized stream events every adapter emits.
type ChunkType string

const (
	ChunkContent ChunkType = "content"
	ChunkInfo    ChunkType = "info"
	ChunkError   ChunkType = "error"
	ChunkDone    ChunkType = "done"
)

// StreamChunk is one normalized unit of streamed output, regardless of the
// upstream wire format. Exactly one terminal chunk (done or error) ends a
// stream.
type StreamChunk struct {
	Type     ChunkType `json:"type"`
	Content  string    `json:"content,omitempty"`
	Model    string    `json:"model,omitempty"`
	Provider string    `json:"provider,omitempty"`
	Error    string    `json:"error,omitempty"`
	Usage    *Usage    `json:"usage,omitempty"`
}

// ChunkHandler receives normalized chunks in upstream emission order.
type ChunkHandler func(StreamChunk)
