package core

// Finish reasons reported by providers at the end of a streamed response.
const (
	FinishReasonStop      = "stop"
	FinishReasonToolCalls = "tool_calls"
	FinishReasonLength    = "length"
	FinishReasonError     = "error"
)

// ChunkMetadata carries terminal signals alongside a StreamChunk.
type ChunkMetadata struct {
	FinishReason   string `json:"finish_reason,omitempty"`
	StreamComplete bool   `json:"stream_complete"`
	// Round is the zero based provider round the chunk belongs to. Each batch
	// of executed tool calls starts a new round.
	Round int `json:"round"`
	// Token counts summed over every round, set on the stream-complete
	// marker when the provider reports usage.
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
}

// StreamChunk is one incremental unit yielded by streaming chat. It is
// transient and never persisted. The web layer forwards chunks verbatim as
// SSE or WebSocket frames, hence the JSON tags.
type StreamChunk struct {
	Success  bool          `json:"success"`
	Content  string        `json:"content,omitempty"`
	Message  *Message      `json:"message,omitempty"`
	Metadata ChunkMetadata `json:"metadata"`
	Error    string        `json:"error,omitempty"`

	// Err holds the typed failure for in-process callers.
	Err error `json:"-"`
}

// IsComplete reports whether the chunk is the stream-complete marker.
func (c StreamChunk) IsComplete() bool { return c.Metadata.StreamComplete }

// NewFailedChunk builds an unsuccessful terminal chunk for err.
func NewFailedChunk(err error, round int) StreamChunk {
	return StreamChunk{
		Success: false,
		Error:   err.Error(),
		Err:     err,
		Metadata: ChunkMetadata{
			FinishReason:   FinishReasonError,
			StreamComplete: true,
			Round:          round,
		},
	}
}
