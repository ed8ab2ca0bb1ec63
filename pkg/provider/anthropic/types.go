package anthropic

// sseEvent is one Messages API SSE payload. The Type field discriminates
// between event kinds; the remaining fields are populated per kind.
type sseEvent struct {
	Type         string        `json:"type"`
	Index        int           `json:"index,omitempty"`
	Delta        *eventDelta   `json:"delta,omitempty"`
	ContentBlock *contentBlock `json:"content_block,omitempty"`
	Message      *finalMessage `json:"message,omitempty"`
	Error        *eventError   `json:"error,omitempty"`
}

// eventDelta carries incremental content inside content_block_delta events.
type eventDelta struct {
	Type        string `json:"type,omitempty"`
	Text        string `json:"text,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`
	StopReason  string `json:"stop_reason,omitempty"`
}

// contentBlock describes the block opened by content_block_start.
type contentBlock struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
	Text string `json:"text,omitempty"`
}

// finalMessage is the optional full-message snapshot some backends attach
// to the terminal event.
type finalMessage struct {
	Content []contentBlock `json:"content,omitempty"`
}

// eventError is the payload of an explicit provider error event.
type eventError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
