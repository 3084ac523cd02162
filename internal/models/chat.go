package models

import "time"

// ChatMessage represents a single message in a video's conversation.
type ChatMessage struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Images    []string  `json:"images,omitempty"` // frame image paths attached as context
	CreatedAt time.Time `json:"created_at"`
}

// ChatRequest is the payload sent to the chat endpoint.
type ChatRequest struct {
	Message      string `json:"message"`
	AttachFrames bool   `json:"attach_frames"`
}

// ChatResponse is the fully assembled reply; incremental chunks are
// streamed over the WebSocket channel before this is returned.
type ChatResponse struct {
	Reply string `json:"reply"`
}
