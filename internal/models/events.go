package models

// WebSocket message types

type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// ChatChunk is one streamed fragment of an assistant reply.
type ChatChunk struct {
	VideoID string `json:"video_id"`
	Chunk   string `json:"chunk"`
}

// ChatDone marks end-of-stream for a chat reply.
type ChatDone struct {
	VideoID string `json:"video_id"`
}

// ChatError reports a failed chat turn to stream subscribers.
type ChatError struct {
	VideoID string `json:"video_id"`
	Message string `json:"message"`
}

// API Error response
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
