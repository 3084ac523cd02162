package models

import "time"

// Frame is one extracted still image, keyed by (video, rounded timestamp).
// Frames never outlive the summary text that referenced them: every
// re-summarization purges the prior set before new text is stored.
type Frame struct {
	VideoID   string    `json:"video_id"`
	Timestamp int       `json:"timestamp"`
	ImagePath string    `json:"image_path"`
	CreatedAt time.Time `json:"created_at"`
}
