package models

import (
	"encoding/json"
	"time"
)

// Video is the aggregate record for one YouTube video, keyed by the
// 11-character platform video ID. Re-summarization overwrites in place.
type Video struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	ThumbnailURL string          `json:"thumbnail_url"`
	SummaryEN    *string         `json:"summary_en"`
	SummaryZH    *string         `json:"summary_zh"`
	CaptionsJSON json.RawMessage `json:"captions"`
	ChaptersJSON json.RawMessage `json:"chapters"`
	CustomPrompt *string         `json:"custom_prompt"`
	IsFavorite   bool            `json:"is_favorite"`
	ChatJSON     json.RawMessage `json:"chat_history"`
	CreatedAt    time.Time       `json:"created_at"`
}

type SummarizeRequest struct {
	URL          string `json:"url"`
	CustomPrompt string `json:"custom_prompt"`
	Force        bool   `json:"force"`
	AllVisual    bool   `json:"all_visual"`
}

// Captions decodes the stored caption JSON; a nil or invalid payload
// yields an empty slice.
func (v *Video) Captions() []CaptionSegment {
	var segs []CaptionSegment
	if len(v.CaptionsJSON) > 0 {
		json.Unmarshal(v.CaptionsJSON, &segs)
	}
	return segs
}

// Chapters decodes the stored chapter JSON.
func (v *Video) Chapters() []Chapter {
	var chs []Chapter
	if len(v.ChaptersJSON) > 0 {
		json.Unmarshal(v.ChaptersJSON, &chs)
	}
	return chs
}

// ChatHistory decodes the stored chat transcript.
func (v *Video) ChatHistory() []ChatMessage {
	var msgs []ChatMessage
	if len(v.ChatJSON) > 0 {
		json.Unmarshal(v.ChatJSON, &msgs)
	}
	return msgs
}

// HasSummary reports whether at least one language body is stored.
func (v *Video) HasSummary() bool {
	return (v.SummaryEN != nil && *v.SummaryEN != "") ||
		(v.SummaryZH != nil && *v.SummaryZH != "")
}
