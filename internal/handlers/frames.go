package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"clipnotes-backend/internal/models"
)

type frameExtractor interface {
	Extract(ctx context.Context, videoID, markdown string, maxSeconds int) ([]models.Frame, error)
	Purge(videoID string) error
}

type videoGetter interface {
	GetByID(ctx context.Context, id string) (*models.Video, error)
}

type FrameHandler struct {
	videoRepo videoGetter
	frameRepo frameRepository
	frames    frameExtractor
}

func NewFrameHandler(videoRepo videoGetter, frameRepo frameRepository, frames frameExtractor) *FrameHandler {
	return &FrameHandler{
		videoRepo: videoRepo,
		frameRepo: frameRepo,
		frames:    frames,
	}
}

type frameResponse struct {
	Timestamp int    `json:"timestamp"`
	URL       string `json:"url"`
}

func frameResponses(frames []models.Frame) []frameResponse {
	out := make([]frameResponse, 0, len(frames))
	for _, f := range frames {
		out = append(out, frameResponse{
			Timestamp: f.Timestamp,
			URL:       fmt.Sprintf("/frames/%s/%d.jpg", f.VideoID, f.Timestamp),
		})
	}
	return out
}

// Extract materializes the summary's visual marks as still images. Stored
// frames short-circuit: a second call for the same summary never touches
// ffmpeg again.
func (h *FrameHandler) Extract(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")

	cached, err := h.frameRepo.ListByVideo(r.Context(), videoID)
	if err == nil && len(cached) > 0 {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"frames": frameResponses(cached),
			"cached": true,
		})
		return
	}

	video, err := h.videoRepo.GetByID(r.Context(), videoID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Video not found", r))
		return
	}
	if !video.HasSummary() {
		writeJSON(w, http.StatusConflict, errorResp("NO_SUMMARY", "Video has no summary to extract frames from", r))
		return
	}

	markdown := ""
	if video.SummaryEN != nil {
		markdown = *video.SummaryEN
	}
	if markdown == "" && video.SummaryZH != nil {
		markdown = *video.SummaryZH
	}

	frames, err := h.frames.Extract(r.Context(), videoID, markdown, maxMarkSeconds(video.Captions()))
	if err != nil {
		writeJSON(w, http.StatusBadGateway, errorResp("EXTRACTION_ERROR", "Frame extraction failed", r))
		return
	}

	if err := h.frameRepo.UpsertBatch(r.Context(), frames); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to record frames", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"frames": frameResponses(frames),
		"cached": false,
	})
}

func (h *FrameHandler) List(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")

	frames, err := h.frameRepo.ListByVideo(r.Context(), videoID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch frames", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"frames": frameResponses(frames),
	})
}
