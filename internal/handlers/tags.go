package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"clipnotes-backend/internal/models"
)

type tagRepository interface {
	GetOrCreate(ctx context.Context, name string) (*models.Tag, error)
	List(ctx context.Context) ([]models.Tag, error)
	ListByVideo(ctx context.Context, videoID string) ([]models.Tag, error)
	ListVideos(ctx context.Context, tagID uuid.UUID) ([]*models.Video, error)
	Attach(ctx context.Context, videoID string, tagID uuid.UUID) error
	Detach(ctx context.Context, videoID string, tagID uuid.UUID) error
	Delete(ctx context.Context, tagID uuid.UUID) error
}

type TagHandler struct {
	tagRepo   tagRepository
	videoRepo videoGetter
}

func NewTagHandler(tagRepo tagRepository, videoRepo videoGetter) *TagHandler {
	return &TagHandler{tagRepo: tagRepo, videoRepo: videoRepo}
}

func (h *TagHandler) List(w http.ResponseWriter, r *http.Request) {
	tags, err := h.tagRepo.List(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch tags", r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tags": tags})
}

// ListVideos returns the videos carrying a tag.
func (h *TagHandler) ListVideos(w http.ResponseWriter, r *http.Request) {
	tagID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid tag ID", r))
		return
	}

	videos, err := h.tagRepo.ListVideos(r.Context(), tagID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch videos", r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"videos": videos})
}

func (h *TagHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tagID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid tag ID", r))
		return
	}

	if err := h.tagRepo.Delete(r.Context(), tagID); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to delete tag", r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Tag deleted"})
}

func (h *TagHandler) ListForVideo(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")

	tags, err := h.tagRepo.ListByVideo(r.Context(), videoID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch tags", r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tags": tags})
}

// Attach tags a video, creating the tag on first use.
func (h *TagHandler) Attach(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	req.Name = strings.TrimSpace(strings.ToLower(req.Name))
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Tag name is required", r))
		return
	}

	if _, err := h.videoRepo.GetByID(r.Context(), videoID); err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Video not found", r))
		return
	}

	tag, err := h.tagRepo.GetOrCreate(r.Context(), req.Name)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create tag", r))
		return
	}

	if err := h.tagRepo.Attach(r.Context(), videoID, tag.ID); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to attach tag", r))
		return
	}

	writeJSON(w, http.StatusOK, tag)
}

func (h *TagHandler) Detach(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")
	tagID, err := uuid.Parse(chi.URLParam(r, "tagID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid tag ID", r))
		return
	}

	if err := h.tagRepo.Detach(r.Context(), videoID, tagID); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to detach tag", r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Tag removed"})
}
