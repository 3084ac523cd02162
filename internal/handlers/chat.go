package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"clipnotes-backend/internal/models"
)

type chatService interface {
	Chat(ctx context.Context, video *models.Video, history []models.ChatMessage, message string, framePaths []string, onChunk func(string)) (string, error)
}

type chatVideoRepository interface {
	GetByID(ctx context.Context, id string) (*models.Video, error)
	UpdateChat(ctx context.Context, id string, chatJSON []byte) error
}

type ChatHandler struct {
	videoRepo chatVideoRepository
	frameRepo frameRepository
	chat      chatService
	redis     *redis.Client
}

func NewChatHandler(videoRepo chatVideoRepository, frameRepo frameRepository, chat chatService, redisClient *redis.Client) *ChatHandler {
	return &ChatHandler{
		videoRepo: videoRepo,
		frameRepo: frameRepo,
		chat:      chat,
		redis:     redisClient,
	}
}

// ChatStreamChannel is the pub/sub channel carrying streamed chat chunks
// for one video's conversation.
func ChatStreamChannel(videoID string) string {
	return fmt.Sprintf("chat_stream:%s", videoID)
}

func (h *ChatHandler) publish(ctx context.Context, videoID string, msg models.WSMessage) {
	if h.redis == nil {
		return
	}
	data, _ := json.Marshal(msg)
	h.redis.Publish(ctx, ChatStreamChannel(videoID), string(data))
}

// Send runs one follow-up chat turn. Chunks stream out over pub/sub as
// they arrive; the full reply also comes back in the HTTP response. The
// assistant message is persisted only once the reply is complete.
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Message is required", r))
		return
	}

	video, err := h.videoRepo.GetByID(r.Context(), videoID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Video not found", r))
		return
	}
	if !video.HasSummary() {
		writeJSON(w, http.StatusConflict, errorResp("NO_SUMMARY", "Summarize the video before chatting about it", r))
		return
	}

	history := video.ChatHistory()

	var framePaths []string
	if req.AttachFrames {
		if frames, err := h.frameRepo.ListByVideo(r.Context(), videoID); err == nil {
			for _, f := range frames {
				framePaths = append(framePaths, f.ImagePath)
			}
		}
	}

	// The user's turn is durable even if the reply fails; the assistant
	// message lands only once the full reply exists.
	withUser := append(history, models.ChatMessage{
		Role: "user", Content: req.Message, Images: framePaths, CreatedAt: time.Now(),
	})
	if chatJSON, err := json.Marshal(withUser); err == nil {
		if err := h.videoRepo.UpdateChat(r.Context(), videoID, chatJSON); err != nil {
			log.Printf("failed to persist user message for %s: %v", videoID, err)
		}
	}

	reply, err := h.chat.Chat(r.Context(), video, history, req.Message, framePaths, func(chunk string) {
		h.publish(r.Context(), videoID, models.WSMessage{
			Type:    "chat_chunk",
			Payload: models.ChatChunk{VideoID: videoID, Chunk: chunk},
		})
	})
	if err != nil {
		log.Printf("chat for %s failed: %v", videoID, err)
		h.publish(r.Context(), videoID, models.WSMessage{
			Type:    "chat_error",
			Payload: models.ChatError{VideoID: videoID, Message: "Chat reply failed"},
		})
		writeJSON(w, http.StatusBadGateway, errorResp("CHAT_ERROR", "Chat reply failed", r))
		return
	}

	h.publish(r.Context(), videoID, models.WSMessage{
		Type:    "chat_done",
		Payload: models.ChatDone{VideoID: videoID},
	})

	full := append(withUser, models.ChatMessage{Role: "assistant", Content: reply, CreatedAt: time.Now()})
	chatJSON, _ := json.Marshal(full)
	if err := h.videoRepo.UpdateChat(r.Context(), videoID, chatJSON); err != nil {
		log.Printf("failed to persist chat for %s: %v", videoID, err)
	}

	writeJSON(w, http.StatusOK, models.ChatResponse{Reply: reply})
}

// History returns the persisted conversation for a video.
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")

	video, err := h.videoRepo.GetByID(r.Context(), videoID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Video not found", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"messages": video.ChatHistory(),
	})
}

// Clear wipes the conversation without touching the summary.
func (h *ChatHandler) Clear(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")

	if _, err := h.videoRepo.GetByID(r.Context(), videoID); err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Video not found", r))
		return
	}

	if err := h.videoRepo.UpdateChat(r.Context(), videoID, []byte("[]")); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to clear chat", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Chat cleared"})
}
