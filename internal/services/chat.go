package services

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"

	"clipnotes-backend/internal/models"
)

// Chat answers a follow-up question about an already-summarized video. The
// full reply streams through onChunk as it is generated and is also
// returned whole so the caller can persist it. Frame images, when given,
// ride along as inline image parts.
func (s *Summarizer) Chat(ctx context.Context, video *models.Video, history []models.ChatMessage, message string, framePaths []string, onChunk func(string)) (string, error) {
	if !s.Enabled() {
		reply := "Chat is not configured on this server. Set GEMINI_API_KEY to enable follow-up questions."
		if onChunk != nil {
			onChunk(reply)
		}
		return reply, nil
	}

	if err := s.acquireRate(ctx); err != nil {
		return "", err
	}
	defer s.releaseRate()

	cs := s.model.StartChat()
	cs.History = buildChatHistory(video, history)

	parts := []genai.Part{genai.Text(message)}
	for _, path := range framePaths {
		data, err := os.ReadFile(path)
		if err != nil {
			// A missing frame image degrades the answer, not the request.
			continue
		}
		parts = append(parts, genai.ImageData("jpeg", data))
	}

	iter := cs.SendMessageStream(ctx, parts...)

	var full strings.Builder
	for {
		resp, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return "", fmt.Errorf("Gemini chat error: %w", err)
		}
		chunk := extractText(resp)
		if chunk == "" {
			continue
		}
		full.WriteString(chunk)
		if onChunk != nil {
			onChunk(chunk)
		}
	}

	reply := strings.TrimSpace(full.String())
	if reply == "" {
		return "", fmt.Errorf("Gemini returned empty chat reply")
	}
	return reply, nil
}

// buildChatHistory grounds the session in the stored summary, then replays
// the persisted conversation. The summary rides as the opening user turn
// because the shared model instance cannot carry per-request system
// instructions.
func buildChatHistory(video *models.Video, history []models.ChatMessage) []*genai.Content {
	var ctxText strings.Builder
	ctxText.WriteString("You are answering questions about this video. Ground every answer in the summary below; when citing a moment keep the [m:ss](#t=SECONDS) timestamp mark form.\n\n")
	ctxText.WriteString("Title: " + video.Title + "\n\n")
	if video.SummaryEN != nil && *video.SummaryEN != "" {
		ctxText.WriteString("Summary (English):\n" + *video.SummaryEN + "\n\n")
	}
	if video.SummaryZH != nil && *video.SummaryZH != "" {
		ctxText.WriteString("Summary (Chinese):\n" + *video.SummaryZH + "\n")
	}

	contents := []*genai.Content{
		{Role: "user", Parts: []genai.Part{genai.Text(ctxText.String())}},
		{Role: "model", Parts: []genai.Part{genai.Text("Understood. I will answer questions about this video based on its summary.")}},
	}

	for _, msg := range history {
		role := "user"
		if msg.Role == "assistant" {
			role = "model"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(msg.Content)},
		})
	}
	return contents
}
