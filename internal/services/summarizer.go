package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"clipnotes-backend/internal/models"
	"clipnotes-backend/internal/timestamp"
)

// SummaryInput carries everything the model needs for one summary.
type SummaryInput struct {
	VideoID      string
	Title        string
	Captions     []models.CaptionSegment
	Chapters     []models.Chapter
	CustomPrompt string
	AllVisual    bool
}

// SummaryResult is the bilingual output pair. Language is the detected
// source language of the transcript ("en" or "zh").
type SummaryResult struct {
	MarkdownEN string
	MarkdownZH string
	Language   string
}

// Summarizer turns a caption transcript into a bilingual markdown summary
// studded with timestamp marks. With no API key configured it runs in
// placeholder mode so the rest of the pipeline stays exercisable.
type Summarizer struct {
	client   *genai.Client
	model    *genai.GenerativeModel
	maxChars int
	rateChan chan struct{} // Token bucket
}

func NewSummarizer(apiKey, modelName string, maxChars, concurrentReqs int) (*Summarizer, error) {
	if apiKey == "" {
		log.Println("GEMINI_API_KEY not set; summarizer running in placeholder mode")
		return &Summarizer{maxChars: maxChars}, nil
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0.3)
	model.SetTopP(0.95)

	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &Summarizer{
		client:   client,
		model:    model,
		maxChars: maxChars,
		rateChan: rateChan,
	}, nil
}

func (s *Summarizer) Close() {
	if s.client != nil {
		s.client.Close()
	}
}

// Enabled reports whether a real model is behind this summarizer.
func (s *Summarizer) Enabled() bool {
	return s.model != nil
}

func (s *Summarizer) acquireRate(ctx context.Context) error {
	select {
	case <-s.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Minute):
		return fmt.Errorf("timeout waiting for Gemini rate slot")
	}
}

func (s *Summarizer) releaseRate() {
	s.rateChan <- struct{}{}
}

// Generate produces the bilingual summary pair. API failures are returned
// to the caller as-is; there is no silent degradation once a key is set.
func (s *Summarizer) Generate(ctx context.Context, input SummaryInput) (*SummaryResult, error) {
	lang := DetectLanguage(transcriptText(input.Captions))

	if !s.Enabled() {
		return placeholderSummary(input, lang), nil
	}

	if err := s.acquireRate(ctx); err != nil {
		return nil, err
	}
	defer s.releaseRate()

	prompt := s.buildSummaryPrompt(input, lang)

	resp, err := s.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("Gemini API error: %w", err)
	}

	for i, cand := range resp.Candidates {
		if cand.FinishReason != genai.FinishReasonStop {
			log.Printf("WARNING: Gemini candidate %d stopped due to %s", i, cand.FinishReason)
		}
	}

	rawText := extractText(resp)
	if rawText == "" {
		return nil, fmt.Errorf("Gemini returned empty summary for %s", input.VideoID)
	}

	en, zh := parseSummaryJSON(rawText)
	return &SummaryResult{MarkdownEN: en, MarkdownZH: zh, Language: lang}, nil
}

// ──── Language detection ────

// DetectLanguage classifies a transcript as "zh" when at least 15% of the
// leading characters are Han, otherwise "en". Only a prefix is sampled;
// code-switching later in a video does not flip the result.
func DetectLanguage(text string) string {
	const sampleRunes = 2000

	total, han := 0, 0
	for _, r := range text {
		if unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsDigit(r) {
			continue
		}
		total++
		if unicode.Is(unicode.Han, r) {
			han++
		}
		if total >= sampleRunes {
			break
		}
	}

	if total > 0 && float64(han)/float64(total) >= 0.15 {
		return "zh"
	}
	return "en"
}

// ──── Prompt construction ────

func (s *Summarizer) buildSummaryPrompt(input SummaryInput, lang string) string {
	var b strings.Builder

	// Layer 1 — Role
	b.WriteString("You are an expert video content analyst. Your task is to write a structured markdown summary of the following video transcript, in two languages.\n\n")

	// Layer 2 — Timestamp mark contract
	b.WriteString("Timestamp marks: whenever you reference a moment in the video, cite it with one of exactly two forms:\n")
	b.WriteString("- [m:ss](#t=SECONDS) for a plain reference the reader can click to seek\n")
	b.WriteString("- [m:ss](#tv=SECONDS) for a moment where the picture itself matters (a chart, diagram, demo, or scene worth capturing as a still image)\n")
	b.WriteString("SECONDS is the integer offset from the start of the video, and the bracketed label is the same offset in clock form (use h:mm:ss past one hour). Example: [12:34](#t=754).\n")
	if input.AllVisual {
		b.WriteString("For this video, treat EVERY timestamp you cite as visual: always use the #tv= form.\n")
	} else {
		b.WriteString("Use #tv= sparingly; most references should be plain #t= marks.\n")
	}
	b.WriteString("Only cite timestamps that appear in the transcript anchors below. Never invent a timestamp past the end of the transcript.\n\n")

	// Layer 3 — Output contract
	b.WriteString("CRITICAL: Return ONLY a valid JSON object with exactly these fields. No preamble, no markdown fences, no trailing text:\n")
	b.WriteString(`{"markdown_en": "full English summary in markdown", "markdown_zh": "full Simplified Chinese summary in markdown"}` + "\n")
	b.WriteString("Both summaries carry the same structure and the same timestamp marks. Escape newlines inside the JSON strings.\n\n")

	// Layer 4 — Structure
	b.WriteString("Structure each summary as: a one-paragraph overview, then sections following the flow of the video with ### headings, each section containing bullet points with timestamp marks, then a short takeaways section.\n\n")

	// Layer 5 — Chapters
	if len(input.Chapters) > 0 {
		b.WriteString("The creator defined these chapters; align your sections with them:\n")
		for _, ch := range input.Chapters {
			b.WriteString(fmt.Sprintf("- %s %s\n", timestamp.Format(timestamp.Plain, int(ch.Start)), ch.Title))
		}
		b.WriteString("\n")
	}

	// Layer 6 — Custom instruction
	if input.CustomPrompt != "" {
		b.WriteString("Additional instruction from the user (follow it unless it conflicts with the rules above):\n")
		b.WriteString(input.CustomPrompt)
		b.WriteString("\n\n")
	}

	// Layer 7 — Source language hint
	if lang == "zh" {
		b.WriteString("The transcript is in Chinese; write markdown_zh first in quality, then an equally complete English rendering.\n\n")
	}

	// Layer 8 — Transcript with timing anchors
	if input.Title != "" {
		b.WriteString("Video title: " + input.Title + "\n\n")
	}
	b.WriteString("---TRANSCRIPT START---\n")
	b.WriteString(s.renderTranscript(input.Captions))
	b.WriteString("\n---TRANSCRIPT END---\n")

	return b.String()
}

// renderTranscript interleaves clock anchors with caption text so the model
// can cite accurate offsets, truncating from the middle when the transcript
// exceeds the character budget (the opening and closing of a video carry
// the most structure).
func (s *Summarizer) renderTranscript(captions []models.CaptionSegment) string {
	anchors := sampleAnchorSet(captions, 200)

	var b strings.Builder
	for i, seg := range captions {
		if _, ok := anchors[i]; ok {
			b.WriteString(fmt.Sprintf("\n[%s] ", timestamp.Clock(int(seg.Start))))
		}
		b.WriteString(seg.Text)
		b.WriteString(" ")
	}

	text := b.String()
	if s.maxChars > 0 && len(text) > s.maxChars {
		// Both cuts back off to a rune boundary; the prompt must stay
		// valid UTF-8 or the API rejects it.
		head := s.maxChars / 2
		for head > 0 && !utf8.RuneStart(text[head]) {
			head--
		}
		tail := len(text) - s.maxChars/2
		for tail < len(text) && !utf8.RuneStart(text[tail]) {
			tail++
		}
		text = text[:head] + "\n[... transcript truncated ...]\n" + text[tail:]
	}
	return text
}

// sampleAnchorSet picks up to n evenly spaced caption indexes to carry
// inline clock anchors.
func sampleAnchorSet(captions []models.CaptionSegment, n int) map[int]struct{} {
	set := make(map[int]struct{})
	if len(captions) == 0 || n <= 0 {
		return set
	}
	if len(captions) <= n {
		for i := range captions {
			set[i] = struct{}{}
		}
		return set
	}
	step := float64(len(captions)) / float64(n)
	for i := 0; i < n; i++ {
		set[int(float64(i)*step)] = struct{}{}
	}
	return set
}

func transcriptText(captions []models.CaptionSegment) string {
	var b strings.Builder
	for _, seg := range captions {
		b.WriteString(seg.Text)
		b.WriteString(" ")
	}
	return b.String()
}

// ──── Response parsing ────

// parseSummaryJSON unwraps the model's JSON envelope. Models wrap output in
// code fences or leak prose around the object often enough that we salvage
// the outermost {...} before giving up; as a last resort the raw text
// becomes the English summary so the user sees something rather than a 500.
func parseSummaryJSON(rawText string) (en, zh string) {
	cleaned := strings.TrimSpace(rawText)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var out struct {
		MarkdownEN string `json:"markdown_en"`
		MarkdownZH string `json:"markdown_zh"`
	}
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		start := strings.Index(cleaned, "{")
		end := strings.LastIndex(cleaned, "}")
		if start >= 0 && end > start {
			json.Unmarshal([]byte(cleaned[start:end+1]), &out)
		}
	}

	if out.MarkdownEN == "" && out.MarkdownZH == "" {
		return rawText, ""
	}
	return out.MarkdownEN, out.MarkdownZH
}

// ──── Placeholder mode ────

func placeholderSummary(input SummaryInput, lang string) *SummaryResult {
	title := input.Title
	if title == "" {
		title = input.VideoID
	}

	var marks []string
	for _, idx := range sortedKeys(sampleAnchorSet(input.Captions, 3)) {
		seg := input.Captions[idx]
		kind := timestamp.Plain
		if input.AllVisual {
			kind = timestamp.Visual
		}
		marks = append(marks, fmt.Sprintf("- %s %s", timestamp.Format(kind, int(seg.Start)), seg.Text))
	}

	en := fmt.Sprintf("## %s\n\n_Summarization is not configured on this server._\n\nTranscript excerpts:\n%s\n", title, strings.Join(marks, "\n"))
	zh := fmt.Sprintf("## %s\n\n_服务器未配置摘要功能。_\n\n字幕摘录:\n%s\n", title, strings.Join(marks, "\n"))
	return &SummaryResult{MarkdownEN: en, MarkdownZH: zh, Language: lang}
}

func sortedKeys(set map[int]struct{}) []int {
	keys := make([]int, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}
