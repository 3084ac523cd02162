package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"clipnotes-backend/internal/models"
	"clipnotes-backend/internal/services"
	"clipnotes-backend/internal/worker"
)

type videoRepository interface {
	Upsert(ctx context.Context, v *models.Video) error
	UpdateSummaries(ctx context.Context, id string, summaryEN, summaryZH string, customPrompt *string) error
	GetByID(ctx context.Context, id string) (*models.Video, error)
	List(ctx context.Context, search string, favoritesOnly bool, limit, offset int) ([]*models.Video, int, error)
	ToggleFavorite(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
}

type frameRepository interface {
	UpsertBatch(ctx context.Context, frames []models.Frame) error
	ListByVideo(ctx context.Context, videoID string) ([]models.Frame, error)
	DeleteByVideo(ctx context.Context, videoID string) error
}

type captionFetcher interface {
	Fetch(ctx context.Context, videoID string) ([]models.CaptionSegment, error)
}

type chapterFetcher interface {
	Fetch(ctx context.Context, videoID string) ([]models.Chapter, error)
}

type summaryGenerator interface {
	Generate(ctx context.Context, input services.SummaryInput) (*services.SummaryResult, error)
}

type metadataFetcher interface {
	FetchMetadata(ctx context.Context, videoID string) (title, thumbnailURL string)
}

type framePurger interface {
	Purge(videoID string) error
}

type VideoHandler struct {
	videoRepo  videoRepository
	frameRepo  frameRepository
	captions   captionFetcher
	chapters   chapterFetcher
	summarizer summaryGenerator
	media      metadataFetcher
	frames     framePurger
	redis      *redis.Client

	// One generation per video at a time; concurrent requests for the
	// same ID share the first caller's result.
	group singleflight.Group
}

func NewVideoHandler(
	videoRepo videoRepository,
	frameRepo frameRepository,
	captions captionFetcher,
	chapters chapterFetcher,
	summarizer summaryGenerator,
	media metadataFetcher,
	frames framePurger,
	redisClient *redis.Client,
) *VideoHandler {
	return &VideoHandler{
		videoRepo:  videoRepo,
		frameRepo:  frameRepo,
		captions:   captions,
		chapters:   chapters,
		summarizer: summarizer,
		media:      media,
		frames:     frames,
		redis:      redisClient,
	}
}

// Summarize is the main entry point: URL in, summarized video record out.
// A cached record short-circuits everything unless the caller forces a
// regeneration or supplies a custom instruction.
func (h *VideoHandler) Summarize(w http.ResponseWriter, r *http.Request) {
	var req models.SummarizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	videoID, err := services.ExtractVideoID(req.URL)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", err.Error(), r))
		return
	}

	// The flight may be shared by several waiters; detach it from the
	// first caller's request context so one disconnect cannot cancel
	// everyone's generation.
	ctx := context.WithoutCancel(r.Context())
	result, err, _ := h.group.Do(videoID, func() (interface{}, error) {
		return h.summarize(ctx, videoID, req)
	})
	if err != nil {
		switch e := err.(type) {
		case *summarizeError:
			writeJSON(w, e.status, errorResp(e.code, e.message, r))
		default:
			log.Printf("summarize %s failed: %v", videoID, err)
			writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to summarize video", r))
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type summarizeError struct {
	status  int
	code    string
	message string
}

func (e *summarizeError) Error() string { return e.message }

func (h *VideoHandler) summarize(ctx context.Context, videoID string, req models.SummarizeRequest) (*models.Video, error) {
	existing, _ := h.videoRepo.GetByID(ctx, videoID)

	// Cache hit: no force flag and no custom instruction means the stored
	// summary is exactly what the caller asked for.
	if existing != nil && existing.HasSummary() && !req.Force && req.CustomPrompt == "" {
		return existing, nil
	}

	// Regeneration reuses the stored transcript; only the summary and
	// frames are rebuilt.
	if existing != nil && len(existing.Captions()) > 0 {
		return h.generate(ctx, videoID, req,
			existing.Captions(), existing.Chapters(), existing.Title, existing.ThumbnailURL, true)
	}

	// Chapters and metadata are cheap page fetches; run them alongside the
	// caption chain, which can take minutes when it falls through to ASR.
	var (
		chapters     []models.Chapter
		title, thumb string
		wg           sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		chapters, _ = h.chapters.Fetch(ctx, videoID)
	}()
	go func() {
		defer wg.Done()
		title, thumb = h.media.FetchMetadata(ctx, videoID)
	}()

	captions, err := h.captions.Fetch(ctx, videoID)
	wg.Wait()
	if err != nil {
		return nil, &summarizeError{http.StatusUnprocessableEntity, "NO_CAPTIONS",
			"No captions could be obtained for this video"}
	}

	return h.generate(ctx, videoID, req, captions, chapters, title, thumb, false)
}

func (h *VideoHandler) generate(ctx context.Context, videoID string, req models.SummarizeRequest,
	captions []models.CaptionSegment, chapters []models.Chapter, title, thumb string, regen bool) (*models.Video, error) {

	// Old frames belong to old timestamps. Purge before generation so a
	// crash mid-way can never leave stale images next to a new summary.
	if regen {
		if err := h.frameRepo.DeleteByVideo(ctx, videoID); err != nil {
			return nil, err
		}
		if err := h.frames.Purge(videoID); err != nil {
			log.Printf("failed to purge frames for %s: %v", videoID, err)
		}
	}

	result, err := h.summarizer.Generate(ctx, services.SummaryInput{
		VideoID:      videoID,
		Title:        title,
		Captions:     captions,
		Chapters:     chapters,
		CustomPrompt: req.CustomPrompt,
		AllVisual:    req.AllVisual,
	})
	if err != nil {
		return nil, &summarizeError{http.StatusBadGateway, "SUMMARIZER_ERROR",
			"Summary generation failed"}
	}

	var customPrompt *string
	if req.CustomPrompt != "" {
		customPrompt = &req.CustomPrompt
	}

	var video *models.Video
	if regen {
		// Only the generated pair and its instruction change on a
		// regeneration; captions, chapters, the favorite flag, and the
		// chat transcript stay as stored.
		if err := h.videoRepo.UpdateSummaries(ctx, videoID, result.MarkdownEN, result.MarkdownZH, customPrompt); err != nil {
			return nil, err
		}
		video, err = h.videoRepo.GetByID(ctx, videoID)
		if err != nil {
			return nil, err
		}
	} else {
		captionsJSON, _ := json.Marshal(captions)
		chaptersJSON, _ := json.Marshal(chapters)

		video = &models.Video{
			ID:           videoID,
			Title:        title,
			ThumbnailURL: thumb,
			SummaryEN:    &result.MarkdownEN,
			SummaryZH:    &result.MarkdownZH,
			CaptionsJSON: captionsJSON,
			ChaptersJSON: chaptersJSON,
			CustomPrompt: customPrompt,
			ChatJSON:     []byte("[]"),
		}
		if err := h.videoRepo.Upsert(ctx, video); err != nil {
			return nil, err
		}
	}

	h.enqueueFramePrefetch(ctx, videoID, captions)

	return video, nil
}

// enqueueFramePrefetch hands frame extraction to the background pool so
// the summarize response never waits on ffmpeg.
func (h *VideoHandler) enqueueFramePrefetch(ctx context.Context, videoID string, captions []models.CaptionSegment) {
	if h.redis == nil {
		return
	}

	job := worker.FrameJob{
		VideoID:    videoID,
		MaxSeconds: maxMarkSeconds(captions),
	}
	payload, _ := json.Marshal(job)
	if err := h.redis.LPush(ctx, worker.FrameQueue, string(payload)).Err(); err != nil {
		log.Printf("failed to enqueue frame prefetch for %s: %v", videoID, err)
	}
}

// maxMarkSeconds is the latest second a timestamp mark may legally point
// at: the end of the last caption plus a small grace margin.
func maxMarkSeconds(captions []models.CaptionSegment) int {
	end := 0.0
	for _, seg := range captions {
		if seg.Start+seg.Dur > end {
			end = seg.Start + seg.Dur
		}
	}
	if end == 0 {
		return 0
	}
	return int(end) + 60
}

func (h *VideoHandler) Get(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")

	video, err := h.videoRepo.GetByID(r.Context(), videoID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Video not found", r))
		return
	}

	writeJSON(w, http.StatusOK, video)
}

func (h *VideoHandler) List(w http.ResponseWriter, r *http.Request) {
	search := r.URL.Query().Get("search")
	favoritesOnly := r.URL.Query().Get("favorites") == "true"
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	if limit <= 0 || limit > 50 {
		limit = 20
	}

	videos, total, err := h.videoRepo.List(r.Context(), search, favoritesOnly, limit, offset)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch videos", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"videos": videos,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *VideoHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")

	fav, err := h.videoRepo.ToggleFavorite(r.Context(), videoID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Video not found", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"is_favorite": fav})
}

// Delete removes the record and every derived artifact: frame rows first,
// then images on disk, then the video row itself.
func (h *VideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")

	if _, err := h.videoRepo.GetByID(r.Context(), videoID); err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Video not found", r))
		return
	}

	if err := h.frameRepo.DeleteByVideo(r.Context(), videoID); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to delete frames", r))
		return
	}
	if err := h.frames.Purge(videoID); err != nil {
		log.Printf("failed to remove frame images for %s: %v", videoID, err)
	}
	if err := h.videoRepo.Delete(r.Context(), videoID); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to delete video", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Video deleted"})
}
