package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"clipnotes-backend/internal/models"
	"clipnotes-backend/internal/timestamp"
)

// videoSource is the slice of MediaService that frame extraction needs.
type videoSource interface {
	ResolveVideoStreamURL(ctx context.Context, videoID string) (string, error)
	GrabFrame(ctx context.Context, streamURL string, seconds int, outPath string) error
}

// FrameService turns the visual marks embedded in a summary into still
// images on disk. It never downloads the video; each frame is a single
// seek-and-grab against a direct stream URL.
type FrameService struct {
	media       videoSource
	storagePath string
	threshold   int
	maxFrames   int
}

func NewFrameService(media videoSource, storagePath string, threshold, maxFrames int) *FrameService {
	return &FrameService{
		media:       media,
		storagePath: storagePath,
		threshold:   threshold,
		maxFrames:   maxFrames,
	}
}

// FramesDir returns the directory holding a video's extracted frames.
func (s *FrameService) FramesDir(videoID string) string {
	return filepath.Join(s.storagePath, "frames", videoID)
}

// Extract parses visual marks out of the summary markdown, collapses
// near-duplicates, caps the batch, and grabs one JPEG per surviving
// timestamp. Marks beyond maxSeconds are dropped (the model sometimes
// hallucinates timestamps past the end of the video); pass a
// non-positive maxSeconds to skip that check. A single failed grab is
// logged and skipped, never fatal.
func (s *FrameService) Extract(ctx context.Context, videoID, markdown string, maxSeconds int) ([]models.Frame, error) {
	visuals := timestamp.Visuals(markdown)
	if maxSeconds > 0 {
		kept := visuals[:0]
		for _, ts := range visuals {
			if ts <= maxSeconds {
				kept = append(kept, ts)
			}
		}
		visuals = kept
	}

	visuals = timestamp.Dedup(visuals, s.threshold)
	if len(visuals) > s.maxFrames {
		visuals = visuals[:s.maxFrames]
	}
	if len(visuals) == 0 {
		return nil, nil
	}

	streamURL, err := s.media.ResolveVideoStreamURL(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve stream for frame extraction: %w", err)
	}

	dir := s.FramesDir(videoID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create frames dir: %w", err)
	}

	var frames []models.Frame
	for _, ts := range visuals {
		outPath := filepath.Join(dir, strconv.Itoa(ts)+".jpg")
		if err := s.media.GrabFrame(ctx, streamURL, ts, outPath); err != nil {
			log.Printf("Skipping frame at %ds for %s: %v", ts, videoID, err)
			continue
		}
		frames = append(frames, models.Frame{
			VideoID:   videoID,
			Timestamp: ts,
			ImagePath: outPath,
		})
	}
	return frames, nil
}

// Purge removes every stored frame image for a video. Used both when a
// summary is regenerated (old timestamps no longer match) and when the
// video record is deleted.
func (s *FrameService) Purge(videoID string) error {
	if err := os.RemoveAll(s.FramesDir(videoID)); err != nil {
		return fmt.Errorf("failed to remove frames dir: %w", err)
	}
	return nil
}
