package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	yt "github.com/kkdai/youtube/v2"
)

// MediaService resolves direct, seekable stream URLs for a video and wraps
// the ffmpeg invocations that consume them. Nothing here downloads a full
// video file: audio is transcoded from the stream, frames are seek-grabbed.
type MediaService struct {
	ytClient   *yt.Client
	httpClient *http.Client
	runner     CommandRunner
	ffmpegBin  string
}

func NewMediaService(runner CommandRunner, ffmpegBin string) *MediaService {
	return &MediaService{
		ytClient:   &yt.Client{},
		httpClient: &http.Client{Timeout: 15 * time.Second},
		runner:     runner,
		ffmpegBin:  ffmpegBin,
	}
}

// ResolveAudioStreamURL returns a direct URL for the best audio-only stream.
func (s *MediaService) ResolveAudioStreamURL(ctx context.Context, videoID string) (string, error) {
	video, err := s.ytClient.GetVideoContext(ctx, videoID)
	if err != nil {
		return "", fmt.Errorf("failed to fetch video metadata: %w", err)
	}

	formats := video.Formats.WithAudioChannels()
	if len(formats) == 0 {
		return "", fmt.Errorf("no audio formats available for %s", videoID)
	}

	best := formats[0]
	for _, f := range formats {
		// Prefer audio-only streams; among those, highest bitrate.
		bestAudioOnly := strings.HasPrefix(best.MimeType, "audio/")
		fAudioOnly := strings.HasPrefix(f.MimeType, "audio/")
		if fAudioOnly && !bestAudioOnly {
			best = f
			continue
		}
		if fAudioOnly == bestAudioOnly && f.Bitrate > best.Bitrate {
			best = f
		}
	}

	streamURL, err := s.ytClient.GetStreamURLContext(ctx, video, &best)
	if err != nil {
		return "", fmt.Errorf("failed to resolve audio stream URL: %w", err)
	}
	if streamURL == "" {
		return "", fmt.Errorf("resolver returned empty stream URL for %s", videoID)
	}
	return streamURL, nil
}

// ResolveVideoStreamURL returns a direct URL for a muxed video stream capped
// at 720p, which is plenty for frame grabs and keeps seeks cheap.
func (s *MediaService) ResolveVideoStreamURL(ctx context.Context, videoID string) (string, error) {
	video, err := s.ytClient.GetVideoContext(ctx, videoID)
	if err != nil {
		return "", fmt.Errorf("failed to fetch video metadata: %w", err)
	}

	var best *yt.Format
	bestHeight := 0
	for i := range video.Formats {
		f := &video.Formats[i]
		if !strings.HasPrefix(f.MimeType, "video/") {
			continue
		}
		h := qualityHeight(f.QualityLabel)
		if h == 0 || h > 720 {
			continue
		}
		// Muxed streams (with audio) decode standalone; prefer them.
		if best == nil || h > bestHeight || (h == bestHeight && f.AudioChannels > 0 && best.AudioChannels == 0) {
			best = f
			bestHeight = h
		}
	}
	if best == nil {
		return "", fmt.Errorf("no suitable video format (<=720p) for %s", videoID)
	}

	streamURL, err := s.ytClient.GetStreamURLContext(ctx, video, best)
	if err != nil {
		return "", fmt.Errorf("failed to resolve video stream URL: %w", err)
	}
	if streamURL == "" {
		return "", fmt.Errorf("resolver returned empty stream URL for %s", videoID)
	}
	return streamURL, nil
}

func qualityHeight(label string) int {
	// Labels look like "720p", "720p60", "1080p".
	label = strings.TrimSpace(label)
	end := 0
	for end < len(label) && label[end] >= '0' && label[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	h, err := strconv.Atoi(label[:end])
	if err != nil {
		return 0
	}
	return h
}

// ExtractAudio transcodes the stream's audio track to 16 kHz mono WAV, the
// input format the speech recognizer expects.
func (s *MediaService) ExtractAudio(ctx context.Context, streamURL, outPath string) error {
	args := []string{
		"-y",
		"-i", streamURL,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-f", "wav",
		outPath,
	}
	if _, err := s.runner.Run(ctx, s.ffmpegBin, args...); err != nil {
		return fmt.Errorf("audio extraction failed: %w", err)
	}
	return nil
}

// GrabFrame seeks to the given second and writes exactly one still image.
// Seeking before the input keeps this fast against remote URLs.
func (s *MediaService) GrabFrame(ctx context.Context, streamURL string, seconds int, outPath string) error {
	args := []string{
		"-y",
		"-ss", strconv.Itoa(seconds),
		"-i", streamURL,
		"-frames:v", "1",
		"-q:v", "2",
		outPath,
	}
	if _, err := s.runner.Run(ctx, s.ffmpegBin, args...); err != nil {
		return fmt.Errorf("frame grab at %ds failed: %w", seconds, err)
	}
	return nil
}

// FetchMetadata returns the video title and thumbnail via oEmbed, with
// usable defaults when the lookup fails.
func (s *MediaService) FetchMetadata(ctx context.Context, videoID string) (title, thumbnailURL string) {
	title = "YouTube Video"
	thumbnailURL = "https://img.youtube.com/vi/" + videoID + "/maxresdefault.jpg"

	oembedURL := "https://www.youtube.com/oembed?url=https://www.youtube.com/watch?v=" + videoID + "&format=json"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, oembedURL, nil)
	if err != nil {
		return
	}

	resp, err := s.httpClient.Do(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		if resp != nil {
			resp.Body.Close()
		}
		return
	}
	defer resp.Body.Close()

	var oembed struct {
		Title        string `json:"title"`
		ThumbnailURL string `json:"thumbnail_url"`
	}
	if json.NewDecoder(resp.Body).Decode(&oembed) != nil {
		return
	}

	if oembed.Title != "" {
		title = oembed.Title
	}
	if oembed.ThumbnailURL != "" {
		thumbnailURL = oembed.ThumbnailURL
	}
	return
}
