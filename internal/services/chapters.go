package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"clipnotes-backend/internal/models"
)

// ChapterService scrapes creator-defined chapters from the watch page.
// Many videos have none; an empty list is a normal result, not an error.
type ChapterService struct {
	httpClient *http.Client
}

func NewChapterService(timeout time.Duration) *ChapterService {
	return &ChapterService{
		httpClient: &http.Client{Timeout: timeout},
	}
}

var (
	chapterRe  = regexp.MustCompile(`"chapterRenderer":\{"title":\{"simpleText":"(.*?)"\},"timeRangeStartMillis":(\d+)`)
	durationRe = regexp.MustCompile(`"lengthSeconds":"(\d+)"`)
)

func (s *ChapterService) Fetch(ctx context.Context, videoID string) ([]models.Chapter, error) {
	pageURL := fmt.Sprintf("https://www.youtube.com/watch?v=%s", videoID)
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch YouTube page: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read YouTube page: %w", err)
	}

	return parseChapters(string(body)), nil
}

// parseChapters extracts ordered, non-overlapping chapters from page HTML.
// Each chapter ends where the next begins; the last ends at the video
// duration when the page exposes it.
func parseChapters(pageHTML string) []models.Chapter {
	matches := chapterRe.FindAllStringSubmatch(pageHTML, -1)
	if len(matches) == 0 {
		return nil
	}

	videoEnd := 0.0
	if m := durationRe.FindStringSubmatch(pageHTML); len(m) > 1 {
		if secs, err := strconv.Atoi(m[1]); err == nil {
			videoEnd = float64(secs)
		}
	}

	var chapters []models.Chapter
	for _, m := range matches {
		millis, err := strconv.ParseInt(m[2], 10, 64)
		if err != nil {
			continue
		}
		chapters = append(chapters, models.Chapter{
			Title: unescapeJSONString(m[1]),
			Start: float64(millis) / 1000,
		})
	}

	for i := range chapters {
		if i+1 < len(chapters) {
			chapters[i].End = chapters[i+1].Start
		} else if videoEnd > chapters[i].Start {
			chapters[i].End = videoEnd
		} else {
			chapters[i].End = chapters[i].Start
		}
	}

	return chapters
}

var jsonEscapeRe = regexp.MustCompile(`\\u([0-9a-fA-F]{4})`)

func unescapeJSONString(s string) string {
	s = jsonEscapeRe.ReplaceAllStringFunc(s, func(esc string) string {
		code, err := strconv.ParseInt(esc[2:], 16, 32)
		if err != nil {
			return esc
		}
		return string(rune(code))
	})
	s = regexp.MustCompile(`\\(["\\/])`).ReplaceAllString(s, "$1")
	return s
}
