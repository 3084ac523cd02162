package services

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	ytapi "github.com/hightemp/youtube-transcript-api-go/api"

	"clipnotes-backend/internal/models"
	"clipnotes-backend/internal/timestamp"
)

// audioSource is the slice of MediaService that Tier 3 needs.
type audioSource interface {
	ResolveAudioStreamURL(ctx context.Context, videoID string) (string, error)
	ExtractAudio(ctx context.Context, streamURL, outPath string) error
}

// CaptionService resolves a video ID to timed caption segments through an
// ordered provider chain:
//
//	Tier 1: platform-native captions (transcript API, then timedtext scrape)
//	Tier 2: external helper subprocess emitting the same JSON shape
//	Tier 3: stream audio -> local speech recognizer (hard failure, no fallback)
//
// Tiers 1-2 swallow their errors; only after Tier 3 does Fetch return one.
type CaptionService struct {
	transcriptAPI *ytapi.YouTubeTranscriptApi
	httpClient    *http.Client
	audio         audioSource
	runner        CommandRunner

	pythonBin    string
	scriptPath   string
	whisperBin   string
	whisperModel string

	tierTimeout time.Duration
	asrTimeout  time.Duration
}

func NewCaptionService(audio audioSource, runner CommandRunner, pythonBin, scriptPath, whisperBin, whisperModel string, tierTimeout, asrTimeout time.Duration) *CaptionService {
	return &CaptionService{
		transcriptAPI: ytapi.NewYouTubeTranscriptApi(),
		httpClient:    &http.Client{Timeout: tierTimeout},
		audio:         audio,
		runner:        runner,
		pythonBin:     pythonBin,
		scriptPath:    scriptPath,
		whisperBin:    whisperBin,
		whisperModel:  whisperModel,
		tierTimeout:   tierTimeout,
		asrTimeout:    asrTimeout,
	}
}

// Fetch returns a non-empty, time-ordered segment sequence or an error
// after all tiers are exhausted.
func (s *CaptionService) Fetch(ctx context.Context, videoID string) ([]models.CaptionSegment, error) {
	segs := s.fetchNative(ctx, videoID)

	if len(segs) == 0 {
		segs = s.fetchViaScript(ctx, videoID)
	}

	if len(segs) == 0 {
		transcribed, err := s.transcribe(ctx, videoID)
		if err != nil {
			return nil, fmt.Errorf("no captions available for %s and transcription failed: %w", videoID, err)
		}
		segs = transcribed
	}

	if len(segs) == 0 {
		return nil, fmt.Errorf("no captions available for %s", videoID)
	}

	sort.SliceStable(segs, func(i, j int) bool { return segs[i].Start < segs[j].Start })
	return segs, nil
}

// ──── Tier 1: platform-native captions ────

func (s *CaptionService) fetchNative(ctx context.Context, videoID string) []models.CaptionSegment {
	ctx, cancel := context.WithTimeout(ctx, s.tierTimeout)
	defer cancel()

	segs, err := s.fetchViaTranscriptAPI(ctx, videoID)
	if err == nil && len(segs) > 0 {
		return segs
	}

	segs, legacyErr := s.fetchViaTimedText(ctx, videoID)
	if legacyErr != nil {
		log.Printf("Tier 1 captions unavailable for %s: transcript API (%v), timedtext (%v)", videoID, err, legacyErr)
		return nil
	}
	return segs
}

// fetchViaTranscriptAPI wraps the transcript library, which takes no
// context, in runBounded so a stalled call cannot hold the tier open past
// its deadline.
func (s *CaptionService) fetchViaTranscriptAPI(ctx context.Context, videoID string) ([]models.CaptionSegment, error) {
	return runBounded(ctx, func() ([]models.CaptionSegment, error) {
		transcript, err := s.transcriptAPI.GetTranscript(videoID, []string{"en", "en-US", "en-GB", "zh-Hans", "zh-CN"})
		if err != nil {
			// Any available language beats none.
			transcript, err = s.transcriptAPI.GetTranscript(videoID, nil)
		}
		if err != nil {
			return nil, err
		}
		if transcript == nil || len(transcript.Entries) == 0 {
			return nil, fmt.Errorf("subtitle track is empty")
		}

		segs := make([]models.CaptionSegment, 0, len(transcript.Entries))
		for _, entry := range transcript.Entries {
			segs = append(segs, models.CaptionSegment{
				Start: entry.Start,
				Dur:   entry.Duration,
				Text:  strings.TrimSpace(entry.Text),
			})
		}
		return segs, nil
	})
}

// runBounded runs fn on its own goroutine and abandons it once ctx is
// done. For calls that expose no cancellation hook of their own; the
// goroutine finishes in the background and its result is discarded.
func runBounded(ctx context.Context, fn func() ([]models.CaptionSegment, error)) ([]models.CaptionSegment, error) {
	type result struct {
		segs []models.CaptionSegment
		err  error
	}

	ch := make(chan result, 1)
	go func() {
		segs, err := fn()
		ch <- result{segs, err}
	}()

	select {
	case res := <-ch:
		return res.segs, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type timedTextXML struct {
	XMLName xml.Name  `xml:"transcript"`
	Texts   []textXML `xml:"text"`
}

type textXML struct {
	Start string `xml:"start,attr"`
	Dur   string `xml:"dur,attr"`
	Text  string `xml:",chardata"`
}

func (s *CaptionService) fetchViaTimedText(ctx context.Context, videoID string) ([]models.CaptionSegment, error) {
	pageURL := fmt.Sprintf("https://www.youtube.com/watch?v=%s", videoID)
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch YouTube page: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read YouTube page: %w", err)
	}

	captionURL, err := extractCaptionURL(string(body))
	if err != nil {
		return nil, err
	}

	captionReq, _ := http.NewRequestWithContext(ctx, http.MethodGet, captionURL, nil)
	captionResp, err := s.httpClient.Do(captionReq)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch captions: %w", err)
	}
	defer captionResp.Body.Close()

	captionBody, err := io.ReadAll(captionResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read captions: %w", err)
	}

	return parseCaptionsXML(captionBody)
}

func extractCaptionURL(pageHTML string) (string, error) {
	re := regexp.MustCompile(`"captionTracks"\s*:\s*\[(.*?)\],\s*"`)
	matches := re.FindStringSubmatch(pageHTML)
	if len(matches) < 2 {
		re2 := regexp.MustCompile(`"playerCaptionsTracklistRenderer"\s*:\s*\{(?:.*?,)?\s*"captionTracks"\s*:\s*\[(.*?)\],\s*"`)
		matches = re2.FindStringSubmatch(pageHTML)
		if len(matches) < 2 {
			return "", fmt.Errorf("no captions available for this video")
		}
	}

	tracksJSON := matches[1]
	reURL := regexp.MustCompile(`"baseUrl"\s*:\s*"(.*?)"`)
	urlMatches := reURL.FindStringSubmatch(tracksJSON)
	if len(urlMatches) < 2 {
		return "", fmt.Errorf("caption track found but baseUrl missing")
	}

	u := urlMatches[1]
	u = strings.ReplaceAll(u, `\u0026`, "&")
	u = strings.ReplaceAll(u, `\/`, "/")

	return u, nil
}

func parseCaptionsXML(data []byte) ([]models.CaptionSegment, error) {
	var tt timedTextXML
	if err := xml.Unmarshal(data, &tt); err != nil {
		return nil, err
	}

	var segs []models.CaptionSegment
	for _, t := range tt.Texts {
		start, err := strconv.ParseFloat(t.Start, 64)
		if err != nil {
			continue
		}
		// Zero-duration segments are legal; a missing attribute means zero.
		dur, _ := strconv.ParseFloat(t.Dur, 64)

		segs = append(segs, models.CaptionSegment{
			Start: start,
			Dur:   dur,
			Text:  strings.TrimSpace(html.UnescapeString(t.Text)),
		})
	}

	if len(segs) == 0 {
		return nil, fmt.Errorf("captions XML empty")
	}
	return segs, nil
}

// ──── Tier 2: helper subprocess ────

func (s *CaptionService) fetchViaScript(ctx context.Context, videoID string) []models.CaptionSegment {
	ctx, cancel := context.WithTimeout(ctx, s.tierTimeout)
	defer cancel()

	out, err := s.runner.Run(ctx, s.pythonBin, s.scriptPath, videoID)
	if err != nil {
		log.Printf("Tier 2 caption helper failed for %s: %v", videoID, err)
		return nil
	}

	segs, err := parseScriptCaptions(out)
	if err != nil {
		log.Printf("Tier 2 caption helper output unparsable for %s: %v", videoID, err)
		return nil
	}
	return segs
}

func parseScriptCaptions(out []byte) ([]models.CaptionSegment, error) {
	var segs []models.CaptionSegment
	if err := json.Unmarshal(out, &segs); err != nil {
		return nil, fmt.Errorf("expected JSON array of {start,dur,text}: %w", err)
	}
	return segs, nil
}

// ──── Tier 3: local speech recognition ────

func (s *CaptionService) transcribe(ctx context.Context, videoID string) ([]models.CaptionSegment, error) {
	ctx, cancel := context.WithTimeout(ctx, s.asrTimeout)
	defer cancel()

	streamURL, err := s.audio.ResolveAudioStreamURL(ctx, videoID)
	if err != nil {
		return nil, err
	}

	// The temp dir is owned by this request and always removed.
	tmpDir, err := os.MkdirTemp("", "clipnotes-asr-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	audioPath := filepath.Join(tmpDir, "audio.wav")
	if err := s.audio.ExtractAudio(ctx, streamURL, audioPath); err != nil {
		return nil, err
	}

	outBase := filepath.Join(tmpDir, "transcript")
	_, err = s.runner.Run(ctx, s.whisperBin,
		"-m", s.whisperModel,
		"-f", audioPath,
		"-oj",
		"-of", outBase,
	)
	if err != nil {
		return nil, fmt.Errorf("speech recognizer failed: %w", err)
	}

	raw, err := os.ReadFile(outBase + ".json")
	if err != nil {
		return nil, fmt.Errorf("speech recognizer wrote no output: %w", err)
	}

	segs, err := parseWhisperOutput(raw)
	if err != nil {
		return nil, err
	}
	if len(segs) == 0 {
		return nil, fmt.Errorf("speech recognizer produced no usable segments")
	}
	return segs, nil
}

// parseWhisperOutput converts the recognizer's JSON (clock-format
// "hh:mm:ss,fff" timestamps per segment) into caption segments, using the
// shared floor-to-millisecond conversion rule.
func parseWhisperOutput(raw []byte) ([]models.CaptionSegment, error) {
	var out struct {
		Transcription []struct {
			Timestamps struct {
				From string `json:"from"`
				To   string `json:"to"`
			} `json:"timestamps"`
			Text string `json:"text"`
		} `json:"transcription"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to parse recognizer output: %w", err)
	}

	var segs []models.CaptionSegment
	for _, t := range out.Transcription {
		start, err := timestamp.ToSeconds(t.Timestamps.From)
		if err != nil {
			continue
		}
		end, err := timestamp.ToSeconds(t.Timestamps.To)
		if err != nil || end < start {
			end = start
		}

		segs = append(segs, models.CaptionSegment{
			Start: start,
			Dur:   end - start,
			Text:  strings.TrimSpace(t.Text),
		})
	}
	return segs, nil
}
