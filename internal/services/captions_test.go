package services

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"clipnotes-backend/internal/models"
)

type fakeRunner struct {
	fn func(ctx context.Context, name string, args ...string) ([]byte, error)
}

func (f fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return f.fn(ctx, name, args...)
}

type fakeAudio struct {
	resolveErr error
	extractErr error
}

func (f fakeAudio) ResolveAudioStreamURL(ctx context.Context, videoID string) (string, error) {
	if f.resolveErr != nil {
		return "", f.resolveErr
	}
	return "https://stream.example/audio", nil
}

func (f fakeAudio) ExtractAudio(ctx context.Context, streamURL, outPath string) error {
	return f.extractErr
}

func newTestCaptionService(audio audioSource, runner CommandRunner) *CaptionService {
	return NewCaptionService(audio, runner, "python3", "scripts/fetch_captions.py", "whisper-cli", "model.bin", 5*time.Second, time.Minute)
}

func TestRunBounded(t *testing.T) {
	segs, err := runBounded(context.Background(), func() ([]models.CaptionSegment, error) {
		return []models.CaptionSegment{{Start: 1, Text: "hi"}}, nil
	})
	if err != nil || len(segs) != 1 {
		t.Fatalf("expected passthrough result, got (%+v, %v)", segs, err)
	}
}

func TestRunBounded_AbandonsStalledCall(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	release := make(chan struct{})
	defer close(release)

	start := time.Now()
	_, err := runBounded(ctx, func() ([]models.CaptionSegment, error) {
		<-release
		return nil, nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("stalled call held the tier past its deadline")
	}
}

func TestParseCaptionsXML(t *testing.T) {
	data := []byte(`<?xml version="1.0" encoding="utf-8"?>
<transcript>
  <text start="0.12" dur="3.5">Hello &amp; welcome</text>
  <text start="3.62">No duration attribute</text>
  <text start="7.0" dur="2.0">Third</text>
</transcript>`)

	segs, err := parseCaptionsXML(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(segs) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(segs))
	}
	if segs[0].Text != "Hello & welcome" {
		t.Errorf("entities not unescaped: %q", segs[0].Text)
	}
	if segs[0].Start != 0.12 || segs[0].Dur != 3.5 {
		t.Errorf("segment 0 timing wrong: %+v", segs[0])
	}
	if segs[1].Dur != 0 {
		t.Errorf("missing dur should parse as zero, got %v", segs[1].Dur)
	}
}

func TestParseCaptionsXML_Empty(t *testing.T) {
	if _, err := parseCaptionsXML([]byte(`<transcript></transcript>`)); err == nil {
		t.Error("expected error for empty transcript")
	}
}

func TestExtractCaptionURL(t *testing.T) {
	pageHTML := `..."captionTracks":[{"baseUrl":"https:\/\/www.youtube.com\/api\/timedtext?v=abc&lang=en","name":{"simpleText":"English"}}],"audioTracks"...`

	u, err := extractCaptionURL(pageHTML)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "https://www.youtube.com/api/timedtext?v=abc&lang=en"
	if u != want {
		t.Errorf("got %q, want %q", u, want)
	}
}

func TestExtractCaptionURL_NoTracks(t *testing.T) {
	if _, err := extractCaptionURL(`<html>nothing relevant</html>`); err == nil {
		t.Error("expected error when no caption tracks present")
	}
}

func TestParseScriptCaptions(t *testing.T) {
	out := []byte(`[{"start":1.5,"dur":2.0,"text":"first"},{"start":3.5,"dur":1.0,"text":"second"}]`)
	segs, err := parseScriptCaptions(out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(segs) != 2 || segs[0].Start != 1.5 || segs[1].Text != "second" {
		t.Errorf("unexpected segments: %+v", segs)
	}
}

func TestParseScriptCaptions_Invalid(t *testing.T) {
	if _, err := parseScriptCaptions([]byte(`Traceback (most recent call last):`)); err == nil {
		t.Error("expected error for non-JSON helper output")
	}
}

func TestFetchViaScript_RunnerFailure(t *testing.T) {
	svc := newTestCaptionService(fakeAudio{}, fakeRunner{
		fn: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return nil, errors.New("exit status 1")
		},
	})
	if segs := svc.fetchViaScript(context.Background(), "dQw4w9WgXcQ"); segs != nil {
		t.Errorf("expected nil on runner failure, got %+v", segs)
	}
}

func TestParseWhisperOutput(t *testing.T) {
	raw := []byte(`{"transcription":[
		{"timestamps":{"from":"00:00:00,000","to":"00:00:02,500"},"text":" Hello there."},
		{"timestamps":{"from":"00:00:02,500","to":"00:00:06,250"},"text":" Second segment."},
		{"timestamps":{"from":"bogus","to":"00:00:06,000"},"text":"dropped"},
		{"timestamps":{"from":"00:01:00,000","to":"00:00:30,000"},"text":"clamped"}
	]}`)

	segs, err := parseWhisperOutput(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(segs) != 3 {
		t.Fatalf("expected 3 segments (one dropped), got %d", len(segs))
	}
	if segs[0].Start != 0 || segs[0].Dur != 2.5 {
		t.Errorf("segment 0 timing wrong: %+v", segs[0])
	}
	if segs[0].Text != "Hello there." {
		t.Errorf("text not trimmed: %q", segs[0].Text)
	}
	if segs[1].Dur != 3.75 {
		t.Errorf("segment 1 duration wrong: %v", segs[1].Dur)
	}
	// End before start collapses to zero duration rather than going negative.
	if segs[2].Dur != 0 {
		t.Errorf("inverted range should clamp to zero, got %v", segs[2].Dur)
	}
}

func TestTranscribe(t *testing.T) {
	var whisperArgs []string
	runner := fakeRunner{
		fn: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			if name != "whisper-cli" {
				t.Fatalf("unexpected command %q", name)
			}
			whisperArgs = args
			outBase := ""
			for i, a := range args {
				if a == "-of" && i+1 < len(args) {
					outBase = args[i+1]
				}
			}
			if outBase == "" {
				t.Fatal("recognizer invoked without -of")
			}
			payload := `{"transcription":[{"timestamps":{"from":"00:00:01,000","to":"00:00:03,000"},"text":"spoken words"}]}`
			return nil, os.WriteFile(outBase+".json", []byte(payload), 0o644)
		},
	}

	svc := newTestCaptionService(fakeAudio{}, runner)
	segs, err := svc.transcribe(context.Background(), "dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(segs) != 1 || segs[0].Start != 1 || segs[0].Dur != 2 || segs[0].Text != "spoken words" {
		t.Errorf("unexpected segments: %+v", segs)
	}

	foundModel := false
	for i, a := range whisperArgs {
		if a == "-m" && i+1 < len(whisperArgs) && whisperArgs[i+1] == "model.bin" {
			foundModel = true
		}
	}
	if !foundModel {
		t.Error("recognizer invoked without model path")
	}
}

func TestTranscribe_StreamResolutionFails(t *testing.T) {
	svc := newTestCaptionService(fakeAudio{resolveErr: errors.New("age restricted")}, fakeRunner{
		fn: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			t.Fatal("runner should not be called when stream resolution fails")
			return nil, nil
		},
	})
	if _, err := svc.transcribe(context.Background(), "dQw4w9WgXcQ"); err == nil {
		t.Error("expected error when stream cannot be resolved")
	}
}

func TestTranscribe_EmptyTranscription(t *testing.T) {
	runner := fakeRunner{
		fn: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			for i, a := range args {
				if a == "-of" && i+1 < len(args) {
					return nil, os.WriteFile(args[i+1]+".json", []byte(`{"transcription":[]}`), 0o644)
				}
			}
			return nil, nil
		},
	}
	svc := newTestCaptionService(fakeAudio{}, runner)
	if _, err := svc.transcribe(context.Background(), "dQw4w9WgXcQ"); err == nil {
		t.Error("expected error when recognizer yields no segments")
	}
}
