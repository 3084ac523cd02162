package services

import "testing"

func TestParseChapters(t *testing.T) {
	pageHTML := `..."lengthSeconds":"600","other":1...` +
		`"chapterRenderer":{"title":{"simpleText":"Intro"},"timeRangeStartMillis":0,...}` +
		`"chapterRenderer":{"title":{"simpleText":"Deep \u0026 Wide"},"timeRangeStartMillis":95000,...}` +
		`"chapterRenderer":{"title":{"simpleText":"Wrap-up"},"timeRangeStartMillis":480000,...}`

	chapters := parseChapters(pageHTML)
	if len(chapters) != 3 {
		t.Fatalf("expected 3 chapters, got %d", len(chapters))
	}

	if chapters[0].Title != "Intro" || chapters[0].Start != 0 || chapters[0].End != 95 {
		t.Errorf("chapter 0 wrong: %+v", chapters[0])
	}
	if chapters[1].Title != "Deep & Wide" {
		t.Errorf("escaped title not decoded: %q", chapters[1].Title)
	}
	if chapters[1].Start != 95 || chapters[1].End != 480 {
		t.Errorf("chapter 1 bounds wrong: %+v", chapters[1])
	}
	if chapters[2].End != 600 {
		t.Errorf("last chapter should end at video duration, got %v", chapters[2].End)
	}
}

func TestParseChapters_NoChapters(t *testing.T) {
	if got := parseChapters(`<html>"lengthSeconds":"300" no chapters here</html>`); got != nil {
		t.Errorf("expected nil for chapterless page, got %v", got)
	}
}

func TestParseChapters_NoDuration(t *testing.T) {
	pageHTML := `"chapterRenderer":{"title":{"simpleText":"Only"},"timeRangeStartMillis":30000`
	chapters := parseChapters(pageHTML)
	if len(chapters) != 1 {
		t.Fatalf("expected 1 chapter, got %d", len(chapters))
	}
	if chapters[0].End != chapters[0].Start {
		t.Errorf("without a duration the last chapter should be zero-length, got %+v", chapters[0])
	}
}
