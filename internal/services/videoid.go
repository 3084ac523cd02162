package services

import (
	"fmt"
	urlpkg "net/url"
	"regexp"
	"strings"
)

var videoIDRe = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)

var videoIDFallbackRe = regexp.MustCompile(`(?:v=|/v/|youtu\.be/|embed/|shorts/)([a-zA-Z0-9_-]{11})`)

// ExtractVideoID resolves a raw YouTube URL or a bare 11-character video ID
// to the canonical video ID. Unrecognized input is a validation error; no
// external calls are made here.
func ExtractVideoID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("video URL or ID is required")
	}

	if videoIDRe.MatchString(raw) {
		return raw, nil
	}

	parsed, err := urlpkg.Parse(raw)
	if err == nil {
		host := strings.ToLower(parsed.Host)
		path := strings.Trim(parsed.Path, "/")

		// youtube.com/watch?v=VIDEO_ID
		if strings.Contains(host, "youtube.com") {
			if v := parsed.Query().Get("v"); videoIDRe.MatchString(v) {
				return v, nil
			}

			parts := strings.Split(path, "/")
			if len(parts) >= 2 {
				switch parts[0] {
				case "shorts", "embed", "v":
					if videoIDRe.MatchString(parts[1]) {
						return parts[1], nil
					}
				}
			}
		}

		// youtu.be/VIDEO_ID
		if strings.Contains(host, "youtu.be") {
			candidate := strings.Split(path, "/")[0]
			if videoIDRe.MatchString(candidate) {
				return candidate, nil
			}
		}
	}

	// Fallback regex for unusual URL forms
	if m := videoIDFallbackRe.FindStringSubmatch(raw); len(m) > 1 {
		return m[1], nil
	}

	return "", fmt.Errorf("unrecognized YouTube URL or video ID: %s", raw)
}
