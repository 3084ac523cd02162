// Package timestamp implements the mark convention shared by generated
// summaries, chat replies, the frontend renderer, and the frame extractor.
//
// A mark is a markdown link whose label is a clock reading and whose target
// encodes the kind and an integer second count:
//
//	plain:  [12:34](#t=754)    jump-only
//	visual: [12:34](#tv=754)   jump + extracted key frame
package timestamp

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

type Kind string

const (
	Plain  Kind = "plain"
	Visual Kind = "visual"
)

// Mark is one parsed timestamp annotation.
type Mark struct {
	Kind    Kind
	Seconds int
}

// The kind flag alternation lists "tv" before "t" so the longer directive
// wins. Anything that does not match exactly (missing kind, non-integer
// seconds) is simply not a mark.
var markRe = regexp.MustCompile(`\[(?:\d{1,2}:)?\d{1,2}:\d{2}\]\(#(tv|t)=(\d+)\)`)

// Format renders a mark for the given kind and non-negative seconds value.
func Format(kind Kind, seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	flag := "t"
	if kind == Visual {
		flag = "tv"
	}
	return fmt.Sprintf("[%s](#%s=%d)", Clock(seconds), flag, seconds)
}

// Parse scans text for marks in document order. Malformed marks are
// ignored, never an error.
func Parse(text string) []Mark {
	var marks []Mark
	for _, m := range markRe.FindAllStringSubmatch(text, -1) {
		secs, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		kind := Plain
		if m[1] == "tv" {
			kind = Visual
		}
		marks = append(marks, Mark{Kind: kind, Seconds: secs})
	}
	return marks
}

// Visuals returns the seconds values of all visual marks, sorted ascending.
// Plain marks never trigger frame work.
func Visuals(text string) []int {
	var secs []int
	for _, m := range Parse(text) {
		if m.Kind == Visual {
			secs = append(secs, m.Seconds)
		}
	}
	sort.Ints(secs)
	return secs
}

// Dedup greedily drops any timestamp within threshold seconds of the
// previously kept one. Input must be sorted ascending.
func Dedup(sorted []int, threshold int) []int {
	if len(sorted) == 0 {
		return nil
	}
	kept := []int{sorted[0]}
	for _, ts := range sorted[1:] {
		if ts-kept[len(kept)-1] > threshold {
			kept = append(kept, ts)
		}
	}
	return kept
}

// Clock formats seconds as m:ss, or h:mm:ss from one hour up.
func Clock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// ToSeconds converts a clock reading ("ss", "mm:ss", "hh:mm:ss", optionally
// with a "." or "," fraction) to total seconds, floored at millisecond
// precision. The same rounding rule applies wherever clock values enter the
// system.
func ToSeconds(clock string) (float64, error) {
	clock = strings.TrimSpace(clock)
	if clock == "" {
		return 0, fmt.Errorf("empty clock value")
	}

	// Normalize the recognizer's comma fraction separator.
	clock = strings.Replace(clock, ",", ".", 1)

	parts := strings.Split(clock, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid clock value %q", clock)
	}

	total := 0.0
	for _, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("invalid clock value %q", clock)
		}
		total = total*60 + v
	}

	return math.Floor(total*1000) / 1000, nil
}
