package timestamp

import (
	"reflect"
	"testing"
)

func TestFormatParse_RoundTrip(t *testing.T) {
	for _, secs := range []int{0, 1, 59, 65, 754, 3600, 7325} {
		for _, kind := range []Kind{Plain, Visual} {
			text := "intro " + Format(kind, secs) + " outro"
			marks := Parse(text)
			if len(marks) != 1 {
				t.Fatalf("Expected 1 mark in %q, got %d", text, len(marks))
			}
			if marks[0].Kind != kind || marks[0].Seconds != secs {
				t.Errorf("Round trip failed: wrote (%s, %d), read (%s, %d)",
					kind, secs, marks[0].Kind, marks[0].Seconds)
			}
		}
	}
}

func TestParse_MalformedIgnored(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"missing kind", "[1:05](#=65)"},
		{"non-integer seconds", "[1:05](#t=abc)"},
		{"fractional seconds", "[1:05](#t=65.5)"},
		{"unknown kind", "[1:05](#x=65)"},
		{"negative seconds", "[1:05](#t=-65)"},
		{"no directive", "[1:05]"},
		{"plain prose", "the time 1:05 passed"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if marks := Parse(tc.text); len(marks) != 0 {
				t.Errorf("Expected no marks in %q, got %v", tc.text, marks)
			}
		})
	}
}

func TestParse_MixedKinds(t *testing.T) {
	text := "See [0:10](#tv=10) then [0:12](#tv=12), later [0:40](#tv=40) and [1:05](#t=65)."
	marks := Parse(text)
	if len(marks) != 4 {
		t.Fatalf("Expected 4 marks, got %d", len(marks))
	}
	if marks[3].Kind != Plain || marks[3].Seconds != 65 {
		t.Errorf("Expected trailing plain mark at 65, got %+v", marks[3])
	}
}

func TestVisuals_PlainMarksExcluded(t *testing.T) {
	// Transcript "Hello [0:00], world [1:05]" marked plain yields no frames.
	text := "Hello [0:00](#t=0), world [1:05](#t=65)"
	if v := Visuals(text); len(v) != 0 {
		t.Errorf("Expected zero visual timestamps, got %v", v)
	}
}

func TestDedup_Threshold(t *testing.T) {
	// 12 is within 5s of 10 and must be dropped.
	got := Dedup([]int{10, 12, 40}, 5)
	if !reflect.DeepEqual(got, []int{10, 40}) {
		t.Errorf("Expected [10 40], got %v", got)
	}
}

func TestDedup_NeverCloserThanThreshold(t *testing.T) {
	input := []int{0, 1, 2, 3, 4, 5, 6, 10, 11, 12, 30, 33, 36, 100}
	kept := Dedup(input, 5)
	for i := 1; i < len(kept); i++ {
		if kept[i]-kept[i-1] <= 5 {
			t.Errorf("Kept timestamps %d and %d closer than threshold", kept[i-1], kept[i])
		}
	}
	if len(kept) == 0 || kept[0] != 0 {
		t.Errorf("Dedup must keep the first timestamp, got %v", kept)
	}
}

func TestDedup_Empty(t *testing.T) {
	if got := Dedup(nil, 5); got != nil {
		t.Errorf("Expected nil for empty input, got %v", got)
	}
}

func TestClock(t *testing.T) {
	tests := []struct {
		secs     int
		expected string
	}{
		{0, "0:00"},
		{5, "0:05"},
		{65, "1:05"},
		{754, "12:34"},
		{3600, "1:00:00"},
		{7325, "2:02:05"},
	}
	for _, tc := range tests {
		if got := Clock(tc.secs); got != tc.expected {
			t.Errorf("Clock(%d): expected %q, got %q", tc.secs, got, tc.expected)
		}
	}
}

func TestToSeconds(t *testing.T) {
	tests := []struct {
		clock    string
		expected float64
	}{
		{"0:00", 0},
		{"1:05", 65},
		{"00:01:05", 65},
		{"01:02:03.500", 3723.5},
		{"00:00:05,280", 5.28},
		{"12.5", 12.5},
		// floor at millisecond precision
		{"0:00:01.23456", 1.234},
	}
	for _, tc := range tests {
		got, err := ToSeconds(tc.clock)
		if err != nil {
			t.Fatalf("ToSeconds(%q): unexpected error %v", tc.clock, err)
		}
		if got != tc.expected {
			t.Errorf("ToSeconds(%q): expected %v, got %v", tc.clock, tc.expected, got)
		}
	}
}

func TestToSeconds_Invalid(t *testing.T) {
	for _, clock := range []string{"", "a:b", "1:2:3:4", "-5"} {
		if _, err := ToSeconds(clock); err == nil {
			t.Errorf("ToSeconds(%q): expected error", clock)
		}
	}
}
