package models

// CaptionSegment is one timed unit of transcript text. Sequences are
// time-ordered with non-decreasing Start; zero-duration segments are legal.
type CaptionSegment struct {
	Start float64 `json:"start"`
	Dur   float64 `json:"dur"`
	Text  string  `json:"text"`
}

// Chapter is a creator-defined named time range. The list sourced from the
// platform may be empty.
type Chapter struct {
	Title string  `json:"title"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}
