package overlay

import "time"

// Call names one kind of scene controller request.
type Call string

const (
	CallProgramScene Call = "program_scene"
	CallPreviewScene Call = "preview_scene"
	CallSetText      Call = "set_text"
	CallStreamURL    Call = "stream_url"
	CallGetGeometry  Call = "get_geometry"
	CallSetGeometry  Call = "set_geometry"
	CallFetchStreams Call = "fetch_streams"
)

// Failure records one call that did not succeed.
type Failure struct {
	Step   int    `json:"step"`
	Call   Call   `json:"call"`
	Scene  string `json:"scene,omitempty"`
	Target string `json:"target,omitempty"`
	Error  string `json:"error"`
}

// Report summarises one sync. A sync never fails as a whole; the report
// says which calls did.
type Report struct {
	Event     string    `json:"event"`
	Run       string    `json:"run,omitempty"`
	StartedAt time.Time `json:"started_at"`

	Total     int `json:"total"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`

	// Skipped counts geometry lookups that found no such element, so no
	// layout was applied for that slot. Every call lands in exactly one of
	// Completed, Failed or Skipped.
	Skipped int `json:"skipped"`

	Failures   []Failure `json:"failures,omitempty"`
	DurationMS int64     `json:"duration_ms"`
}

// OK reports whether every call succeeded.
func (r *Report) OK() bool {
	return r.Failed == 0
}
