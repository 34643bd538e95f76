package batch

import (
	"encoding/json"
	"time"

	"github.com/minghsuy/pixel-detector-v2/pkg/detect"
)

// Progress is the observational side artifact for external polling. It is
// never authoritative; deleting it loses nothing.
type Progress struct {
	RunID               string    `json:"run_id"`
	Total               int       `json:"total"`
	Completed           int       `json:"completed"`
	Failed              int       `json:"failed"`
	Remaining           int       `json:"remaining"`
	SuccessRate         float64   `json:"success_rate"`
	ThroughputPerMinute float64   `json:"throughput_per_minute"`
	ETASeconds          float64   `json:"eta_seconds"`
	ElapsedSeconds      float64   `json:"elapsed_seconds"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Summary is the end-of-run report.
type Summary struct {
	RunID          string                     `json:"run_id"`
	Total          int                        `json:"total"`
	Completed      int                        `json:"completed"`
	Failed         int                        `json:"failed"`
	Skipped        int                        `json:"skipped"`
	SuccessRate    float64                    `json:"success_rate"`
	ElapsedSeconds float64                    `json:"elapsed_seconds"`
	ScansPerMinute float64                    `json:"scans_per_minute"`
	DetectionTally map[detect.TrackerType]int `json:"detection_tally"`
	Interrupted    bool                       `json:"interrupted,omitempty"`
}

func writeProgress(path string, p Progress) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return atomicWrite(path, data)
}
