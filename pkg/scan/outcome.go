package scan

import (
	"time"

	"github.com/minghsuy/pixel-detector-v2/pkg/detect"
	"github.com/minghsuy/pixel-detector-v2/pkg/probe"
)

// Timing captures how the scan spent its time and how chatty the page was.
type Timing struct {
	LoadTimeSeconds     float64 `json:"load_time_seconds"`
	TotalRequests       int     `json:"total_requests"`
	TrackingRequests    int     `json:"tracking_requests"`
	ScanDurationSeconds float64 `json:"scan_duration_seconds"`
}

// Outcome is the terminal record for one domain in one batch run. Failures
// are data, not errors: an unreachable site produces Success=false with
// the last variant's error, never a propagated error (browser crashes are
// the one exception, handled at the dispatch boundary).
type Outcome struct {
	Domain     string             `json:"domain"`
	URLScanned string             `json:"url_scanned,omitempty"`
	Timestamp  time.Time          `json:"timestamp"`
	Success    bool               `json:"success"`
	Detections []detect.Detection `json:"detections"`
	Timing     Timing             `json:"timing"`
	ErrorType  ErrorType          `json:"error_type,omitempty"`
	Error      string             `json:"error,omitempty"`
	Retries    int                `json:"retries,omitempty"`
	Health     *probe.Result      `json:"health,omitempty"`
}

// HasTracking reports whether any tracker was detected.
func (o Outcome) HasTracking() bool {
	return len(o.Detections) > 0
}
