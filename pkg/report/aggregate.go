package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/minghsuy/pixel-detector-v2/pkg/domain"
	"github.com/minghsuy/pixel-detector-v2/pkg/scan"
)

// Status classifies one input row in the final report.
type Status string

const (
	StatusRejected   Status = "rejected"
	StatusNotScanned Status = "not_scanned"
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
)

// InputRow is one row of the tabular input: an external identifier plus
// the raw URL/domain value to resolve.
type InputRow struct {
	ID  string
	URL string
}

// Row is one output row of the aggregated report. Duplicate inputs that
// normalize to the same domain all join to the same outcome.
type Row struct {
	ID              string
	Input           string
	Domain          string
	Status          Status
	DetectionCount  int
	DetectionTypes  []string
	Error           string
	DurationSeconds float64
}

// OutcomeSource looks up the persisted scan outcome for a domain.
// *batch.Store is the production implementation.
type OutcomeSource interface {
	LoadOutcome(domain string) (scan.Outcome, error)
	HasOutcome(domain string) bool
}

// ReadInputCSV parses the tabular input. The header must carry an
// identifier column and a URL column; anything else is a fatal startup
// error, not a silent skip.
func ReadInputCSV(path string) ([]InputRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening input %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header of %s: %w", path, err)
	}
	idCol, urlCol := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "id", "identifier", "external_id":
			if idCol == -1 {
				idCol = i
			}
		case "url", "domain", "website":
			if urlCol == -1 {
				urlCol = i
			}
		}
	}
	if idCol == -1 || urlCol == -1 {
		return nil, fmt.Errorf("input %s: header must contain an id column and a url column, got %v", path, header)
	}

	var rows []InputRow
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		if len(record) <= idCol || len(record) <= urlCol {
			log.Warn().Strs("record", record).Msg("Skipping short input row")
			continue
		}
		rows = append(rows, InputRow{ID: record[idCol], URL: record[urlCol]})
	}
	return rows, nil
}

// Build joins every input row to its scan outcome by normalized domain.
// It only reads persisted outcomes; the ledger is not consulted.
func Build(inputs []InputRow, source OutcomeSource) []Row {
	rows := make([]Row, 0, len(inputs))
	for _, in := range inputs {
		row := Row{ID: in.ID, Input: in.URL}

		d, err := domain.Validate(in.URL)
		if err != nil {
			row.Status = StatusRejected
			row.Error = err.Error()
			rows = append(rows, row)
			continue
		}
		row.Domain = d.Name

		if !source.HasOutcome(d.Name) {
			row.Status = StatusNotScanned
			rows = append(rows, row)
			continue
		}
		outcome, err := source.LoadOutcome(d.Name)
		if err != nil {
			row.Status = StatusNotScanned
			row.Error = err.Error()
			rows = append(rows, row)
			continue
		}

		row.DurationSeconds = outcome.Timing.ScanDurationSeconds
		if outcome.Success {
			row.Status = StatusSuccess
			row.DetectionCount = len(outcome.Detections)
			for _, det := range outcome.Detections {
				row.DetectionTypes = append(row.DetectionTypes, string(det.Type))
			}
		} else {
			row.Status = StatusFailed
			row.Error = outcome.Error
		}
		rows = append(rows, row)
	}
	return rows
}
