package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
)

var outputHeader = []string{"id", "input", "domain", "status", "detections", "trackers", "error", "duration_seconds"}

func (r Row) record() []string {
	return []string{
		r.ID,
		r.Input,
		r.Domain,
		string(r.Status),
		fmt.Sprintf("%d", r.DetectionCount),
		strings.Join(r.DetectionTypes, ";"),
		r.Error,
		fmt.Sprintf("%.2f", r.DurationSeconds),
	}
}

// WriteCSV emits the report as CSV, one row per original input row.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(outputHeader); err != nil {
		return err
	}
	for _, row := range rows {
		if err := cw.Write(row.record()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// RenderTable renders the report for terminal display.
func RenderTable(w io.Writer, rows []Row) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(outputHeader)
	table.SetBorder(true)
	for _, row := range rows {
		table.Append(row.record())
	}
	table.Render()
}
