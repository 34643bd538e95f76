package batch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// FailureRecord tracks one failed domain in the ledger: how much of the
// global retry budget it has consumed and what killed it last.
type FailureRecord struct {
	Retries   int    `json:"retries"`
	LastError string `json:"last_error,omitempty"`
}

// Ledger is the authoritative record of batch progress. The orchestrator
// is its only writer; completed and failed are disjoint by construction.
type Ledger struct {
	completed map[string]struct{}
	failed    map[string]FailureRecord
	total     int
	started   time.Time
	// elapsed carried over from previous runs of the same batch.
	priorElapsed time.Duration
}

func NewLedger(total int) *Ledger {
	return &Ledger{
		completed: make(map[string]struct{}),
		failed:    make(map[string]FailureRecord),
		total:     total,
		started:   time.Now(),
	}
}

// Complete marks a domain as successfully scanned. A late success removes
// any earlier failure record, keeping completed and failed disjoint.
func (l *Ledger) Complete(domain string) {
	l.completed[domain] = struct{}{}
	delete(l.failed, domain)
}

// Fail records a failure for a domain that is not already completed.
func (l *Ledger) Fail(domain string, rec FailureRecord) {
	if _, done := l.completed[domain]; done {
		return
	}
	l.failed[domain] = rec
}

func (l *Ledger) IsCompleted(domain string) bool {
	_, ok := l.completed[domain]
	return ok
}

func (l *Ledger) FailureFor(domain string) (FailureRecord, bool) {
	rec, ok := l.failed[domain]
	return rec, ok
}

func (l *Ledger) SetTotal(n int) { l.total = n }
func (l *Ledger) Total() int     { return l.total }

func (l *Ledger) CompletedCount() int { return len(l.completed) }
func (l *Ledger) FailedCount() int    { return len(l.failed) }

// Elapsed includes time accumulated by previous runs before resume.
func (l *Ledger) Elapsed() time.Duration {
	return l.priorElapsed + time.Since(l.started)
}

type checkpointFile struct {
	Completed      []string                 `json:"completed"`
	Failed         map[string]FailureRecord `json:"failed"`
	Total          int                      `json:"total"`
	Timestamp      time.Time                `json:"timestamp"`
	ElapsedSeconds float64                  `json:"elapsed_seconds"`
}

// LoadLedger restores a ledger from a checkpoint file. A missing file is
// a fresh start; a malformed file is fatal, silently discarding progress
// would be worse than stopping.
func LoadLedger(path string, total int) (*Ledger, error) {
	ledger := NewLedger(total)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return ledger, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading checkpoint %s: %w", path, err)
	}

	var cp checkpointFile
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("malformed checkpoint %s: %w", path, err)
	}

	for _, d := range cp.Completed {
		ledger.completed[d] = struct{}{}
	}
	for d, rec := range cp.Failed {
		if _, done := ledger.completed[d]; done {
			continue
		}
		ledger.failed[d] = rec
	}
	if cp.Total > total {
		ledger.total = cp.Total
	}
	ledger.priorElapsed = time.Duration(cp.ElapsedSeconds * float64(time.Second))
	return ledger, nil
}

// Checkpoint atomically persists the ledger: write to a temp file in the
// same directory, fsync, then rename over the target. A reader never sees
// a partial checkpoint.
func (l *Ledger) Checkpoint(path string) error {
	completed := make([]string, 0, len(l.completed))
	for d := range l.completed {
		completed = append(completed, d)
	}
	sort.Strings(completed)

	cp := checkpointFile{
		Completed:      completed,
		Failed:         l.failed,
		Total:          l.total,
		Timestamp:      time.Now().UTC(),
		ElapsedSeconds: l.Elapsed().Seconds(),
	}
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return err
	}
	return atomicWrite(path, data)
}

// atomicWrite writes data to path via a temp file and rename.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
