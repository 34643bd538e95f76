package batch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	"github.com/minghsuy/pixel-detector-v2/pkg/detect"
	"github.com/minghsuy/pixel-detector-v2/pkg/domain"
	"github.com/minghsuy/pixel-detector-v2/pkg/probe"
	"github.com/minghsuy/pixel-detector-v2/pkg/scan"
)

// Scanner runs one domain to a terminal outcome. *scan.Executor is the
// production implementation.
type Scanner interface {
	ScanWithRetry(ctx context.Context, d domain.Domain, policy scan.RetryPolicy, health *probe.Result) (scan.Outcome, error)
}

// HealthChecker is the optional pre-flight probe. *probe.Checker is the
// production implementation.
type HealthChecker interface {
	Check(ctx context.Context, domain string) probe.Result
}

type Config struct {
	Concurrency     int
	CheckpointEvery int
	CheckpointPath  string
	ProgressPath    string
	ResultsDir      string
	SkipHealthCheck bool
}

// Orchestrator drives a batch run: loads the checkpoint, computes the
// working set, dispatches scans through a bounded pool, persists every
// outcome before updating the ledger, and checkpoints on a cadence and at
// shutdown. It is the sole writer of the ledger and checkpoint.
type Orchestrator struct {
	cfg     Config
	scanner Scanner
	checker HealthChecker
	policy  scan.RetryPolicy
	ledger  *Ledger
	store   *Store
	runID   string
	started time.Time

	mu              sync.Mutex
	inFlight        map[string]struct{}
	sinceCheckpoint int
	completedRun    int
	tally           map[detect.TrackerType]int
}

func NewOrchestrator(cfg Config, scanner Scanner, checker HealthChecker, policy scan.RetryPolicy) (*Orchestrator, error) {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	if cfg.CheckpointEvery <= 0 {
		cfg.CheckpointEvery = 10
	}

	ledger, err := LoadLedger(cfg.CheckpointPath, 0)
	if err != nil {
		return nil, err
	}
	store, err := NewStore(cfg.ResultsDir)
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		cfg:      cfg,
		scanner:  scanner,
		checker:  checker,
		policy:   policy,
		ledger:   ledger,
		store:    store,
		runID:    uuid.NewString(),
		started:  time.Now(),
		inFlight: make(map[string]struct{}),
		tally:    make(map[detect.TrackerType]int),
	}, nil
}

// Run processes the domain list to completion or cancellation and returns
// the end-of-run summary. Duplicate domains are scanned once; completed
// domains from the checkpoint are never rescanned.
func (o *Orchestrator) Run(ctx context.Context, domains []domain.Domain) (Summary, error) {
	working := o.workingSet(domains)
	o.ledger.SetTotal(len(dedupe(domains)))

	log.Info().
		Str("run_id", o.runID).
		Int("total", o.ledger.Total()).
		Int("already_completed", o.ledger.CompletedCount()).
		Int("pending", len(working)).
		Int("concurrency", o.cfg.Concurrency).
		Msg("Starting batch run")

	p := pool.New().WithMaxGoroutines(o.cfg.Concurrency)
	interrupted := false

	for _, d := range working {
		if ctx.Err() != nil {
			interrupted = true
			log.Warn().Msg("Shutdown requested, draining in-flight scans")
			break
		}
		if !o.admit(d.Name) {
			continue
		}
		d := d
		p.Go(func() {
			defer o.release(d.Name)
			o.scanOne(ctx, d)
		})
	}

	p.Wait()

	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.ledger.Checkpoint(o.cfg.CheckpointPath); err != nil {
		log.Error().Err(err).Msg("Final checkpoint write failed, resume state is stale")
	}
	o.updateProgressLocked()

	summary := o.summaryLocked(interrupted || ctx.Err() != nil)
	log.Info().
		Int("completed", summary.Completed).
		Int("failed", summary.Failed).
		Float64("success_rate", summary.SuccessRate).
		Float64("elapsed_seconds", summary.ElapsedSeconds).
		Msg("Batch run finished")
	return summary, nil
}

// workingSet is the deduplicated input minus completed domains, minus
// failed domains whose retry budget is already exhausted.
func (o *Orchestrator) workingSet(domains []domain.Domain) []domain.Domain {
	var working []domain.Domain
	for _, d := range dedupe(domains) {
		if o.ledger.IsCompleted(d.Name) {
			continue
		}
		if rec, ok := o.ledger.FailureFor(d.Name); ok && rec.Retries > o.policy.MaxRetries {
			continue
		}
		working = append(working, d)
	}
	return working
}

func dedupe(domains []domain.Domain) []domain.Domain {
	seen := make(map[string]struct{}, len(domains))
	var out []domain.Domain
	for _, d := range domains {
		if _, dup := seen[d.Name]; dup {
			continue
		}
		seen[d.Name] = struct{}{}
		out = append(out, d)
	}
	return out
}

// admit reserves a dispatch slot for the domain. Returns false when the
// domain is already completed or already in flight.
func (o *Orchestrator) admit(name string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ledger.IsCompleted(name) {
		return false
	}
	if _, busy := o.inFlight[name]; busy {
		return false
	}
	o.inFlight[name] = struct{}{}
	return true
}

func (o *Orchestrator) release(name string) {
	o.mu.Lock()
	delete(o.inFlight, name)
	o.mu.Unlock()
}

func (o *Orchestrator) scanOne(ctx context.Context, d domain.Domain) {
	var health *probe.Result
	if o.checker != nil && !o.cfg.SkipHealthCheck {
		h := o.checker.Check(ctx, d.Name)
		health = &h
		if !h.Scannable() {
			log.Debug().Str("domain", d.Name).Str("status", string(h.Status)).Msg("Skipping browser scan for unreachable domain")
			o.record(scan.Outcome{
				Domain:    d.Name,
				Timestamp: time.Now().UTC(),
				Success:   false,
				ErrorType: healthErrorType(h.Status),
				Error:     h.Detail,
				Health:    health,
			})
			return
		}
	}

	policy := o.remainingBudget(d.Name)
	outcome, err := o.scanner.ScanWithRetry(ctx, d, policy, health)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Interrupted mid-scan: leave the domain pending for resume.
			return
		}
		// Browser crash: one domain's crash never aborts the batch.
		log.Error().Err(err).Str("domain", d.Name).Msg("Browser failure during scan")
		outcome.Domain = d.Name
		outcome.Success = false
		outcome.ErrorType = scan.ErrorResourceExhaustion
		outcome.Error = err.Error()
	}
	o.record(outcome)
}

// remainingBudget shrinks the retry policy by the budget a failed domain
// consumed in previous runs, so the global budget holds across restarts.
func (o *Orchestrator) remainingBudget(name string) scan.RetryPolicy {
	o.mu.Lock()
	defer o.mu.Unlock()
	rec, ok := o.ledger.FailureFor(name)
	if !ok {
		return o.policy
	}
	remaining := o.policy.MaxRetries - rec.Retries
	if remaining < 0 {
		remaining = 0
	}
	return o.policy.WithMaxRetries(remaining)
}

// record persists the outcome, then updates the ledger, then checkpoints
// on the configured cadence. Outcome-before-ledger ordering means a crash
// in between rescans one domain instead of losing one.
func (o *Orchestrator) record(outcome scan.Outcome) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.store.WriteOutcome(outcome); err != nil {
		log.Error().Err(err).Str("domain", outcome.Domain).Msg("Result file write failed")
	}

	if outcome.Success {
		o.ledger.Complete(outcome.Domain)
		o.completedRun++
		for _, det := range outcome.Detections {
			o.tally[det.Type]++
		}
		log.Info().
			Str("domain", outcome.Domain).
			Int("detections", len(outcome.Detections)).
			Float64("duration", outcome.Timing.ScanDurationSeconds).
			Msg("Scan completed")
	} else {
		prior, _ := o.ledger.FailureFor(outcome.Domain)
		rec := FailureRecord{
			Retries:   prior.Retries + outcome.Retries + 1,
			LastError: outcome.Error,
		}
		if !outcome.ErrorType.Retryable() {
			rec.Retries = o.policy.MaxRetries + 1
		}
		o.ledger.Fail(outcome.Domain, rec)
		log.Warn().
			Str("domain", outcome.Domain).
			Str("error_type", string(outcome.ErrorType)).
			Str("error", outcome.Error).
			Msg("Scan failed")
	}

	o.sinceCheckpoint++
	if o.sinceCheckpoint >= o.cfg.CheckpointEvery {
		o.sinceCheckpoint = 0
		if err := o.ledger.Checkpoint(o.cfg.CheckpointPath); err != nil {
			log.Error().Err(err).Msg("Checkpoint write failed, resume safety degraded until next success")
		}
		o.updateProgressLocked()
	}
}

func (o *Orchestrator) updateProgressLocked() {
	if o.cfg.ProgressPath == "" {
		return
	}
	completed := o.ledger.CompletedCount()
	failed := o.ledger.FailedCount()
	remaining := o.ledger.Total() - completed - failed
	if remaining < 0 {
		remaining = 0
	}

	elapsed := o.ledger.Elapsed().Seconds()
	// Throughput reflects this run only; the ledger's elapsed time spans
	// previous runs and would understate the rate after a resume.
	runElapsed := time.Since(o.started).Seconds()
	var throughput, eta float64
	if runElapsed > 0 {
		throughput = float64(o.completedRun) / runElapsed * 60
	}
	if throughput > 0 {
		eta = float64(remaining) / (throughput / 60)
	}

	p := Progress{
		RunID:               o.runID,
		Total:               o.ledger.Total(),
		Completed:           completed,
		Failed:              failed,
		Remaining:           remaining,
		SuccessRate:         rate(completed, completed+failed),
		ThroughputPerMinute: throughput,
		ETASeconds:          eta,
		ElapsedSeconds:      elapsed,
		UpdatedAt:           time.Now().UTC(),
	}
	if err := writeProgress(o.cfg.ProgressPath, p); err != nil {
		log.Debug().Err(err).Msg("Progress artifact write failed")
	}
}

func (o *Orchestrator) summaryLocked(interrupted bool) Summary {
	completed := o.ledger.CompletedCount()
	failed := o.ledger.FailedCount()
	elapsed := o.ledger.Elapsed().Seconds()
	runElapsed := time.Since(o.started).Seconds()
	var perMinute float64
	if runElapsed > 0 {
		perMinute = float64(o.completedRun) / runElapsed * 60
	}
	return Summary{
		RunID:          o.runID,
		Total:          o.ledger.Total(),
		Completed:      completed,
		Failed:         failed,
		Skipped:        o.ledger.Total() - completed - failed,
		SuccessRate:    rate(completed, completed+failed),
		ElapsedSeconds: elapsed,
		ScansPerMinute: perMinute,
		DetectionTally: o.tally,
		Interrupted:    interrupted,
	}
}

func rate(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole)
}

func healthErrorType(s probe.Status) scan.ErrorType {
	switch s {
	case probe.StatusDNSFailure:
		return scan.ErrorDNS
	case probe.StatusUnreachable:
		return scan.ErrorNetwork
	case probe.StatusBotProtected:
		return scan.ErrorBotProtection
	default:
		return scan.ErrorUnknown
	}
}
