package scan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/minghsuy/pixel-detector-v2/pkg/detect"
	"github.com/minghsuy/pixel-detector-v2/pkg/domain"
	"github.com/minghsuy/pixel-detector-v2/pkg/probe"
)

// Session is one isolated browsing context for a single variant attempt.
// pkg/browser provides the rod-backed implementation; tests substitute
// fakes.
type Session interface {
	Navigate(url string, timeout, settle time.Duration) (string, error)
	DocumentStatus() int
	RequestURLs() []string
	HTML() (string, error)
	CookieNames() ([]string, error)
	ProbeGlobals(names []string) ([]string, error)
	Close()
}

// SessionFactory opens a fresh isolated session. Called once per variant
// attempt; state never leaks between attempts.
type SessionFactory func(ctx context.Context) (Session, error)

// Executor runs the per-domain variant state machine: try each URL
// variant in order, collect tracker evidence on the first one that loads,
// report a typed failure when all are exhausted. One Executor is shared
// by all workers; each Scan builds its own detector set so evidence never
// crosses between concurrent domains.
type Executor struct {
	newSession SessionFactory
	navTimeout time.Duration
	settle     time.Duration
}

func NewExecutor(factory SessionFactory) *Executor {
	navTimeout := viper.GetDuration("navigation.timeout")
	if navTimeout <= 0 {
		navTimeout = 30 * time.Second
	}
	settle := viper.GetDuration("navigation.settle_delay")
	if settle < 0 {
		settle = 0
	}
	return &Executor{
		newSession: factory,
		navTimeout: navTimeout,
		settle:     settle,
	}
}

// Scan attempts every URL variant of the domain in order and returns a
// terminal Outcome. The returned error is non-nil only when the browser
// itself is unusable (wrapping ErrBrowserUnavailable) or the context was
// cancelled mid-scan; page-level failure is always expressed in the
// Outcome. A cancellation is never folded into an Outcome: the caller
// must be able to leave the domain pending for resume.
func (e *Executor) Scan(ctx context.Context, d domain.Domain) (Outcome, error) {
	start := time.Now()
	outcome := Outcome{
		Domain:     d.Name,
		Timestamp:  start.UTC(),
		Detections: []detect.Detection{},
	}

	detectors := detect.NewDetectorSet()

	var lastErr error
	for _, variant := range d.URLVariants() {
		if cerr := ctx.Err(); cerr != nil {
			outcome.Timing.ScanDurationSeconds = time.Since(start).Seconds()
			return outcome, cerr
		}

		sess, err := e.newSession(ctx)
		if err != nil {
			outcome.Timing.ScanDurationSeconds = time.Since(start).Seconds()
			return outcome, fmt.Errorf("%w: %v", ErrBrowserUnavailable, err)
		}

		navStart := time.Now()
		finalURL, err := sess.Navigate(variant, e.navTimeout, e.settle)
		if err != nil {
			sess.Close()
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				outcome.Timing.ScanDurationSeconds = time.Since(start).Seconds()
				if cerr := ctx.Err(); cerr != nil {
					return outcome, cerr
				}
				return outcome, err
			}
			if Classify(err) == ErrorResourceExhaustion {
				outcome.Timing.ScanDurationSeconds = time.Since(start).Seconds()
				return outcome, fmt.Errorf("%w: %v", ErrBrowserUnavailable, err)
			}
			log.Debug().Err(err).Str("variant", variant).Msg("Variant navigation failed")
			lastErr = err
			continue
		}

		if status := sess.DocumentStatus(); status >= 500 {
			sess.Close()
			if status == 503 {
				lastErr = fmt.Errorf("bot protection suspected (HTTP %d) at %s", status, variant)
			} else {
				lastErr = fmt.Errorf("server error (HTTP %d) at %s", status, variant)
			}
			continue
		}

		loadTime := time.Since(navStart) - e.settle
		if loadTime < 0 {
			loadTime = 0
		}

		total, tracking := collectEvidence(sess, detectors)
		sess.Close()

		for _, det := range detectors {
			if detection := det.BuildDetection(); detection != nil {
				outcome.Detections = append(outcome.Detections, *detection)
			}
		}

		outcome.Success = true
		outcome.URLScanned = finalURL
		outcome.Timing = Timing{
			LoadTimeSeconds:     loadTime.Seconds(),
			TotalRequests:       total,
			TrackingRequests:    tracking,
			ScanDurationSeconds: time.Since(start).Seconds(),
		}
		return outcome, nil
	}

	if lastErr == nil {
		lastErr = errors.New("no URL variants to attempt")
	}
	outcome.Success = false
	outcome.ErrorType = Classify(lastErr)
	outcome.Error = lastErr.Error()
	outcome.Timing.ScanDurationSeconds = time.Since(start).Seconds()
	return outcome, nil
}

// collectEvidence feeds the loaded page through every detector: request
// log, rendered DOM, context cookies and JS globals. Evaluation errors are
// swallowed per detector; a broken probe never aborts the scan.
func collectEvidence(sess Session, detectors []*detect.Detector) (total, tracking int) {
	urls := sess.RequestURLs()
	for _, u := range urls {
		matched := false
		for _, det := range detectors {
			if det.ClassifyRequest(u) {
				matched = true
			}
		}
		if matched {
			tracking++
		}
	}

	if html, err := sess.HTML(); err != nil {
		log.Debug().Err(err).Msg("Could not read page HTML")
	} else if doc, err := goquery.NewDocumentFromReader(strings.NewReader(html)); err != nil {
		log.Debug().Err(err).Msg("Could not parse page HTML")
	} else {
		for _, det := range detectors {
			det.ScanDOM(doc)
		}
	}

	if names, err := sess.CookieNames(); err != nil {
		log.Debug().Err(err).Msg("Could not read context cookies")
	} else {
		for _, det := range detectors {
			det.ScanCookies(names)
		}
	}

	for _, det := range detectors {
		found, err := sess.ProbeGlobals(det.GlobalProbes())
		if err != nil {
			log.Debug().Err(err).Str("tracker", string(det.Type())).Msg("Global variable probe failed")
			continue
		}
		det.AddGlobals(found)
	}

	return len(urls), tracking
}

// ScanWithRetry wraps Scan in the retry policy. Bot-protected but alive
// hosts get an extended budget. Browser-unavailable errors and context
// cancellation propagate to the caller; everything else terminates as a
// typed Outcome.
func (e *Executor) ScanWithRetry(ctx context.Context, d domain.Domain, policy RetryPolicy, health *probe.Result) (Outcome, error) {
	if health != nil && health.Status == probe.StatusBotProtected {
		bonus := viper.GetInt("retry.bot_protection_bonus")
		if bonus > 0 {
			policy = policy.WithMaxRetries(policy.MaxRetries + bonus)
		}
	}

	var outcome Outcome
	retries, err := policy.Do(ctx, func(int) error {
		var scanErr error
		outcome, scanErr = e.Scan(ctx, d)
		if scanErr != nil {
			return scanErr
		}
		if !outcome.Success {
			return NewTypedError(outcome.ErrorType, outcome.Error)
		}
		return nil
	})

	outcome.Retries = retries
	outcome.Health = health
	if err != nil && (errors.Is(err, ErrBrowserUnavailable) || errors.Is(err, context.Canceled)) {
		return outcome, err
	}
	return outcome, nil
}
