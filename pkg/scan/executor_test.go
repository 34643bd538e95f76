package scan

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minghsuy/pixel-detector-v2/pkg/detect"
	"github.com/minghsuy/pixel-detector-v2/pkg/domain"
)

type fakeSession struct {
	navErr   error
	finalURL string
	status   int
	requests []string
	html     string
	cookies  []string
	globals  []string
	closed   bool

	// onNavigate runs at the top of Navigate; entered is closed when
	// Navigate starts and gate blocks it until closed. All optional.
	onNavigate func()
	entered    chan struct{}
	gate       chan struct{}
}

func (f *fakeSession) Navigate(url string, timeout, settle time.Duration) (string, error) {
	if f.onNavigate != nil {
		f.onNavigate()
	}
	if f.entered != nil {
		close(f.entered)
	}
	if f.gate != nil {
		<-f.gate
	}
	if f.navErr != nil {
		return "", f.navErr
	}
	if f.finalURL != "" {
		return f.finalURL, nil
	}
	return url, nil
}

func (f *fakeSession) DocumentStatus() int    { return f.status }
func (f *fakeSession) RequestURLs() []string  { return f.requests }
func (f *fakeSession) HTML() (string, error)  { return f.html, nil }
func (f *fakeSession) Close()                 { f.closed = true }

func (f *fakeSession) CookieNames() ([]string, error) {
	return f.cookies, nil
}

func (f *fakeSession) ProbeGlobals(names []string) ([]string, error) {
	var found []string
	for _, name := range names {
		for _, g := range f.globals {
			if name == g {
				found = append(found, name)
			}
		}
	}
	return found, nil
}

// scriptedFactory hands out one session per variant attempt, in order.
type scriptedFactory struct {
	t        *testing.T
	mu       sync.Mutex
	sessions []*fakeSession
	opened   int
}

func (s *scriptedFactory) factory(ctx context.Context) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	require.Less(s.t, s.opened, len(s.sessions), "more sessions opened than scripted")
	sess := s.sessions[s.opened]
	s.opened++
	return sess, nil
}

func newTestExecutor(f *scriptedFactory) *Executor {
	return &Executor{
		newSession: f.factory,
		navTimeout: time.Second,
		settle:     0,
	}
}

func TestScanDetectsTrackers(t *testing.T) {
	sess := &fakeSession{
		finalURL: "https://www.tracked.com/",
		status:   200,
		requests: []string{
			"https://www.tracked.com/",
			"https://www.facebook.com/tr?id=1234567890&ev=PageView",
			"https://cdn.tracked.com/app.js",
		},
		html:    `<html><head><script>fbq('init', '1234567890');</script></head></html>`,
		cookies: []string{"_fbp", "session"},
		globals: []string{"fbq"},
	}
	f := &scriptedFactory{t: t, sessions: []*fakeSession{sess}}

	outcome, err := newTestExecutor(f).Scan(context.Background(), domain.Domain{Name: "tracked.com"})
	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Equal(t, "https://www.tracked.com/", outcome.URLScanned)
	assert.Equal(t, 3, outcome.Timing.TotalRequests)
	assert.Equal(t, 1, outcome.Timing.TrackingRequests)
	require.Len(t, outcome.Detections, 1)
	assert.Equal(t, detect.MetaPixel, outcome.Detections[0].Type)
	assert.Equal(t, "1234567890", outcome.Detections[0].TrackerID)
	assert.True(t, sess.closed)
}

func TestScanCleanDomain(t *testing.T) {
	sess := &fakeSession{
		status:   200,
		requests: []string{"https://cleanhospital.test/"},
		html:     `<html><body>no trackers here</body></html>`,
	}
	f := &scriptedFactory{t: t, sessions: []*fakeSession{sess}}

	outcome, err := newTestExecutor(f).Scan(context.Background(), domain.Domain{Name: "cleanhospital.test"})
	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Empty(t, outcome.Detections)
	assert.Equal(t, 0, outcome.Timing.TrackingRequests)
}

func TestScanFallsBackThroughVariants(t *testing.T) {
	refused := errors.New("net::ERR_CONNECTION_REFUSED")
	f := &scriptedFactory{t: t, sessions: []*fakeSession{
		{navErr: refused},
		{navErr: refused},
		{status: 200, html: "<html></html>"},
	}}

	outcome, err := newTestExecutor(f).Scan(context.Background(), domain.Domain{Name: "flaky.com"})
	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Equal(t, 3, f.opened, "should stop at the first working variant")
}

func TestScanAllVariantsFail(t *testing.T) {
	f := &scriptedFactory{t: t, sessions: []*fakeSession{
		{navErr: errors.New("net::ERR_CONNECTION_REFUSED at https://dead.com")},
		{navErr: errors.New("net::ERR_CONNECTION_REFUSED at https://www.dead.com")},
		{navErr: errors.New("net::ERR_CONNECTION_REFUSED at http://dead.com")},
		{navErr: errors.New("net::ERR_CONNECTION_REFUSED at http://www.dead.com")},
	}}

	outcome, err := newTestExecutor(f).Scan(context.Background(), domain.Domain{Name: "dead.com"})
	require.NoError(t, err, "exhausted variants are an outcome, not an error")
	assert.False(t, outcome.Success)
	assert.Equal(t, ErrorNetwork, outcome.ErrorType)
	assert.Contains(t, outcome.Error, "http://www.dead.com", "last variant's error wins")
	assert.Equal(t, 4, f.opened)
}

func TestScanServerErrorAdvancesVariant(t *testing.T) {
	f := &scriptedFactory{t: t, sessions: []*fakeSession{
		{status: 503},
		{status: 503},
		{status: 503},
		{status: 503},
	}}

	outcome, err := newTestExecutor(f).Scan(context.Background(), domain.Domain{Name: "walled.com"})
	require.NoError(t, err)
	assert.False(t, outcome.Success)
	assert.Equal(t, ErrorBotProtection, outcome.ErrorType)
}

func TestScanNon5xxProceedsToEvidence(t *testing.T) {
	f := &scriptedFactory{t: t, sessions: []*fakeSession{
		{status: 403, html: "<html>denied</html>"},
	}}

	outcome, err := newTestExecutor(f).Scan(context.Background(), domain.Domain{Name: "picky.com"})
	require.NoError(t, err)
	assert.True(t, outcome.Success, "4xx still renders a page worth inspecting")
}

func TestScanKeepsConcurrentDomainsIsolated(t *testing.T) {
	clean := &fakeSession{
		status:   200,
		requests: []string{"https://cleanhospital.test/"},
		html:     "<html><body>nothing here</body></html>",
		entered:  make(chan struct{}),
		gate:     make(chan struct{}),
	}
	tracked := &fakeSession{
		status:   200,
		requests: []string{"https://www.facebook.com/tr?id=1234567890&ev=PageView"},
		html:     `<html><head><script>fbq('init', '1234567890');</script></head></html>`,
		cookies:  []string{"_fbp"},
		globals:  []string{"fbq"},
	}
	f := &scriptedFactory{t: t, sessions: []*fakeSession{clean, tracked}}
	e := newTestExecutor(f)

	var cleanOutcome Outcome
	var cleanErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		cleanOutcome, cleanErr = e.Scan(context.Background(), domain.Domain{Name: "cleanhospital.test"})
	}()

	// Park the clean domain mid-navigation, finish a tracked domain on
	// the same executor, then let the clean scan resume.
	<-clean.entered
	trackedOutcome, err := e.Scan(context.Background(), domain.Domain{Name: "tracked.com"})
	require.NoError(t, err)
	require.Len(t, trackedOutcome.Detections, 1)

	close(clean.gate)
	<-done

	require.NoError(t, cleanErr)
	assert.True(t, cleanOutcome.Success)
	assert.Empty(t, cleanOutcome.Detections, "evidence from a concurrent scan must not leak")
	assert.Equal(t, 0, cleanOutcome.Timing.TrackingRequests)
}

func TestScanReturnsErrorWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := &scriptedFactory{t: t}

	outcome, err := newTestExecutor(f).Scan(ctx, domain.Domain{Name: "any.com"})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, outcome.Success)
	assert.Equal(t, 0, f.opened, "no session is opened for a cancelled scan")
}

func TestScanWithRetryPropagatesMidScanCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sess := &fakeSession{navErr: errors.New("net::ERR_ABORTED"), onNavigate: cancel}
	f := &scriptedFactory{t: t, sessions: []*fakeSession{sess}}
	e := newTestExecutor(f)

	policy := RetryPolicy{MaxRetries: 2, InitialDelay: time.Millisecond, BackoffBase: 2}
	outcome, err := e.ScanWithRetry(ctx, domain.Domain{Name: "interrupted.com"}, policy, nil)
	require.ErrorIs(t, err, context.Canceled, "interruption surfaces as an error, never as a failed outcome")
	assert.False(t, outcome.Success)
	assert.Equal(t, 1, f.opened, "no further variants or retries after cancellation")
}

func TestScanBrowserCrashPropagates(t *testing.T) {
	f := &scriptedFactory{t: t, sessions: []*fakeSession{
		{navErr: errors.New("browser has been closed")},
	}}

	_, err := newTestExecutor(f).Scan(context.Background(), domain.Domain{Name: "any.com"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBrowserUnavailable))
}

func TestScanWithRetryExhaustsBudget(t *testing.T) {
	var sessions []*fakeSession
	// 4 variants per attempt, 3 attempts (max_retries=2).
	for i := 0; i < 12; i++ {
		sessions = append(sessions, &fakeSession{navErr: errors.New("net::ERR_CONNECTION_REFUSED")})
	}
	f := &scriptedFactory{t: t, sessions: sessions}
	e := newTestExecutor(f)

	policy := RetryPolicy{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, BackoffBase: 2}
	outcome, err := e.ScanWithRetry(context.Background(), domain.Domain{Name: "dead.com"}, policy, nil)
	require.NoError(t, err)
	assert.False(t, outcome.Success)
	assert.Equal(t, 2, outcome.Retries)
	assert.Equal(t, 12, f.opened, "4 variants x (max_retries+1) attempts")
}

func TestScanWithRetryStopsOnNonRetryable(t *testing.T) {
	f := &scriptedFactory{t: t, sessions: []*fakeSession{
		{navErr: errors.New("something inexplicable")},
		{navErr: errors.New("something inexplicable")},
		{navErr: errors.New("something inexplicable")},
		{navErr: errors.New("something inexplicable")},
	}}
	e := newTestExecutor(f)

	policy := RetryPolicy{MaxRetries: 3, InitialDelay: time.Millisecond, BackoffBase: 2}
	outcome, err := e.ScanWithRetry(context.Background(), domain.Domain{Name: "odd.com"}, policy, nil)
	require.NoError(t, err)
	assert.False(t, outcome.Success)
	assert.Equal(t, 0, outcome.Retries, "unknown errors are not retried")
	assert.Equal(t, 4, f.opened)
}
