package browser

import (
	"context"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog/log"
)

// Session is one isolated incognito page used for a single navigation
// attempt. It records every outgoing request URL through a hijack router so
// tracker traffic can be classified after the page settles. Sessions are
// never reused across attempts: cookies, globals and request logs must not
// leak between domains.
type Session struct {
	browser *rod.Browser
	page    *rod.Page
	router  *rod.HijackRouter

	mu        sync.Mutex
	requests  []string
	docStatus int
}

// NewSession opens an incognito page on the given browser with the request
// recorder attached. The caller owns the session and must Close it.
func NewSession(ctx context.Context, browser *rod.Browser, userAgent string) (*Session, error) {
	incognito, err := browser.Incognito()
	if err != nil {
		return nil, err
	}
	page, err := incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, err
	}
	page = page.Context(ctx)

	if userAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: userAgent}); err != nil {
			_ = page.Close()
			return nil, err
		}
	}

	s := &Session{
		browser: browser,
		page:    page,
	}

	s.router = page.HijackRequests()
	err = s.router.Add("*", "", s.handleHijack)
	if err != nil {
		_ = page.Close()
		return nil, err
	}
	go s.router.Run()

	// The hijack router continues requests untouched, so Network events
	// still fire; the last document response carries the page status.
	go page.EachEvent(func(e *proto.NetworkResponseReceived) {
		if e.Type == proto.NetworkResourceTypeDocument && e.Response != nil {
			s.mu.Lock()
			s.docStatus = e.Response.Status
			s.mu.Unlock()
		}
	})()

	return s, nil
}

// handleHijack records the request URL and lets the request through
// untouched so the browser fetches normally.
func (s *Session) handleHijack(hj *rod.Hijack) {
	if hj == nil {
		return
	}
	defer hj.ContinueRequest(&proto.FetchContinueRequest{})
	if hj.Request == nil || hj.Request.URL() == nil {
		return
	}
	if scheme := hj.Request.URL().Scheme; scheme == "http" || scheme == "https" {
		s.record(hj.Request.URL().String())
	}
}

func (s *Session) record(url string) {
	s.mu.Lock()
	s.requests = append(s.requests, url)
	s.mu.Unlock()
}

// Navigate loads the URL, waits for the load event and then gives late
// trackers a settle window to fire. Returns the final URL after redirects.
func (s *Session) Navigate(url string, timeout, settle time.Duration) (string, error) {
	if err := s.page.Timeout(timeout).Navigate(url); err != nil {
		return "", err
	}
	if err := s.page.Timeout(timeout).WaitLoad(); err != nil {
		return "", err
	}
	if settle > 0 {
		time.Sleep(settle)
	}

	info, err := s.page.Info()
	if err != nil {
		return url, nil
	}
	return info.URL, nil
}

// DocumentStatus returns the HTTP status of the last main document
// response, or zero when none was observed.
func (s *Session) DocumentStatus() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docStatus
}

// RequestURLs returns a snapshot of every HTTP(S) request the page made.
func (s *Session) RequestURLs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// HTML returns the rendered page markup.
func (s *Session) HTML() (string, error) {
	return s.page.HTML()
}

// CookieNames returns the names of all cookies set in this session's
// context, first-party and third-party alike.
func (s *Session) CookieNames() ([]string, error) {
	cookies, err := s.page.Cookies(nil)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(cookies))
	for _, c := range cookies {
		names = append(names, c.Name)
	}
	return names, nil
}

// ProbeGlobals evaluates which of the given JS global names are defined on
// the loaded page.
func (s *Session) ProbeGlobals(names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}
	result, err := s.page.Eval(`(names) => names.filter(n => typeof window[n] !== 'undefined')`, names)
	if err != nil {
		return nil, err
	}
	var found []string
	for _, v := range result.Value.Arr() {
		found = append(found, v.Str())
	}
	return found, nil
}

// Close stops the request recorder and closes the page. Safe to call after
// a failed navigation.
func (s *Session) Close() {
	if s.router != nil {
		if err := s.router.Stop(); err != nil {
			log.Debug().Err(err).Msg("Error stopping hijack router")
		}
	}
	if err := s.page.Close(); err != nil {
		log.Debug().Err(err).Msg("Error closing session page")
	}
}
