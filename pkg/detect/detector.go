package detect

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	maxScriptEvidenceLen = 500
	maxDOMEvidenceLen    = 200
)

// Detector accumulates evidence for exactly one tracker during one scan.
// It is not safe for concurrent use and must be Reset between scans.
type Detector struct {
	sig Signature

	networkRequests []string
	scriptTags      []string
	cookiesFound    map[string]struct{}
	globalVariables []string
	domElements     []string
	metaTags        []string
	trackerID       string
}

// NewDetector builds a detector from a vendor signature.
func NewDetector(sig Signature) *Detector {
	return &Detector{
		sig:          sig,
		cookiesFound: make(map[string]struct{}),
	}
}

// NewDetectorSet builds one detector per vendor signature. The set is
// constructed once per scan worker and reset between domains; there is no
// global registry.
func NewDetectorSet() []*Detector {
	detectors := make([]*Detector, 0, len(signatures))
	for _, sig := range signatures {
		detectors = append(detectors, NewDetector(sig))
	}
	return detectors
}

// Type returns the tracker this detector identifies.
func (d *Detector) Type() TrackerType {
	return d.sig.Type
}

// Reset clears all accumulated state before a new scan.
func (d *Detector) Reset() {
	d.networkRequests = nil
	d.scriptTags = nil
	d.cookiesFound = make(map[string]struct{})
	d.globalVariables = nil
	d.domElements = nil
	d.metaTags = nil
	d.trackerID = ""
}

// ClassifyRequest reports whether an outgoing request URL belongs to this
// tracker, accumulating it as evidence when it does.
func (d *Detector) ClassifyRequest(url string) bool {
	for _, domain := range d.sig.Domains {
		if strings.Contains(url, domain) {
			d.networkRequests = append(d.networkRequests, url)
			if id := extractID(d.sig.IDFromURL, url); id != "" {
				d.trackerID = id
			}
			return true
		}
	}
	return false
}

// GlobalProbes returns the JS global names the scan executor should probe
// on the loaded page.
func (d *Detector) GlobalProbes() []string {
	return d.sig.GlobalVariables
}

// AddGlobals records the subset of probed globals that were defined.
func (d *Detector) AddGlobals(found []string) {
	d.globalVariables = append(d.globalVariables, found...)
}

// ScanCookies matches context cookie names against the vendor's cookie
// table. Names ending in underscore are treated as prefixes.
func (d *Detector) ScanCookies(names []string) {
	for _, cookie := range names {
		for _, want := range d.sig.CookieNames {
			if cookie == want || (strings.HasSuffix(want, "_") && strings.HasPrefix(cookie, want)) {
				d.cookiesFound[cookie] = struct{}{}
			}
		}
	}
}

// ScanDOM inspects the rendered page markup for tracking scripts, noscript
// pixel fallbacks, pixel img elements and vendor meta tags.
func (d *Detector) ScanDOM(doc *goquery.Document) {
	if doc == nil {
		return
	}

	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		markup, err := goquery.OuterHtml(s)
		if err != nil {
			return
		}
		for _, pattern := range d.sig.ScriptPatterns {
			if pattern.MatchString(markup) {
				d.scriptTags = append(d.scriptTags, truncate(markup, maxScriptEvidenceLen))
				if id := extractID(d.sig.IDFromScript, markup); id != "" {
					d.trackerID = id
				}
				break
			}
		}
	})

	if len(d.sig.NoscriptMarkers) > 0 {
		doc.Find("noscript").Each(func(_ int, s *goquery.Selection) {
			inner, err := s.Html()
			if err != nil {
				return
			}
			for _, marker := range d.sig.NoscriptMarkers {
				if strings.Contains(inner, marker) {
					d.domElements = append(d.domElements, truncate(inner, maxDOMEvidenceLen))
					break
				}
			}
		})
	}

	if d.sig.ImgSelector != "" {
		doc.Find(d.sig.ImgSelector).Each(func(_ int, s *goquery.Selection) {
			if markup, err := goquery.OuterHtml(s); err == nil {
				d.domElements = append(d.domElements, truncate(markup, maxDOMEvidenceLen))
			}
		})
	}

	if d.sig.MetaSelector != "" {
		doc.Find(d.sig.MetaSelector).Each(func(_ int, s *goquery.Selection) {
			if markup, err := goquery.OuterHtml(s); err == nil {
				d.metaTags = append(d.metaTags, markup)
			}
		})
	}
}

// BuildDetection synthesizes the detection for this tracker, or returns
// nil when no evidence was accumulated. Meta tags alone never constitute a
// detection since og:/twitter: tags appear on untracked pages too.
func (d *Detector) BuildDetection() *Detection {
	if !d.detected() {
		return nil
	}

	cookies := make([]string, 0, len(d.cookiesFound))
	for name := range d.cookiesFound {
		cookies = append(cookies, name)
	}
	sort.Strings(cookies)

	return &Detection{
		Type: d.sig.Type,
		Evidence: Evidence{
			NetworkRequests: append([]string(nil), d.networkRequests...),
			ScriptTags:      append([]string(nil), d.scriptTags...),
			CookiesSet:      cookies,
			GlobalVariables: append([]string(nil), d.globalVariables...),
			DOMElements:     append([]string(nil), d.domElements...),
			MetaTags:        append([]string(nil), d.metaTags...),
		},
		RiskLevel:     d.sig.RiskLevel,
		HIPAARelevant: d.sig.HIPAARelevant,
		Description:   d.describe(),
		TrackerID:     d.trackerID,
	}
}

func (d *Detector) detected() bool {
	return len(d.networkRequests) > 0 ||
		len(d.scriptTags) > 0 ||
		len(d.cookiesFound) > 0 ||
		len(d.globalVariables) > 0 ||
		len(d.domElements) > 0
}

func (d *Detector) describe() string {
	var parts []string
	if n := len(d.networkRequests); n > 0 {
		parts = append(parts, fmt.Sprintf("%d tracking requests", n))
	}
	if n := len(d.scriptTags); n > 0 {
		parts = append(parts, fmt.Sprintf("%d tracking scripts", n))
	}
	if n := len(d.cookiesFound); n > 0 {
		parts = append(parts, fmt.Sprintf("%d tracking cookies", n))
	}
	if d.trackerID != "" {
		parts = append(parts, "tracker ID: "+d.trackerID)
	}
	return fmt.Sprintf("%s detected: %s", d.sig.Type, strings.Join(parts, ", "))
}

func extractID(patterns []*regexp.Regexp, s string) string {
	for _, pattern := range patterns {
		if m := pattern.FindStringSubmatch(s); len(m) > 1 {
			return m[1]
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
