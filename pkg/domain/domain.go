package domain

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"

	"github.com/jpillora/go-tld"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/idna"
)

// RejectionReason classifies why an input could not be turned into a
// scannable domain. It is surfaced in report output for rejected rows.
type RejectionReason string

const (
	RejectionEmpty        RejectionReason = "empty_input"
	RejectionPlaceholder  RejectionReason = "placeholder_value"
	RejectionEmail        RejectionReason = "email_address"
	RejectionPhoneNumber  RejectionReason = "phone_number"
	RejectionBadScheme    RejectionReason = "unsupported_scheme"
	RejectionNoSuffix     RejectionReason = "no_registrable_suffix"
	RejectionBadLabels    RejectionReason = "invalid_domain_labels"
	RejectionUnparseable  RejectionReason = "unparseable_input"
)

// ValidationError is terminal: inputs that fail validation are never
// dispatched to the scan path.
type ValidationError struct {
	Input  string
	Reason RejectionReason
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("invalid domain %q: %s (%s)", e.Input, e.Reason, e.Detail)
	}
	return fmt.Sprintf("invalid domain %q: %s", e.Input, e.Reason)
}

// Domain is a validated registrable hostname: case-folded, no scheme, no
// path, no trailing dot. It is the primary key for ledger entries and
// per-domain result files.
type Domain struct {
	Name string
	IsIP bool
	// PreferWWW is set when the input carried an explicit www prefix,
	// hinting that the www form is the one that actually resolves.
	PreferWWW bool
}

func (d Domain) String() string {
	return d.Name
}

// URLVariants returns the candidate URLs to attempt for this domain, in
// order of empirical success likelihood: bare HTTPS first, then the www
// form, before falling back to HTTP.
func (d Domain) URLVariants() []string {
	if d.IsIP {
		return []string{
			"https://" + d.Name,
			"http://" + d.Name,
		}
	}
	if d.PreferWWW {
		return []string{
			"https://www." + d.Name,
			"https://" + d.Name,
			"http://www." + d.Name,
			"http://" + d.Name,
		}
	}
	return []string{
		"https://" + d.Name,
		"https://www." + d.Name,
		"http://" + d.Name,
		"http://www." + d.Name,
	}
}

// FileKey returns a deterministic filesystem-safe key for this domain,
// with non-alphanumeric characters replaced.
func (d Domain) FileKey() string {
	return nonAlnum.ReplaceAllString(d.Name, "_")
}

var (
	nonAlnum     = regexp.MustCompile(`[^a-zA-Z0-9]`)
	phoneShaped  = regexp.MustCompile(`^[\d\s\-+().]+$`)
	labelPattern = regexp.MustCompile(`^[a-z0-9-]+$`)
	mdLink       = regexp.MustCompile(`\[.*?\]\((.*?)\)`)
	anchorHref   = regexp.MustCompile(`(?i)<a\s+href=["']?(.*?)["']?[\s>]`)
	unicodeSpace = regexp.MustCompile(`[\x{00A0}\x{1680}\x{2000}-\x{200B}\x{202F}\x{205F}\x{3000}\x{FEFF}]`)
	trailingPunc = regexp.MustCompile(`[.,;:!?\s]+$`)
)

var placeholders = map[string]bool{
	"none": true, "null": true, "n/a": true, "na": true, "-": true,
	"nil": true, "undefined": true, "blank": true,
}

// Common scheme and www typos seen in free-form spreadsheet input.
var typoFixes = [][2]string{
	{"htttps", "https"}, {"htttp", "http"}, {"httpss", "https"},
	{"htpps", "https"}, {"htps", "https"}, {"htpp", "http"}, {"htp", "http"},
	{"wwww.", "www."}, {"ww.", "www."},
}

var rejectedSchemes = map[string]bool{
	"javascript": true, "data": true, "vbscript": true, "about": true,
	"file": true, "ftp": true, "ftps": true, "telnet": true, "ssh": true,
	"ldap": true, "mailto": true,
}

// CleanInput strips copy-paste artifacts before parsing: surrounding
// quotes, markdown/HTML link syntax, zero-width and non-breaking spaces,
// trailing punctuation and common scheme typos.
func CleanInput(raw string) string {
	s := unicodeSpace.ReplaceAllString(raw, "")
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'`)

	if m := mdLink.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	if m := anchorHref.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	s = trailingPunc.ReplaceAllString(s, "")

	lower := strings.ToLower(s)
	for _, fix := range typoFixes {
		if strings.HasPrefix(lower, fix[0]) {
			s = fix[1] + s[len(fix[0]):]
			break
		}
	}
	// Trailing dots are valid in DNS but never wanted here.
	s = strings.TrimRight(s, ".")
	return s
}

// Validate parses free-form input (URLs, bare domains, garbage) into a
// canonical registrable domain, or rejects it with a terminal
// ValidationError. It never performs network I/O.
func Validate(raw string) (Domain, error) {
	cleaned := CleanInput(raw)
	if cleaned == "" {
		return Domain{}, &ValidationError{Input: raw, Reason: RejectionEmpty}
	}
	if placeholders[strings.ToLower(cleaned)] {
		return Domain{}, &ValidationError{Input: raw, Reason: RejectionPlaceholder}
	}
	if strings.Contains(cleaned, "@") {
		return Domain{}, &ValidationError{Input: raw, Reason: RejectionEmail}
	}
	if phoneShaped.MatchString(cleaned) && !strings.Contains(cleaned, ".") {
		return Domain{}, &ValidationError{Input: raw, Reason: RejectionPhoneNumber}
	}

	withScheme := cleaned
	if i := strings.Index(cleaned, "://"); i >= 0 {
		scheme := strings.ToLower(cleaned[:i])
		if rejectedSchemes[scheme] {
			return Domain{}, &ValidationError{Input: raw, Reason: RejectionBadScheme, Detail: scheme}
		}
		if scheme != "http" && scheme != "https" {
			return Domain{}, &ValidationError{Input: raw, Reason: RejectionBadScheme, Detail: scheme}
		}
	} else if strings.HasPrefix(cleaned, "//") {
		withScheme = "https:" + cleaned
	} else {
		withScheme = "https://" + cleaned
	}

	parsed, err := url.Parse(strings.ToLower(withScheme))
	if err != nil || parsed.Hostname() == "" {
		return Domain{}, &ValidationError{Input: raw, Reason: RejectionUnparseable}
	}
	host := strings.TrimSuffix(parsed.Hostname(), ".")

	if ip := net.ParseIP(host); ip != nil {
		return Domain{Name: host, IsIP: true}, nil
	}
	if !strings.Contains(host, ".") {
		return Domain{}, &ValidationError{Input: raw, Reason: RejectionNoSuffix, Detail: "no dot-delimited labels"}
	}

	// Internationalized names go through punycode before suffix
	// extraction. A failed conversion keeps the unicode form rather
	// than dropping the input.
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		log.Debug().Err(err).Str("host", host).Msg("Punycode conversion failed, keeping unicode form")
		ascii = host
	}

	if reason, detail := checkLabels(ascii); reason != "" {
		return Domain{}, &ValidationError{Input: raw, Reason: reason, Detail: detail}
	}

	registrable, err := extractRegistrable(ascii)
	if err != nil {
		return Domain{}, &ValidationError{Input: raw, Reason: RejectionNoSuffix, Detail: err.Error()}
	}
	return Domain{Name: registrable, PreferWWW: strings.HasPrefix(ascii, "www.")}, nil
}

// checkLabels validates an already-lowercased hostname against RFC 1035
// shape limits. Returns an empty reason when the host is acceptable.
func checkLabels(host string) (RejectionReason, string) {
	if len(host) > 253 {
		return RejectionBadLabels, "hostname longer than 253 characters"
	}
	if strings.Contains(host, "..") {
		return RejectionBadLabels, "consecutive dots"
	}
	for _, label := range strings.Split(host, ".") {
		if label == "" {
			return RejectionBadLabels, "empty label"
		}
		if len(label) > 63 {
			return RejectionBadLabels, fmt.Sprintf("label %q longer than 63 characters", label)
		}
		if strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return RejectionBadLabels, fmt.Sprintf("label %q starts or ends with hyphen", label)
		}
		if !labelPattern.MatchString(label) {
			return RejectionBadLabels, fmt.Sprintf("invalid characters in label %q", label)
		}
	}
	return "", ""
}

// extractRegistrable collapses a hostname to SLD + public suffix, handling
// multi-label suffixes like co.uk.
func extractRegistrable(host string) (string, error) {
	u, err := tld.Parse("https://" + host)
	if err != nil {
		return "", fmt.Errorf("public suffix extraction failed: %w", err)
	}
	if u.Domain == "" || u.TLD == "" {
		return "", fmt.Errorf("no registrable suffix in %q", host)
	}
	return u.Domain + "." + u.TLD, nil
}
