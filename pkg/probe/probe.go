package probe

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Status classifies a domain's pre-scan reachability.
type Status string

const (
	StatusHealthy      Status = "healthy"
	StatusDNSFailure   Status = "dns_failure"
	StatusUnreachable  Status = "unreachable"
	StatusBotProtected Status = "bot_protected"
)

// Result is the outcome of one health check. BotProtected domains are
// still handed to the browser: a real browser sometimes clears walls that
// block plain HTTP clients, but the scan gets the hint for retry policy.
type Result struct {
	Domain     string `json:"domain"`
	Status     Status `json:"status"`
	HTTPStatus int    `json:"http_status,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

// Healthy reports whether the scan can proceed without special handling.
func (r Result) Healthy() bool {
	return r.Status == StatusHealthy
}

// Scannable reports whether the domain is worth sending to the browser at
// all. DNS failures and connection refusals are not.
func (r Result) Scannable() bool {
	return r.Status == StatusHealthy || r.Status == StatusBotProtected
}

var botWallStatuses = map[int]bool{
	http.StatusForbidden:          true,
	http.StatusTooManyRequests:    true,
	http.StatusServiceUnavailable: true,
}

var botWallMarkers = []string{
	"cloudflare",
	"just a moment",
	"attention required",
	"captcha",
	"access denied",
	"perimeterx",
	"px-captcha",
	"incapsula",
	"imperva",
	"ddos protection",
	"bot detection",
	"are you a robot",
}

// Checker performs lightweight reachability checks before the expensive
// browser scan is attempted.
type Checker struct {
	client   *http.Client
	resolver *net.Resolver
	timeout  time.Duration
}

func NewChecker() *Checker {
	timeout := viper.GetDuration("probe.timeout")
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Checker{
		client:   createHTTPClient(timeout),
		resolver: net.DefaultResolver,
		timeout:  timeout,
	}
}

// Check resolves the domain and fetches its landing page over HTTPS,
// falling back to plain HTTP. It never follows more than the client's
// default redirect chain and reads at most 64KB of body.
func (c *Checker) Check(ctx context.Context, domain string) Result {
	result := Result{Domain: domain}

	dnsCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if _, err := c.resolver.LookupHost(dnsCtx, domain); err != nil {
		log.Debug().Err(err).Str("domain", domain).Msg("DNS resolution failed")
		result.Status = StatusDNSFailure
		result.Detail = err.Error()
		return result
	}

	resp, err := c.fetch(ctx, "https://"+domain)
	if err != nil {
		resp, err = c.fetch(ctx, "http://"+domain)
	}
	if err != nil {
		result.Status = StatusUnreachable
		result.Detail = err.Error()
		return result
	}
	defer resp.Body.Close()

	result.HTTPStatus = resp.StatusCode
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	result.Status, result.Detail = classifyResponse(resp.StatusCode, body, resp.Header)
	return result
}

// classifyResponse decides whether an HTTP response looks like a bot wall.
// Body markers only count on error statuses: a healthy page may mention
// captchas without sitting behind one.
func classifyResponse(status int, body []byte, header http.Header) (Status, string) {
	if botWallStatuses[status] || (status >= 400 && containsBotWallMarker(body, header)) {
		return StatusBotProtected, http.StatusText(status)
	}
	return StatusHealthy, ""
}

func (c *Checker) fetch(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	return c.client.Do(req)
}

func containsBotWallMarker(body []byte, header http.Header) bool {
	if strings.Contains(strings.ToLower(header.Get("Server")), "cloudflare") && header.Get("cf-mitigated") != "" {
		return true
	}
	lower := strings.ToLower(string(body))
	for _, marker := range botWallMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
