package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		reason RejectionReason
	}{
		{name: "bare domain", input: "google.com", want: "google.com"},
		{name: "www prefix stripped", input: "www.google.com", want: "google.com"},
		{name: "https url", input: "https://google.com", want: "google.com"},
		{name: "uppercase folded", input: "GOOGLE.COM", want: "google.com"},
		{name: "subdomain collapsed", input: "mail.google.com", want: "google.com"},
		{name: "path stripped", input: "https://google.com/search?q=test", want: "google.com"},
		{name: "port ignored", input: "google.com:8080", want: "google.com"},
		{name: "multi label suffix", input: "subdomain.google.co.uk", want: "google.co.uk"},
		{name: "trailing dot", input: "google.com.", want: "google.com"},
		{name: "surrounding whitespace", input: "  google.com  ", want: "google.com"},
		{name: "scheme typo", input: "htps://google.com", want: "google.com"},
		{name: "www typo", input: "wwww.google.com", want: "google.com"},
		{name: "quoted input", input: `"google.com"`, want: "google.com"},
		{name: "trailing comma", input: "google.com,", want: "google.com"},
		{name: "idn punycode", input: "münchen.de", want: "xn--mnchen-3ya.de"},
		{name: "ipv4 passthrough", input: "192.168.1.1", want: "192.168.1.1"},

		{name: "empty", input: "", reason: RejectionEmpty},
		{name: "placeholder none", input: "none", reason: RejectionPlaceholder},
		{name: "placeholder n/a", input: "N/A", reason: RejectionPlaceholder},
		{name: "placeholder dash", input: "-", reason: RejectionPlaceholder},
		{name: "email", input: "user@example.com", reason: RejectionEmail},
		{name: "phone number", input: "+1 (555) 123-4567", reason: RejectionPhoneNumber},
		{name: "no tld", input: "not-a-domain", reason: RejectionNoSuffix},
		{name: "bare word", input: "google", reason: RejectionNoSuffix},
		{name: "only suffix", input: ".com", reason: RejectionBadLabels},
		{name: "consecutive dots", input: "google..com", reason: RejectionBadLabels},
		{name: "javascript scheme", input: "javascript:alert(1)", reason: RejectionUnparseable},
		{name: "data scheme", input: "data://text/html,test", reason: RejectionBadScheme},
		{name: "ftp scheme", input: "ftp://google.com", reason: RejectionBadScheme},
		{name: "hyphen label edge", input: "-foo-.com", reason: RejectionBadLabels},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Validate(tt.input)
			if tt.reason != "" {
				require.Error(t, err)
				var verr *ValidationError
				require.True(t, errors.As(err, &verr))
				assert.Equal(t, tt.reason, verr.Reason)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Name)
		})
	}
}

func TestValidateIsDeterministic(t *testing.T) {
	a, err := Validate("x.com")
	require.NoError(t, err)
	b, err := Validate("www.x.com")
	require.NoError(t, err)
	assert.Equal(t, a.Name, b.Name, "www and bare forms must normalize identically")
}

func TestURLVariants(t *testing.T) {
	d := Domain{Name: "example.com"}
	assert.Equal(t, []string{
		"https://example.com",
		"https://www.example.com",
		"http://example.com",
		"http://www.example.com",
	}, d.URLVariants())

	www := Domain{Name: "example.com", PreferWWW: true}
	assert.Equal(t, []string{
		"https://www.example.com",
		"https://example.com",
		"http://www.example.com",
		"http://example.com",
	}, www.URLVariants())

	ip := Domain{Name: "192.168.1.1", IsIP: true}
	assert.Equal(t, []string{
		"https://192.168.1.1",
		"http://192.168.1.1",
	}, ip.URLVariants())
}

func TestValidatePreservesWWWPreference(t *testing.T) {
	bare, err := Validate("example.com")
	require.NoError(t, err)
	assert.False(t, bare.PreferWWW)

	www, err := Validate("https://www.example.com/about")
	require.NoError(t, err)
	assert.Equal(t, "example.com", www.Name)
	assert.True(t, www.PreferWWW)
}

func TestFileKey(t *testing.T) {
	tests := []struct {
		domain string
		want   string
	}{
		{"example.com", "example_com"},
		{"foo.co.uk", "foo_co_uk"},
		{"xn--mnchen-3ya.de", "xn__mnchen_3ya_de"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Domain{Name: tt.domain}.FileKey())
	}
}
