package detect

import "regexp"

// Signature is the static data table describing how one vendor's pixel
// shows up in network traffic, scripts, cookies, globals and the DOM. The
// detector logic is shared; only these tables differ per vendor.
type Signature struct {
	Type          TrackerType
	RiskLevel     RiskLevel
	HIPAARelevant bool

	// Domains are substring-matched against outgoing request URLs.
	Domains []string
	// ScriptPatterns match script tag markup.
	ScriptPatterns []*regexp.Regexp
	// CookieNames match cookie names exactly; a trailing underscore
	// marks a prefix match (e.g. "_ga_" matches "_ga_ABC123").
	CookieNames []string
	// GlobalVariables are JS global names probed on the loaded page.
	GlobalVariables []string
	// NoscriptMarkers are substrings looked up in noscript fallback markup.
	NoscriptMarkers []string
	// ImgSelector selects tracking pixel img elements, empty when the
	// vendor has no img fallback worth matching.
	ImgSelector string
	// MetaSelector selects vendor meta tags, empty when the vendor does
	// not use them.
	MetaSelector string

	// IDFromURL and IDFromScript extract the tracker identifier; the
	// first capture group wins within a pattern, the most recently
	// matched candidate wins overall (last-write, a known limitation).
	IDFromURL    []*regexp.Regexp
	IDFromScript []*regexp.Regexp
}

var signatures = []Signature{
	{
		Type:          MetaPixel,
		RiskLevel:     RiskHigh,
		HIPAARelevant: true,
		Domains: []string{
			"facebook.com/tr",
			"www.facebook.com/tr",
			"connect.facebook.net",
			"fbcdn.net",
			"facebook.com/signals",
			"facebook.com/v2/catalog_match",
		},
		ScriptPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)fbq\s*\(\s*['"]init['"]`),
			regexp.MustCompile(`(?i)fbq\s*\(\s*['"]track['"]`),
			regexp.MustCompile(`(?i)facebook\.com/tr\?`),
			regexp.MustCompile(`(?i)connect\.facebook\.net.*fbevents\.js`),
			regexp.MustCompile(`(?i)_fbq\s*=`),
		},
		CookieNames:     []string{"_fbp", "_fbc", "fbm_", "xs", "fr", "datr"},
		GlobalVariables: []string{"fbq", "_fbq", "FB", "fbAsyncInit"},
		NoscriptMarkers: []string{"facebook.com/tr"},
		MetaSelector:    `meta[property^="fb:"], meta[property^="og:"]`,
		IDFromURL: []*regexp.Regexp{
			regexp.MustCompile(`[?&]id=(\d+)`),
		},
		IDFromScript: []*regexp.Regexp{
			regexp.MustCompile(`fbq\s*\(\s*['"]init['"]\s*,\s*['"](\d+)['"]`),
		},
	},
	{
		Type:          GoogleAnalytics,
		RiskLevel:     RiskHigh,
		HIPAARelevant: true,
		Domains: []string{
			"google-analytics.com/analytics.js",
			"google-analytics.com/ga.js",
			"google-analytics.com/collect",
			"google-analytics.com/g/collect",
			"googletagmanager.com/gtag/js",
			"google-analytics.com/gtag/js",
			"google-analytics.com/j/collect",
			"stats.g.doubleclick.net",
		},
		ScriptPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)google-analytics\.com/(analytics|ga|gtag)`),
			regexp.MustCompile(`(?i)gtag\s*\(\s*['"]config['"]`),
			regexp.MustCompile(`(?i)gtag\s*\(\s*['"]event['"]`),
			regexp.MustCompile(`(?i)ga\s*\(\s*['"]create['"]`),
			regexp.MustCompile(`(?i)ga\s*\(\s*['"]send['"]`),
			regexp.MustCompile(`(?i)_gaq\.push`),
			regexp.MustCompile(`(?i)UA-\d+-\d+`),
			regexp.MustCompile(`G-[A-Z0-9]+`),
		},
		CookieNames:     []string{"_ga", "_gid", "_gat", "_ga_", "__utma", "__utmb", "__utmc", "__utmz", "_gac_"},
		GlobalVariables: []string{"ga", "gtag", "_gaq", "dataLayer", "google_tag_manager"},
		IDFromURL: []*regexp.Regexp{
			regexp.MustCompile(`[?&]tid=(UA-\d+-\d+|G-[A-Z0-9]+)`),
		},
		IDFromScript: []*regexp.Regexp{
			regexp.MustCompile(`(UA-\d+-\d+|G-[A-Z0-9]{4,})`),
		},
	},
	{
		Type:          GoogleAds,
		RiskLevel:     RiskHigh,
		HIPAARelevant: true,
		Domains: []string{
			"googleadservices.com/pagead/conversion",
			"google.com/pagead/conversion",
			"googleads.g.doubleclick.net",
			"googleadservices.com/pagead/conversion.js",
			"google.com/ads/ga-audiences",
		},
		ScriptPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)googleadservices\.com/pagead/conversion`),
			regexp.MustCompile(`(?i)gtag\s*\(\s*['"]event['"]\s*,\s*['"]conversion['"]`),
			regexp.MustCompile(`(?i)google_conversion_id`),
			regexp.MustCompile(`(?i)google_remarketing_only`),
			regexp.MustCompile(`AW-\d+`),
		},
		CookieNames:     []string{"_gcl_aw", "_gcl_dc", "_gcl_au", "IDE", "test_cookie", "NID"},
		GlobalVariables: []string{"google_trackConversion", "google_conversion_id", "google_remarketing_only"},
		ImgSelector:     `img[src*="googleadservices.com/pagead/conversion"]`,
		IDFromURL: []*regexp.Regexp{
			regexp.MustCompile(`(AW-\d+)`),
			regexp.MustCompile(`[?&]id=(\d+)`),
		},
		IDFromScript: []*regexp.Regexp{
			regexp.MustCompile(`(AW-\d+)`),
			regexp.MustCompile(`google_conversion_id['"]?\s*[:=]\s*['"]?(\d+)`),
		},
	},
	{
		Type:          TikTokPixel,
		RiskLevel:     RiskHigh,
		HIPAARelevant: true,
		Domains: []string{
			"analytics.tiktok.com",
			"business-api.tiktok.com",
			"partners.tiktok.com",
		},
		ScriptPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)analytics\.tiktok\.com`),
			regexp.MustCompile(`(?i)business-api\.tiktok\.com`),
			regexp.MustCompile(`(?i)partners\.tiktok\.com`),
			regexp.MustCompile(`(?i)ttq\s*\(\s*['"]init['"]\s*,`),
			regexp.MustCompile(`(?i)ttq\s*\(\s*['"]track['"]\s*,`),
		},
		CookieNames:     []string{"_ttp", "ttwid", "ttclid"},
		GlobalVariables: []string{"ttq"},
		NoscriptMarkers: []string{"analytics.tiktok.com", "business-api.tiktok.com"},
		IDFromURL: []*regexp.Regexp{
			regexp.MustCompile(`[?&]pixel_code=([^&]+)`),
			regexp.MustCompile(`ttclid=([^&]+)`),
		},
		IDFromScript: []*regexp.Regexp{
			regexp.MustCompile(`ttq\s*\(\s*['"]init['"]\s*,\s*['"]([^'"]+)['"]\s*[,)]`),
		},
	},
	{
		Type:          LinkedInInsight,
		RiskLevel:     RiskHigh,
		HIPAARelevant: true,
		Domains: []string{
			"px.ads.linkedin.com",
			"analytics.linkedin.com",
			"snap.licdn.com",
		},
		ScriptPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)px\.ads\.linkedin\.com`),
			regexp.MustCompile(`(?i)analytics\.linkedin\.com`),
			regexp.MustCompile(`(?i)_linkedin_partner_id`),
			regexp.MustCompile(`(?i)_linkedin_data_partner_ids`),
			regexp.MustCompile(`(?i)snap\.licdn\.com/li\.lms-analytics`),
		},
		CookieNames:     []string{"li_fat_id", "lidc", "bcookie", "li_sugr", "UserMatchHistory"},
		GlobalVariables: []string{"_linkedin_partner_id", "_linkedin_data_partner_ids"},
		NoscriptMarkers: []string{"px.ads.linkedin.com"},
		ImgSelector:     `img[src*="px.ads.linkedin.com"]`,
		IDFromURL: []*regexp.Regexp{
			regexp.MustCompile(`[?&]pid=(\d+)`),
			regexp.MustCompile(`li_fat_id=([^&]+)`),
		},
		IDFromScript: []*regexp.Regexp{
			regexp.MustCompile(`_linkedin_partner_id\s*=\s*['"]?(\d+)['"]?`),
		},
	},
	{
		Type:          TwitterPixel,
		RiskLevel:     RiskHigh,
		HIPAARelevant: true,
		Domains: []string{
			"analytics.twitter.com",
			"ads-twitter.com",
			"t.co/i/adsct",
			"static.ads-twitter.com",
		},
		ScriptPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)analytics\.twitter\.com`),
			regexp.MustCompile(`(?i)static\.ads-twitter\.com/uwt\.js`),
			regexp.MustCompile(`(?i)platform\.twitter\.com/oct\.js`),
			regexp.MustCompile(`(?i)t\.co/i/adsct`),
			regexp.MustCompile(`(?i)twttr\.conversion\.trackPid`),
		},
		CookieNames:     []string{"personalization_id", "guest_id", "ct0", "auth_token"},
		GlobalVariables: []string{"twttr", "twq"},
		NoscriptMarkers: []string{"analytics.twitter.com", "t.co/i/adsct", "ads-twitter.com"},
		ImgSelector:     `img[src*="analytics.twitter.com"], img[src*="t.co/i/adsct"]`,
		MetaSelector:    `meta[name^="twitter:"]`,
		IDFromURL: []*regexp.Regexp{
			regexp.MustCompile(`txn_id=([^&]+)`),
			regexp.MustCompile(`[?&]p_id=([^&]+)`),
		},
		IDFromScript: []*regexp.Regexp{
			regexp.MustCompile(`twq\s*\(\s*['"]init['"]\s*,\s*['"]([^'"]+)['"]\s*\)`),
		},
	},
	{
		Type:          PinterestTag,
		RiskLevel:     RiskMedium,
		HIPAARelevant: true,
		Domains: []string{
			"ct.pinterest.com",
			"s.pinimg.com/ct",
			"analytics.pinterest.com",
		},
		ScriptPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)ct\.pinterest\.com`),
			regexp.MustCompile(`(?i)s\.pinimg\.com/ct/core\.js`),
			regexp.MustCompile(`(?i)pintrk\s*\(\s*['"]load['"]\s*,`),
			regexp.MustCompile(`(?i)pintrk\s*\(\s*['"]track['"]\s*,`),
			regexp.MustCompile(`(?i)pintrk\s*\(\s*['"]page['"]\s*\)`),
		},
		CookieNames:     []string{"_pinterest_ct", "_pinterest_ct_rt", "_epik", "_derived_epik", "_pin_unauth", "_pinterest_ct_ua"},
		GlobalVariables: []string{"pintrk"},
		NoscriptMarkers: []string{"ct.pinterest.com"},
		ImgSelector:     `img[src*="ct.pinterest.com"]`,
		MetaSelector:    `meta[name="p:domain_verify"], meta[property^="pinterest:"]`,
		IDFromURL: []*regexp.Regexp{
			regexp.MustCompile(`[?&]tid=([^&]+)`),
			regexp.MustCompile(`/v3/tid/(\d+)`),
		},
		IDFromScript: []*regexp.Regexp{
			regexp.MustCompile(`pintrk\s*\(\s*['"]load['"]\s*,\s*['"]([^'"]+)['"]\s*[,)]`),
		},
	},
	{
		Type:          SnapchatPixel,
		RiskLevel:     RiskMedium,
		HIPAARelevant: true,
		Domains: []string{
			"sc-static.net",
			"tr.snapchat.com",
			"app.snapchat.com",
		},
		ScriptPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)sc-static\.net/scevent\.min\.js`),
			regexp.MustCompile(`(?i)tr\.snapchat\.com`),
			regexp.MustCompile(`(?i)snaptr\s*\(\s*['"]init['"]\s*,`),
			regexp.MustCompile(`(?i)snaptr\s*\(\s*['"]track['"]\s*,`),
		},
		CookieNames:     []string{"_scid", "_sctr", "sc_at"},
		GlobalVariables: []string{"snaptr"},
		NoscriptMarkers: []string{"tr.snapchat.com"},
		ImgSelector:     `img[src*="tr.snapchat.com"]`,
		IDFromURL: []*regexp.Regexp{
			regexp.MustCompile(`[?&]p=([^&]+)`),
			regexp.MustCompile(`[?&]account_id=([^&]+)`),
		},
		IDFromScript: []*regexp.Regexp{
			regexp.MustCompile(`snaptr\s*\(\s*['"]init['"]\s*,\s*['"]([^'"]+)['"]\s*[,)]`),
		},
	},
}

// Signatures returns the fixed closed set of vendor signatures.
func Signatures() []Signature {
	return signatures
}

// SignatureFor looks up a vendor signature by tracker type.
func SignatureFor(t TrackerType) (Signature, bool) {
	for _, sig := range signatures {
		if sig.Type == t {
			return sig, true
		}
	}
	return Signature{}, false
}
