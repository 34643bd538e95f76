package detect

// TrackerType identifies one third-party tracking pixel vendor.
type TrackerType string

const (
	MetaPixel       TrackerType = "meta_pixel"
	GoogleAnalytics TrackerType = "google_analytics"
	GoogleAds       TrackerType = "google_ads"
	TikTokPixel     TrackerType = "tiktok_pixel"
	LinkedInInsight TrackerType = "linkedin_insight"
	TwitterPixel    TrackerType = "twitter_pixel"
	PinterestTag    TrackerType = "pinterest_tag"
	SnapchatPixel   TrackerType = "snapchat_pixel"
)

// RiskLevel is the vendor's default privacy risk classification.
type RiskLevel string

const (
	RiskHigh   RiskLevel = "high"
	RiskMedium RiskLevel = "medium"
	RiskLow    RiskLevel = "low"
)

// Evidence holds the raw signals accumulated for one tracker during one
// scan: matched outgoing requests, script tags, cookies, JS globals, DOM
// elements and meta tags.
type Evidence struct {
	NetworkRequests []string `json:"network_requests"`
	ScriptTags      []string `json:"script_tags"`
	CookiesSet      []string `json:"cookies_set"`
	GlobalVariables []string `json:"global_variables"`
	DOMElements     []string `json:"dom_elements"`
	MetaTags        []string `json:"meta_tags"`
}

// Detection is the synthesized positive result for one tracker on one
// domain. It is only built when at least one piece of evidence beyond meta
// tags exists.
type Detection struct {
	Type          TrackerType `json:"type"`
	Evidence      Evidence    `json:"evidence"`
	RiskLevel     RiskLevel   `json:"risk_level"`
	HIPAARelevant bool        `json:"hipaa_concern"`
	Description   string      `json:"description,omitempty"`
	TrackerID     string      `json:"tracker_id,omitempty"`
}
