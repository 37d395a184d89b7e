// Package classifier turns raw request metadata into a visitor
// classification: device type, browser, referrer source and shared flag.
// Classification is a pure function of its input; geo data is carried
// through verbatim from upstream proxy headers and never re-resolved.
package classifier

import (
	"net/url"
	"regexp"
	"strings"
)

// Fallback labels used when no rule matches.
const (
	DeviceMobile    = "Mobile"
	DeviceDesktop   = "Desktop"
	BrowserOther    = "Other"
	ReferrerUnknown = "Unknown"
)

// Input is the request metadata the classifier inspects.
type Input struct {
	UserAgent string
	Referrer  string
	UTMSource string
}

// Classification is the result of classifying one visit.
type Classification struct {
	Device   string
	Browser  string
	Referrer string
	IsShared bool
}

// Location is visitor geography as reported by the upstream proxy.
type Location struct {
	Country     string
	City        string
	Region      string
	CountryCode string
	Latitude    float64
	Longitude   float64
}

var mobilePattern = regexp.MustCompile(`(?i)mobile|android|iphone|ipad|ipod`)

// knownPlatforms maps referrer hostname substrings to friendly names.
// Ordered so that more specific fragments win over generic ones.
var knownPlatforms = []struct {
	fragment string
	name     string
}{
	{"google", "Google"},
	{"facebook", "Facebook"},
	{"fb.com", "Facebook"},
	{"instagram", "Instagram"},
	{"twitter", "Twitter"},
	{"t.co", "Twitter"},
	{"linkedin", "LinkedIn"},
	{"reddit", "Reddit"},
	{"tiktok", "TikTok"},
	{"youtube", "YouTube"},
	{"pinterest", "Pinterest"},
	{"whatsapp", "WhatsApp"},
	{"telegram", "Telegram"},
	{"discord", "Discord"},
	{"slack", "Slack"},
}

// inAppBrowsers maps user-agent substrings of embedded webviews to the
// platform the visit came from. Used both as a referrer source of last
// resort and for browser detection, where app webviews take priority over
// the generic engine tokens they embed.
var inAppBrowsers = []struct {
	fragment string
	name     string
}{
	{"whatsapp", "WhatsApp"},
	{"instagram", "Instagram"},
	{"fban", "Facebook"},
	{"fbav", "Facebook"},
	{"fb_iab", "Facebook"},
	{"facebook", "Facebook"},
	{"twitter", "Twitter"},
	{"linkedin", "LinkedIn"},
	{"snapchat", "Snapchat"},
	{"tiktok", "TikTok"},
	{"telegram", "Telegram"},
	{"line", "Line"},
	{"kakaotalk", "KakaoTalk"},
	{"micromessenger", "WeChat"},
	{"wechat", "WeChat"},
}

// Classify maps request metadata to a classification tuple. The referrer
// precedence is load-bearing: an explicit utm_source beats the HTTP
// referrer, which beats in-app browser sniffing.
func Classify(input Input) Classification {
	return Classification{
		Device:   classifyDevice(input.UserAgent),
		Browser:  classifyBrowser(input.UserAgent),
		Referrer: classifyReferrer(input),
		IsShared: input.UTMSource != "",
	}
}

func classifyDevice(userAgent string) string {
	if mobilePattern.MatchString(userAgent) {
		return DeviceMobile
	}
	return DeviceDesktop
}

// browserApps are the webviews reported as the browser itself, checked
// before the generic engine tokens they embed.
var browserApps = []struct {
	fragment string
	name     string
}{
	{"instagram", "Instagram"},
	{"whatsapp", "WhatsApp"},
	{"fban", "Facebook"},
	{"fbav", "Facebook"},
	{"fb_iab", "Facebook"},
	{"facebook", "Facebook"},
	{"twitter", "Twitter"},
	{"linkedin", "LinkedIn"},
}

// classifyBrowser detects the browser from the user agent. In-app
// webviews are checked first because they embed the host engine's tokens;
// Edge must be checked before Chrome (its UA contains "chrome") and
// Chrome before Safari (its UA contains "safari").
func classifyBrowser(userAgent string) string {
	ua := strings.ToLower(userAgent)

	for _, app := range browserApps {
		if strings.Contains(ua, app.fragment) {
			return app.name
		}
	}

	switch {
	case strings.Contains(ua, "edg"):
		return "Edge"
	case strings.Contains(ua, "chrome"):
		return "Chrome"
	case strings.Contains(ua, "safari"):
		return "Safari"
	case strings.Contains(ua, "firefox"):
		return "Firefox"
	case strings.Contains(ua, "opr"), strings.Contains(ua, "opera"):
		return "Opera"
	default:
		return BrowserOther
	}
}

func classifyReferrer(input Input) string {
	if input.UTMSource != "" {
		return capitalizeFirst(input.UTMSource)
	}

	if input.Referrer != "" {
		if name := referrerSource(input.Referrer); name != "" {
			return name
		}
	}

	// No referrer, no UTM: the visit may still come from a share opened
	// inside an app's embedded browser.
	ua := strings.ToLower(input.UserAgent)
	for _, app := range inAppBrowsers {
		if strings.Contains(ua, app.fragment) {
			return app.name
		}
	}

	return ReferrerUnknown
}

// referrerSource resolves a referrer URL to a friendly platform name, or
// the bare hostname when the platform is not in the known table.
func referrerSource(referrer string) string {
	parsed, err := url.Parse(referrer)
	if err != nil {
		return ""
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return ""
	}
	host = strings.TrimPrefix(host, "www.")

	for _, platform := range knownPlatforms {
		if hostMatches(host, platform.fragment) {
			return platform.name
		}
	}
	return host
}

// hostMatches applies a platform fragment to a hostname. Fragments with
// a dot are whole domains and must match the host exactly or as a
// parent domain; "t.co" must not match reddit.com.
func hostMatches(host, fragment string) bool {
	if strings.Contains(fragment, ".") {
		return host == fragment || strings.HasSuffix(host, "."+fragment)
	}
	return strings.Contains(host, fragment)
}

// capitalizeFirst capitalizes the first letter of a string
func capitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
