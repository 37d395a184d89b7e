package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	chromeDesktopUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	edgeDesktopUA   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36 Edg/120.0"
	safariIPhoneUA  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
	firefoxUA       = "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0"
	operaChromiumUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36 OPR/106.0"
	operaLegacyUA   = "Opera/9.80 (Windows NT 6.1) Presto/2.12.388 Version/12.16"
	whatsappUA      = "WhatsApp/2.23.20 iPhone_OS/17.0 Device/iPhone"
	instagramUA     = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Mobile/15E148 Instagram 300.0"
	facebookUA      = "Mozilla/5.0 (iPhone; CPU iPhone OS 16_6 like Mac OS X) AppleWebKit/605.1.15 [FBAN/FBIOS;FBAV/430.0]"
)

func TestClassifyDevice(t *testing.T) {
	tests := []struct {
		name      string
		userAgent string
		want      string
	}{
		{"desktop chrome", chromeDesktopUA, DeviceDesktop},
		{"iphone safari", safariIPhoneUA, DeviceMobile},
		{"android token", "Mozilla/5.0 (Linux; Android 14) Chrome/120.0 Mobile", DeviceMobile},
		{"ipad", "Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X) Safari/604.1", DeviceMobile},
		{"empty user agent", "", DeviceDesktop},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(Input{UserAgent: tt.userAgent}).Device)
		})
	}
}

func TestClassifyBrowser(t *testing.T) {
	tests := []struct {
		name      string
		userAgent string
		want      string
	}{
		// Edge embeds "chrome" and Chrome embeds "safari"; detection
		// order decides correctness.
		{"edge not chrome", edgeDesktopUA, "Edge"},
		{"chrome not safari", chromeDesktopUA, "Chrome"},
		{"safari", safariIPhoneUA, "Safari"},
		{"firefox", firefoxUA, "Firefox"},
		// Chromium Opera carries a "chrome" token that outranks "opr" in
		// the detection order, so it reports as Chrome.
		{"chromium opera reports as chrome", operaChromiumUA, "Chrome"},
		{"legacy opera", operaLegacyUA, "Opera"},
		{"instagram webview beats engine tokens", instagramUA, "Instagram"},
		{"facebook fban token", facebookUA, "Facebook"},
		{"whatsapp", whatsappUA, "WhatsApp"},
		{"unknown", "curl/8.4.0", BrowserOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(Input{UserAgent: tt.userAgent}).Browser)
		})
	}
}

func TestClassifyReferrerPrecedence(t *testing.T) {
	// utm_source wins over everything, capitalized as a label.
	c := Classify(Input{
		UserAgent: whatsappUA,
		Referrer:  "https://www.google.com/search?q=x",
		UTMSource: "newsletter",
	})
	assert.Equal(t, "Newsletter", c.Referrer)
	assert.True(t, c.IsShared)

	// Referrer host beats in-app UA sniffing.
	c = Classify(Input{
		UserAgent: whatsappUA,
		Referrer:  "https://www.google.com/search?q=x",
	})
	assert.Equal(t, "Google", c.Referrer)
	assert.False(t, c.IsShared)

	// In-app UA is the source of last resort.
	c = Classify(Input{UserAgent: whatsappUA})
	assert.Equal(t, "WhatsApp", c.Referrer)

	// Nothing usable at all.
	c = Classify(Input{UserAgent: chromeDesktopUA})
	assert.Equal(t, ReferrerUnknown, c.Referrer)
}

func TestClassifyReferrerHosts(t *testing.T) {
	tests := []struct {
		name     string
		referrer string
		want     string
	}{
		{"t.co short domain", "https://t.co/abc", "Twitter"},
		{"t.co subdomain", "https://link.t.co/abc", "Twitter"},
		{"t.co matches whole domains only", "https://support.t.com/page", "support.t.com"},
		{"linkedin subdomain", "https://lnkd.linkedin.com/feed", "LinkedIn"},
		{"www stripped", "https://www.reddit.com/r/golang", "Reddit"},
		{"unknown host passes through", "https://blog.example.org/post", "blog.example.org"},
		{"unparseable referrer ignored", "://notaurl", ReferrerUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(Input{Referrer: tt.referrer}).Referrer)
		})
	}
}
