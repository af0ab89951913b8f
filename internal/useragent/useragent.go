package useragent

import "strings"

// BrowserInfo holds the dimensions parsed out of a User-Agent header.
type BrowserInfo struct {
	OperatingSystem string `json:"operating_system"`
	Browser         string `json:"browser"`
	Device          string `json:"device"`
}

const Unknown = "Unknown"

type rule struct {
	tokens []string
	label  string
}

// Rule order is load-bearing: some tokens are substrings of others, so the
// more specific entry has to sit above the generic one (Edg before Chrome,
// iPad/iPod before iPhone, Android and Ubuntu before Linux).
var osRules = []rule{
	{[]string{"windows nt 10"}, "Windows 10"},
	{[]string{"windows nt 6.3"}, "Windows 8.1"},
	{[]string{"windows nt 6.2"}, "Windows 8"},
	{[]string{"windows nt 6.1"}, "Windows 7"},
	{[]string{"windows nt 6.0"}, "Windows Vista"},
	{[]string{"windows nt 5.2"}, "Windows Server 2003/XP x64"},
	{[]string{"windows nt 5.1", "windows xp"}, "Windows XP"},
	{[]string{"windows nt 5.0"}, "Windows 2000"},
	{[]string{"windows me"}, "Windows ME"},
	{[]string{"win98"}, "Windows 98"},
	{[]string{"win95"}, "Windows 95"},
	{[]string{"win16"}, "Windows 3.11"},
	{[]string{"macintosh", "mac os x"}, "Mac OS X"},
	{[]string{"mac_powerpc"}, "Mac OS 9"},
	{[]string{"iphone", "ipod", "ipad"}, "iOS"},
	{[]string{"android"}, "Android"},
	{[]string{"ubuntu"}, "Ubuntu"},
	{[]string{"linux"}, "Linux"},
	{[]string{"blackberry"}, "BlackBerry"},
	{[]string{"webos"}, "Mobile"},
}

var browserRules = []rule{
	{[]string{"msie", "trident"}, "Internet Explorer"},
	{[]string{"edge", "edg"}, "Edge"},
	{[]string{"firefox"}, "Firefox"},
	{[]string{"brave"}, "Brave"},
	{[]string{"opera", "opr"}, "Opera"},
	{[]string{"chrome"}, "Chrome"},
	{[]string{"safari"}, "Safari"},
}

var deviceRules = []rule{
	{[]string{"ipad"}, "iPad"},
	{[]string{"ipod"}, "iPod"},
	{[]string{"iphone"}, "iPhone"},
	{[]string{"android"}, "Android"},
	{[]string{"blackberry"}, "BlackBerry"},
	{[]string{"windows phone"}, "Windows Phone"},
	{[]string{"mobile"}, "Mobile"},
	{[]string{"tablet"}, "Tablet"},
}

// Classify parses a raw User-Agent into OS, browser and device labels.
// An empty user agent resolves every dimension to Unknown.
func Classify(userAgent string) BrowserInfo {
	if userAgent == "" {
		return BrowserInfo{
			OperatingSystem: Unknown,
			Browser:         Unknown,
			Device:          Unknown,
		}
	}

	ua := strings.ToLower(userAgent)

	return BrowserInfo{
		OperatingSystem: firstMatch(osRules, ua),
		Browser:         firstMatch(browserRules, ua),
		Device:          firstMatch(deviceRules, ua),
	}
}

func firstMatch(rules []rule, ua string) string {
	for _, r := range rules {
		for _, token := range r.tokens {
			if strings.Contains(ua, token) {
				return r.label
			}
		}
	}
	return Unknown
}
