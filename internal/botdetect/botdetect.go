package botdetect

import (
	"fmt"
	"net"
	"strings"
)

// Substring signatures of crawlers, link previewers, monitors and HTTP
// client libraries. Matched against the lower-cased user agent.
var botPatterns = []string{
	"bot", "crawler", "spider", "scraper", "facebookexternalhit",
	"facebookcatalog", "twitterbot", "linkedinbot", "whatsapp",
	"slackbot", "discord", "telegram", "skype", "pinterest",
	"tumblr", "reddit", "quora", "lighthouse", "gtmetrix",
	"pingdom", "uptimerobot", "statuscake", "newrelic",
	"appinsights", "googlebot", "bingbot", "yandexbot",
	"duckduckbot", "baiduspider", "sogou", "exabot", "konqueror",
	"ia_archiver", "ahrefsbot", "semrushbot", "dotbot", "mj12bot",
	"blexbot", "dataprovider", "dataforseo", "megaindex",
	"serpstatbot", "petalbot", "amazonbot", "applebot",
	"chrome-lighthouse", "headlesschrome", "phantomjs", "selenium",
	"puppeteer", "playwright", "webdriver", "wget", "curl",
	"python-requests", "python-urllib", "go-http-client",
	"java/", "apache-httpclient", "okhttp", "postman",
	"insomnia", "paw/", "rest-client", "ruby/", "perl/",
	"php/", "node-fetch", "axios/", "got/", "superagent",
}

// Known crawler network ranges (Google, Facebook, Twitter, Microsoft/Bing).
var botIPRanges = []string{
	"66.249.64.0/19",
	"66.249.64.0/20",
	"66.249.80.0/20",
	"31.13.24.0/21",
	"31.13.64.0/18",
	"66.220.144.0/20",
	"69.63.176.0/20",
	"69.171.224.0/19",
	"74.119.76.0/22",
	"199.16.156.0/22",
	"199.59.148.0/22",
	"40.77.167.0/24",
	"157.55.39.0/24",
	"207.46.13.0/24",
}

var botNames = []struct {
	pattern string
	name    string
}{
	{"googlebot", "Google"},
	{"bingbot", "Bing"},
	{"slurp", "Yahoo"},
	{"duckduckbot", "DuckDuckGo"},
	{"baiduspider", "Baidu"},
	{"yandexbot", "Yandex"},
	{"facebookexternalhit", "Facebook"},
	{"twitterbot", "Twitter"},
	{"linkedinbot", "LinkedIn"},
	{"whatsapp", "WhatsApp"},
	{"telegram", "Telegram"},
	{"slackbot", "Slack"},
	{"discord", "Discord"},
	{"ahrefsbot", "Ahrefs"},
	{"semrushbot", "SEMrush"},
	{"lighthouse", "Google Lighthouse"},
	{"gtmetrix", "GTmetrix"},
	{"pingdom", "Pingdom"},
	{"uptimerobot", "UptimeRobot"},
}

type Detector struct{}

func NewDetector() *Detector {
	return &Detector{}
}

// IsBot reports whether the request looks automated. The IP address is
// optional; when supplied it must be a valid IPv4/IPv6 literal. A malformed
// value is a caller bug and fails hard with ErrInvalidIPAddress.
func (d *Detector) IsBot(userAgent, ipAddress string) (bool, error) {
	var ip net.IP
	if ipAddress != "" {
		ip = net.ParseIP(ipAddress)
		if ip == nil {
			return false, fmt.Errorf("%w: %q", ErrInvalidIPAddress, ipAddress)
		}
	}

	// No user agent at all is suspicious.
	if userAgent == "" || userAgent == "0" {
		return true, nil
	}

	ua := strings.ToLower(userAgent)
	for _, pattern := range botPatterns {
		if strings.Contains(ua, pattern) {
			return true, nil
		}
	}

	if ip != nil && inBotRange(ip) {
		return true, nil
	}

	// No recognizable browser engine token means an automated client.
	if !strings.Contains(ua, "mozilla") &&
		!strings.Contains(ua, "opera") &&
		!strings.Contains(ua, "webkit") {
		return true, nil
	}

	return false, nil
}

// BotName maps a user agent to a human-readable bot label, or "" when the
// agent is not a tagged bot.
func (d *Detector) BotName(userAgent string) string {
	if userAgent == "" || userAgent == "0" {
		return ""
	}

	ua := strings.ToLower(userAgent)
	for _, entry := range botNames {
		if strings.Contains(ua, entry.pattern) {
			return entry.name
		}
	}
	return ""
}

func inBotRange(ip net.IP) bool {
	for _, rangeSpec := range botIPRanges {
		if ipInRange(ip, rangeSpec) {
			return true
		}
	}
	return false
}

// ipInRange tests CIDR membership; range entries without a "/" compare by
// exact address equality.
func ipInRange(ip net.IP, rangeSpec string) bool {
	if !strings.Contains(rangeSpec, "/") {
		other := net.ParseIP(rangeSpec)
		return other != nil && other.Equal(ip)
	}

	_, network, err := net.ParseCIDR(rangeSpec)
	if err != nil {
		return false
	}
	return network.Contains(ip)
}
