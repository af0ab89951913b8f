package capture

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitwatch/request-analytics/internal/botdetect"
	"github.com/hitwatch/request-analytics/internal/config"
	"github.com/hitwatch/request-analytics/internal/event"
	"github.com/hitwatch/request-analytics/internal/geo"
	"github.com/hitwatch/request-analytics/internal/privacy"
	"github.com/hitwatch/request-analytics/pkg/cache"
	"go.uber.org/zap"
)

const browserUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

type pipelineOptions struct {
	captureBots bool
	respectDNT  bool
	anonymizeIP bool
	ignorePaths []string
}

func newTestPipeline(opts pipelineOptions) *Pipeline {
	resolver := geo.NewResolver(config.GeolocationConfig{Enabled: false}, cache.New(), zap.NewNop())

	return NewPipeline(
		opts.captureBots,
		privacy.NewGate(opts.anonymizeIP, opts.respectDNT),
		botdetect.NewDetector(),
		NewIgnorePathMatcher(opts.ignorePaths),
		resolver,
		zap.NewNop(),
	)
}

func browserRequest() RequestInfo {
	return RequestInfo{
		Path:           "/home",
		Method:         "GET",
		UserAgent:      browserUA,
		AcceptLanguage: "en-US,en;q=0.9",
		AcceptEncoding: "gzip, deflate",
		Referrer:       "https://www.example.com/landing",
		IPAddress:      "203.0.113.10",
		QueryParams:    map[string][]string{"page": {"2"}},
		VisitorCookie:  "visitor-cookie-id",
	}
}

func TestCaptureBuildsEvent(t *testing.T) {
	p := newTestPipeline(pipelineOptions{respectDNT: true})

	ev, err := p.Capture(
		context.Background(),
		browserRequest(),
		ResponseInfo{Body: "<html><head><title>Home Page</title></head></html>", Status: 200},
		event.CategoryWeb,
		42*time.Millisecond,
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev == nil {
		t.Fatal("expected an event")
	}

	if ev.Path != "/home" {
		t.Errorf("path: %q", ev.Path)
	}
	if ev.PageTitle != "Home Page" {
		t.Errorf("page title: %q", ev.PageTitle)
	}
	if ev.Browser != "Chrome" || ev.OperatingSystem != "Windows 10" {
		t.Errorf("classification: %s / %s", ev.Browser, ev.OperatingSystem)
	}
	if ev.VisitorID != "visitor-cookie-id" {
		t.Errorf("visitor id: %q", ev.VisitorID)
	}
	if ev.SessionID == "" {
		t.Error("session id must be derived")
	}
	if ev.IPAddress != "203.0.113.10" {
		t.Errorf("ip must pass through when anonymization is off: %q", ev.IPAddress)
	}
	if ev.ResponseTime != 42 {
		t.Errorf("response time ms: %d", ev.ResponseTime)
	}
	if ev.RequestCategory != event.CategoryWeb {
		t.Errorf("category: %q", ev.RequestCategory)
	}
	if err := ev.Validate(); err != nil {
		t.Errorf("built event must validate: %v", err)
	}
}

func TestCaptureRejectsIgnoredPath(t *testing.T) {
	p := newTestPipeline(pipelineOptions{ignorePaths: []string{"home"}})

	ev, err := p.Capture(context.Background(), browserRequest(), ResponseInfo{}, event.CategoryWeb, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev != nil {
		t.Error("ignored path must not produce an event")
	}
}

func TestCaptureHonorsDNT(t *testing.T) {
	req := browserRequest()
	req.DNTPresent = true

	p := newTestPipeline(pipelineOptions{respectDNT: true})
	ev, err := p.Capture(context.Background(), req, ResponseInfo{}, event.CategoryWeb, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev != nil {
		t.Error("DNT with respect_dnt must suppress capture")
	}

	p = newTestPipeline(pipelineOptions{respectDNT: false})
	ev, err = p.Capture(context.Background(), req, ResponseInfo{}, event.CategoryWeb, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev == nil {
		t.Error("DNT without respect_dnt must capture")
	}
}

func TestCaptureRejectsBots(t *testing.T) {
	req := browserRequest()
	req.UserAgent = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"

	p := newTestPipeline(pipelineOptions{})
	ev, err := p.Capture(context.Background(), req, ResponseInfo{}, event.CategoryWeb, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev != nil {
		t.Error("bot traffic must be rejected when bot capture is off")
	}
}

func TestCaptureKeepsBotsWhenEnabled(t *testing.T) {
	req := browserRequest()
	req.UserAgent = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"

	p := newTestPipeline(pipelineOptions{captureBots: true})
	ev, err := p.Capture(context.Background(), req, ResponseInfo{}, event.CategoryWeb, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev == nil {
		t.Fatal("bot capture enabled must produce an event")
	}
}

func TestCapturePropagatesInvalidIP(t *testing.T) {
	req := browserRequest()
	req.IPAddress = "not-an-ip"

	p := newTestPipeline(pipelineOptions{})
	_, err := p.Capture(context.Background(), req, ResponseInfo{}, event.CategoryWeb, 0)
	if !errors.Is(err, botdetect.ErrInvalidIPAddress) {
		t.Fatalf("expected ErrInvalidIPAddress, got %v", err)
	}
}

func TestCaptureAnonymizesIP(t *testing.T) {
	p := newTestPipeline(pipelineOptions{anonymizeIP: true})

	ev, err := p.Capture(context.Background(), browserRequest(), ResponseInfo{}, event.CategoryWeb, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.IPAddress != "203.0.113.0" {
		t.Errorf("expected anonymized ip, got %q", ev.IPAddress)
	}
}

func TestCaptureUsesEdgeCountryFallback(t *testing.T) {
	req := browserRequest()
	req.EdgeCountry = "DE"

	p := newTestPipeline(pipelineOptions{})
	ev, err := p.Capture(context.Background(), req, ResponseInfo{}, event.CategoryWeb, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Country != "DE" {
		t.Errorf("expected edge country fallback, got %q", ev.Country)
	}
}

func TestCaptureDerivesVisitorWithoutCookie(t *testing.T) {
	req := browserRequest()
	req.VisitorCookie = ""

	p := newTestPipeline(pipelineOptions{})
	ev, err := p.Capture(context.Background(), req, ResponseInfo{}, event.CategoryWeb, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ev.VisitorID) != 64 {
		t.Errorf("expected derived 64-char visitor id, got %q", ev.VisitorID)
	}
}

func TestExtractPageTitle(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{"<html><head><title>Hello</title></head></html>", "Hello"},
		{"<TITLE>Upper</TITLE>", "Upper"},
		{"<html><body>no title</body></html>", ""},
		{"", ""},
		{"<title>First</title><title>Second</title>", "First"},
	}

	for _, tt := range tests {
		if got := ExtractPageTitle(tt.body); got != tt.want {
			t.Errorf("ExtractPageTitle(%q) = %q, want %q", tt.body, got, tt.want)
		}
	}
}
