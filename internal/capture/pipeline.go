package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/hitwatch/request-analytics/internal/botdetect"
	"github.com/hitwatch/request-analytics/internal/event"
	"github.com/hitwatch/request-analytics/internal/geo"
	"github.com/hitwatch/request-analytics/internal/privacy"
	"github.com/hitwatch/request-analytics/internal/useragent"
	"github.com/hitwatch/request-analytics/internal/visitor"
	"go.uber.org/zap"
)

// RequestInfo is the slice of an inbound request the pipeline needs. The
// transport adapter fills it; the pipeline itself stays transport-neutral.
type RequestInfo struct {
	Path           string
	Method         string
	UserAgent      string
	AcceptLanguage string
	AcceptEncoding string
	Referrer       string
	DNTPresent     bool
	EdgeCountry    string
	IPAddress      string
	QueryParams    map[string][]string
	VisitorCookie  string
	UserID         *int64
}

// ResponseInfo is the finalized response the event is enriched from.
type ResponseInfo struct {
	Body   string
	Status int
}

// Pipeline decides, per request/response pair, whether to build an event
// record. It has no side effects; persistence belongs to the caller.
type Pipeline struct {
	captureBots bool
	gate        *privacy.Gate
	detector    *botdetect.Detector
	matcher     *IgnorePathMatcher
	resolver    *geo.Resolver
	logger      *zap.Logger
}

func NewPipeline(
	captureBots bool,
	gate *privacy.Gate,
	detector *botdetect.Detector,
	matcher *IgnorePathMatcher,
	resolver *geo.Resolver,
	logger *zap.Logger) *Pipeline {

	return &Pipeline{
		captureBots: captureBots,
		gate:        gate,
		detector:    detector,
		matcher:     matcher,
		resolver:    resolver,
		logger:      logger,
	}
}

// Capture runs the decision stages in order (ignore paths, then DNT policy,
// then bot policy) and on acceptance builds the enriched event. A nil event
// with a nil error means the request was deliberately not captured.
func (p *Pipeline) Capture(
	ctx context.Context,
	req RequestInfo,
	resp ResponseInfo,
	category string,
	responseTime time.Duration) (*event.CapturedEvent, error) {

	if p.matcher.ShouldIgnore(req.Path) {
		return nil, nil
	}

	if !p.gate.ShouldCapture(req.DNTPresent) {
		return nil, nil
	}

	isBot, err := p.detector.IsBot(req.UserAgent, req.IPAddress)
	if err != nil {
		return nil, fmt.Errorf("bot detection failed: %w", err)
	}
	if isBot && !p.captureBots {
		return nil, nil
	}

	now := time.Now()
	visitorID, _ := visitor.VisitorID(req.VisitorCookie, visitor.Fingerprint{
		UserAgent:      req.UserAgent,
		AcceptLanguage: req.AcceptLanguage,
		AcceptEncoding: req.AcceptEncoding,
		IPAddress:      req.IPAddress,
	})

	info := useragent.Classify(req.UserAgent)

	country := req.EdgeCountry
	city := ""
	if location := p.resolver.Resolve(ctx, req.IPAddress); location.Country != "" {
		country = location.Country
		city = location.City
	}

	queryParams := "{}"
	if len(req.QueryParams) > 0 {
		if encoded, err := json.Marshal(req.QueryParams); err == nil {
			queryParams = string(encoded)
		}
	}

	return &event.CapturedEvent{
		Path:            req.Path,
		PageTitle:       ExtractPageTitle(resp.Body),
		IPAddress:       p.gate.ApplyIPPolicy(req.IPAddress),
		OperatingSystem: info.OperatingSystem,
		Browser:         info.Browser,
		Device:          info.Device,
		Screen:          "",
		Referrer:        req.Referrer,
		Country:         country,
		City:            city,
		Language:        req.AcceptLanguage,
		QueryParams:     queryParams,
		SessionID:       visitor.SessionID(visitorID, now),
		VisitorID:       visitorID,
		UserID:          req.UserID,
		HTTPMethod:      req.Method,
		RequestCategory: category,
		ResponseTime:    responseTime.Milliseconds(),
		VisitedAt:       now,
	}, nil
}

var titlePattern = regexp.MustCompile(`(?is)<title>(.*?)</title>`)

// ExtractPageTitle pulls the first <title> tag out of a rendered body.
func ExtractPageTitle(body string) string {
	matches := titlePattern.FindStringSubmatch(body)
	if len(matches) < 2 {
		return ""
	}
	return matches[1]
}
