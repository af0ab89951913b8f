package analytics

import (
	"fmt"
	"testing"
	"time"

	"github.com/hitwatch/request-analytics/internal/event"
)

func day(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02 15:04:05", value)
	if err != nil {
		t.Fatalf("bad test timestamp %q: %v", value, err)
	}
	return parsed
}

func makeEvent(visitorID, sessionID, path string, visitedAt time.Time) *event.CapturedEvent {
	return &event.CapturedEvent{
		Path:            path,
		VisitorID:       visitorID,
		SessionID:       sessionID,
		RequestCategory: event.CategoryWeb,
		VisitedAt:       visitedAt,
	}
}

func TestSummarize(t *testing.T) {
	at := day(t, "2026-08-10 12:00:00")
	events := []*event.CapturedEvent{
		makeEvent("v1", "s1", "/home", at),
		makeEvent("v1", "s1", "/about", at),
		makeEvent("v2", "s2", "/home", at),
	}
	events[0].ResponseTime = 100
	events[1].ResponseTime = 150
	events[2].ResponseTime = 200

	summary := NewEngine().Summarize(events)

	if summary.TotalViews != 3 {
		t.Errorf("TotalViews = %d, want 3", summary.TotalViews)
	}
	if summary.UniqueVisitors != 2 {
		t.Errorf("UniqueVisitors = %d, want 2", summary.UniqueVisitors)
	}
	if summary.UniqueSessions != 2 {
		t.Errorf("UniqueSessions = %d, want 2", summary.UniqueSessions)
	}
	if summary.AvgResponseTime != 150.0 {
		t.Errorf("AvgResponseTime = %v, want 150.0", summary.AvgResponseTime)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	summary := NewEngine().Summarize(nil)
	if summary.TotalViews != 0 || summary.UniqueVisitors != 0 ||
		summary.UniqueSessions != 0 || summary.AvgResponseTime != 0 {
		t.Errorf("empty summary not all zero: %+v", summary)
	}
}

func TestSummarizeRoundsAverage(t *testing.T) {
	at := day(t, "2026-08-10 12:00:00")
	events := []*event.CapturedEvent{
		makeEvent("v1", "s1", "/a", at),
		makeEvent("v1", "s1", "/b", at),
		makeEvent("v1", "s1", "/c", at),
	}
	events[0].ResponseTime = 100
	events[1].ResponseTime = 100
	events[2].ResponseTime = 101

	summary := NewEngine().Summarize(events)
	if summary.AvgResponseTime != 100.33 {
		t.Errorf("AvgResponseTime = %v, want 100.33", summary.AvgResponseTime)
	}
}

func TestChartSeriesDense(t *testing.T) {
	now := time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)
	dr, err := NewDateRange(RangeParams{StartDate: "2026-08-01", EndDate: "2026-08-08"}, now)
	if err != nil {
		t.Fatalf("NewDateRange: %v", err)
	}

	events := []*event.CapturedEvent{
		makeEvent("v1", "s1", "/home", day(t, "2026-08-02 10:00:00")),
		makeEvent("v2", "s2", "/home", day(t, "2026-08-02 11:00:00")),
		makeEvent("v1", "s3", "/home", day(t, "2026-08-05 09:00:00")),
	}

	series := NewEngine().ChartSeries(events, dr)

	if len(series.Labels) != 8 {
		t.Fatalf("labels = %d, want 8 (inclusive both ends)", len(series.Labels))
	}
	if series.Labels[0] != "Aug 01" || series.Labels[7] != "Aug 08" {
		t.Errorf("label bounds = %q..%q", series.Labels[0], series.Labels[7])
	}
	if len(series.Datasets) != 2 {
		t.Fatalf("datasets = %d, want 2", len(series.Datasets))
	}

	views := series.Datasets[0].Data
	if views[1] != 2 || views[4] != 1 {
		t.Errorf("views = %v, want 2 on day 2 and 1 on day 5", views)
	}
	if views[0] != 0 || views[7] != 0 {
		t.Errorf("zero-event days not zero-filled: %v", views)
	}

	visitors := series.Datasets[1].Data
	if visitors[1] != 2 || visitors[4] != 1 {
		t.Errorf("visitors = %v, want 2 on day 2 and 1 on day 5", visitors)
	}
}

func TestChartSeriesAllZero(t *testing.T) {
	now := time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)
	dr, err := NewDateRange(RangeParams{StartDate: "2026-08-01", EndDate: "2026-08-08"}, now)
	if err != nil {
		t.Fatalf("NewDateRange: %v", err)
	}

	series := NewEngine().ChartSeries(nil, dr)

	if len(series.Labels) != 8 {
		t.Fatalf("labels = %d, want 8", len(series.Labels))
	}
	for i, v := range series.Datasets[0].Data {
		if v != 0 {
			t.Errorf("data[%d] = %d, want 0", i, v)
		}
	}
}

func TestTopPagesPercentages(t *testing.T) {
	at := day(t, "2026-08-10 12:00:00")
	var events []*event.CapturedEvent
	for i := 0; i < 7; i++ {
		events = append(events, makeEvent("v1", "s1", "/home", at))
	}
	for i := 0; i < 3; i++ {
		events = append(events, makeEvent("v1", "s1", "/about", at))
	}

	pages := NewEngine().TopPages(events, true)

	if len(pages) != 2 {
		t.Fatalf("entries = %d, want 2", len(pages))
	}
	if pages[0].Key != "/home" || pages[0].Count != 7 || *pages[0].Percentage != 70.0 {
		t.Errorf("first = %+v, want /home 7 70.0", pages[0])
	}
	if pages[1].Key != "/about" || pages[1].Count != 3 || *pages[1].Percentage != 30.0 {
		t.Errorf("second = %+v, want /about 3 30.0", pages[1])
	}
}

func TestTopPagesTruncatesToTen(t *testing.T) {
	at := day(t, "2026-08-10 12:00:00")
	var events []*event.CapturedEvent
	for i := 0; i < 15; i++ {
		events = append(events, makeEvent("v1", "s1", fmt.Sprintf("/page-%d", i), at))
	}

	pages := NewEngine().TopPages(events, false)
	if len(pages) != 10 {
		t.Errorf("entries = %d, want 10", len(pages))
	}
}

func TestTopPagesEmpty(t *testing.T) {
	pages := NewEngine().TopPages(nil, true)
	if len(pages) != 0 {
		t.Errorf("entries = %d, want empty list", len(pages))
	}
}

func TestTopReferrers(t *testing.T) {
	at := day(t, "2026-08-10 12:00:00")
	withReferrer := func(ref string) *event.CapturedEvent {
		ev := makeEvent("v1", "s1", "/home", at)
		ev.Referrer = ref
		return ev
	}

	events := []*event.CapturedEvent{
		withReferrer("https://www.google.com/search?q=hitwatch"),
		withReferrer("https://www.google.com/"),
		withReferrer("android-app://com.example.app"),
		withReferrer(""),
	}

	referrers := NewEngine().TopReferrers(events, false)

	if len(referrers) != 2 {
		t.Fatalf("entries = %v, want 2 (empty referrer excluded)", referrers)
	}
	if referrers[0].Key != "www.google.com" || referrers[0].Count != 2 {
		t.Errorf("first = %+v, want www.google.com count 2", referrers[0])
	}
	if referrers[1].Key != "com.example.app" {
		t.Errorf("second = %+v", referrers[1])
	}
}

func TestTopReferrersDirectFallback(t *testing.T) {
	at := day(t, "2026-08-10 12:00:00")
	ev := makeEvent("v1", "s1", "/home", at)
	ev.Referrer = "not-a-url"

	referrers := NewEngine().TopReferrers([]*event.CapturedEvent{ev}, false)
	if len(referrers) != 1 || referrers[0].Key != "(direct)" {
		t.Errorf("referrers = %+v, want single (direct)", referrers)
	}
}

func TestCountriesLowercased(t *testing.T) {
	at := day(t, "2026-08-10 12:00:00")
	ev := makeEvent("v1", "s1", "/home", at)
	ev.Country = "DE"

	countries := NewEngine().Countries([]*event.CapturedEvent{ev}, false)
	if len(countries) != 1 || countries[0].Key != "de" {
		t.Errorf("countries = %+v, want single de", countries)
	}
}

func TestOperatingSystemsCountDistinctSessions(t *testing.T) {
	at := day(t, "2026-08-10 12:00:00")
	withOS := func(sessionID, os string) *event.CapturedEvent {
		ev := makeEvent("v1", sessionID, "/home", at)
		ev.OperatingSystem = os
		return ev
	}

	events := []*event.CapturedEvent{
		withOS("s1", "Windows 10"),
		withOS("s1", "Windows 10"),
		withOS("s1", "Windows 10"),
		withOS("s2", "macOS"),
	}

	systems := NewEngine().OperatingSystems(events, false)

	if len(systems) != 2 {
		t.Fatalf("entries = %d, want 2", len(systems))
	}
	if systems[0].Count != 1 || systems[1].Count != 1 {
		t.Errorf("sessions not deduplicated: %+v", systems)
	}
}

func TestBounceRate(t *testing.T) {
	at := day(t, "2026-08-10 12:00:00")
	events := []*event.CapturedEvent{
		makeEvent("v1", "s1", "/home", at),
		makeEvent("v2", "s2", "/home", at),
		makeEvent("v2", "s2", "/about", at),
		makeEvent("v3", "s3", "/home", at),
	}

	rate := NewEngine().BounceRate(events)
	if rate != 66.7 {
		t.Errorf("BounceRate = %v, want 66.7", rate)
	}
}

func TestBounceRateNoSessions(t *testing.T) {
	if rate := NewEngine().BounceRate(nil); rate != 0 {
		t.Errorf("BounceRate = %v, want 0", rate)
	}
}

func TestAvgSessionDuration(t *testing.T) {
	events := []*event.CapturedEvent{
		makeEvent("v1", "s1", "/home", day(t, "2026-08-10 12:00:00")),
		makeEvent("v1", "s1", "/about", day(t, "2026-08-10 12:02:15")),
		makeEvent("v2", "s2", "/home", day(t, "2026-08-10 13:00:00")),
	}

	got := NewEngine().AvgSessionDuration(events)
	if got != "2m 15s" {
		t.Errorf("AvgSessionDuration = %q, want %q", got, "2m 15s")
	}
}

func TestAvgSessionDurationNoQualifyingSessions(t *testing.T) {
	at := day(t, "2026-08-10 12:00:00")
	events := []*event.CapturedEvent{
		makeEvent("v1", "s1", "/home", at),
	}

	if got := NewEngine().AvgSessionDuration(events); got != "0s" {
		t.Errorf("AvgSessionDuration = %q, want 0s", got)
	}
	if got := NewEngine().AvgSessionDuration(nil); got != "0s" {
		t.Errorf("AvgSessionDuration(empty) = %q, want 0s", got)
	}
}

func TestHumanizeDuration(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "0s"},
		{45, "45s"},
		{135, "2m 15s"},
		{120, "2m"},
		{3600, "1h"},
		{3725, "1h 2m 5s"},
	}

	for _, tt := range tests {
		if got := humanizeDuration(tt.seconds); got != tt.want {
			t.Errorf("humanizeDuration(%v) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}
