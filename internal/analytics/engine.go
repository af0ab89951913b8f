package analytics

import (
	"fmt"
	"math"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/hitwatch/request-analytics/internal/event"
)

const topLimit = 10

// Engine computes aggregate projections over a slice of captured events.
// All methods are pure: events are never mutated and results are recomputed
// from scratch for every call.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

func (e *Engine) Summarize(events []*event.CapturedEvent) Summary {
	if len(events) == 0 {
		return Summary{}
	}

	visitors := make(map[string]struct{})
	sessions := make(map[string]struct{})
	var totalResponseTime int64

	for _, ev := range events {
		if ev.VisitorID != "" {
			visitors[ev.VisitorID] = struct{}{}
		}
		if ev.SessionID != "" {
			sessions[ev.SessionID] = struct{}{}
		}
		totalResponseTime += ev.ResponseTime
	}

	avg := float64(totalResponseTime) / float64(len(events))

	return Summary{
		TotalViews:      int64(len(events)),
		UniqueVisitors:  int64(len(visitors)),
		UniqueSessions:  int64(len(sessions)),
		AvgResponseTime: round2(avg),
	}
}

// ChartSeries builds one point per calendar day in the range, both ends
// inclusive. Days without events get a zero, never a gap.
func (e *Engine) ChartSeries(events []*event.CapturedEvent, dr DateRange) ChartSeries {
	viewsByDay := make(map[string]int64)
	visitorsByDay := make(map[string]map[string]struct{})

	for _, ev := range events {
		day := ev.VisitedAt.In(dr.Start.Location()).Format(dateLayout)
		viewsByDay[day]++
		if ev.VisitorID != "" {
			if visitorsByDay[day] == nil {
				visitorsByDay[day] = make(map[string]struct{})
			}
			visitorsByDay[day][ev.VisitorID] = struct{}{}
		}
	}

	series := ChartSeries{
		Labels: make([]string, 0, dr.Days+1),
		Datasets: []ChartDataset{
			{Label: "Views", Data: make([]int64, 0, dr.Days+1)},
			{Label: "Visitors", Data: make([]int64, 0, dr.Days+1)},
		},
	}

	lastDay := startOfDay(dr.End)
	for day := dr.Start; !day.After(lastDay); day = day.AddDate(0, 0, 1) {
		key := day.Format(dateLayout)
		series.Labels = append(series.Labels, day.Format("Jan 02"))
		series.Datasets[0].Data = append(series.Datasets[0].Data, viewsByDay[key])
		series.Datasets[1].Data = append(series.Datasets[1].Data, int64(len(visitorsByDay[key])))
	}

	return series
}

func (e *Engine) TopPages(events []*event.CapturedEvent, withPercentages bool) []TopEntry {
	return e.topN(events, withPercentages, func(ev *event.CapturedEvent) string {
		return ev.Path
	})
}

// TopReferrers groups by referrer host. Events without a referrer are
// excluded; a referrer whose URL yields no host counts as "(direct)".
func (e *Engine) TopReferrers(events []*event.CapturedEvent, withPercentages bool) []TopEntry {
	return e.topN(events, withPercentages, func(ev *event.CapturedEvent) string {
		if ev.Referrer == "" {
			return ""
		}
		return referrerDomain(ev.Referrer)
	})
}

func (e *Engine) Browsers(events []*event.CapturedEvent, withPercentages bool) []TopEntry {
	return e.topN(events, withPercentages, func(ev *event.CapturedEvent) string {
		return ev.Browser
	})
}

func (e *Engine) Devices(events []*event.CapturedEvent, withPercentages bool) []TopEntry {
	return e.topN(events, withPercentages, func(ev *event.CapturedEvent) string {
		return ev.Device
	})
}

func (e *Engine) Countries(events []*event.CapturedEvent, withPercentages bool) []TopEntry {
	return e.topN(events, withPercentages, func(ev *event.CapturedEvent) string {
		return strings.ToLower(ev.Country)
	})
}

// OperatingSystems counts distinct sessions per OS rather than raw views, so
// a chatty session does not dominate the breakdown.
func (e *Engine) OperatingSystems(events []*event.CapturedEvent, withPercentages bool) []TopEntry {
	counts := make(map[string]map[string]struct{})
	var order []string

	for _, ev := range events {
		if ev.OperatingSystem == "" || ev.SessionID == "" {
			continue
		}
		if counts[ev.OperatingSystem] == nil {
			counts[ev.OperatingSystem] = make(map[string]struct{})
			order = append(order, ev.OperatingSystem)
		}
		counts[ev.OperatingSystem][ev.SessionID] = struct{}{}
	}

	entries := make([]TopEntry, 0, len(order))
	for _, key := range order {
		entries = append(entries, TopEntry{Key: key, Count: int64(len(counts[key]))})
	}

	return finalizeTop(entries, withPercentages)
}

// BounceRate is the share of sessions containing exactly one event,
// as a percentage rounded to one decimal. Zero when there are no sessions.
func (e *Engine) BounceRate(events []*event.CapturedEvent) float64 {
	perSession := make(map[string]int64)
	for _, ev := range events {
		if ev.SessionID != "" {
			perSession[ev.SessionID]++
		}
	}
	if len(perSession) == 0 {
		return 0
	}

	var bounced int64
	for _, n := range perSession {
		if n == 1 {
			bounced++
		}
	}

	return round1(float64(bounced) / float64(len(perSession)) * 100)
}

// AvgSessionDuration averages max-min visited_at across sessions that span
// more than zero seconds, humanized like "2m 15s". "0s" when none qualify.
func (e *Engine) AvgSessionDuration(events []*event.CapturedEvent) string {
	type span struct {
		first time.Time
		last  time.Time
	}

	spans := make(map[string]*span)
	for _, ev := range events {
		if ev.SessionID == "" {
			continue
		}
		s, ok := spans[ev.SessionID]
		if !ok {
			spans[ev.SessionID] = &span{first: ev.VisitedAt, last: ev.VisitedAt}
			continue
		}
		if ev.VisitedAt.Before(s.first) {
			s.first = ev.VisitedAt
		}
		if ev.VisitedAt.After(s.last) {
			s.last = ev.VisitedAt
		}
	}

	var totalSeconds float64
	var qualifying int64
	for _, s := range spans {
		seconds := s.last.Sub(s.first).Seconds()
		if seconds > 0 {
			totalSeconds += seconds
			qualifying++
		}
	}

	if qualifying == 0 {
		return "0s"
	}

	return humanizeDuration(totalSeconds / float64(qualifying))
}

// topN groups by keyFn, drops empty keys, sorts by count descending with
// first-seen order breaking ties, and truncates to the top 10.
func (e *Engine) topN(
	events []*event.CapturedEvent,
	withPercentages bool,
	keyFn func(*event.CapturedEvent) string) []TopEntry {

	counts := make(map[string]int64)
	var order []string

	for _, ev := range events {
		key := keyFn(ev)
		if key == "" {
			continue
		}
		if _, seen := counts[key]; !seen {
			order = append(order, key)
		}
		counts[key]++
	}

	entries := make([]TopEntry, 0, len(order))
	for _, key := range order {
		entries = append(entries, TopEntry{Key: key, Count: counts[key]})
	}

	return finalizeTop(entries, withPercentages)
}

func finalizeTop(entries []TopEntry, withPercentages bool) []TopEntry {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Count > entries[j].Count
	})

	if len(entries) > topLimit {
		entries = entries[:topLimit]
	}

	if !withPercentages {
		return entries
	}

	var total int64
	for _, entry := range entries {
		total += entry.Count
	}
	if total == 0 {
		return []TopEntry{}
	}

	for i := range entries {
		pct := round1(float64(entries[i].Count) / float64(total) * 100)
		entries[i].Percentage = &pct
	}

	return entries
}

// referrerDomain reduces a referrer URL to its host. Anything that parses
// but carries no host collapses to "(direct)".
func referrerDomain(referrer string) string {
	parsed, err := url.Parse(referrer)
	if err != nil || parsed.Host == "" {
		return "(direct)"
	}
	return parsed.Host
}

func humanizeDuration(seconds float64) string {
	total := int64(math.Round(seconds))
	if total <= 0 {
		return "0s"
	}

	hours := total / 3600
	minutes := (total % 3600) / 60
	secs := total % 60

	var parts []string
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	if secs > 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%ds", secs))
	}

	return strings.Join(parts, " ")
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
