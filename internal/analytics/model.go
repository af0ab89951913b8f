package analytics

import "github.com/hitwatch/request-analytics/internal/event"

// Summary holds the headline counters for a date range.
type Summary struct {
	TotalViews      int64   `json:"total_views"`
	UniqueVisitors  int64   `json:"unique_visitors"`
	UniqueSessions  int64   `json:"unique_sessions"`
	AvgResponseTime float64 `json:"avg_response_time"`
}

// ChartDataset is one line of the daily time-series chart.
type ChartDataset struct {
	Label string  `json:"label"`
	Data  []int64 `json:"data"`
}

// ChartSeries is a dense daily series: one label and one data point per
// calendar day in the range, zero-filled for days without events.
type ChartSeries struct {
	Labels   []string       `json:"labels"`
	Datasets []ChartDataset `json:"datasets"`
}

// TopEntry is one row of a top-N breakdown.
type TopEntry struct {
	Key        string   `json:"key"`
	Count      int64    `json:"count"`
	Percentage *float64 `json:"percentage,omitempty"`
}

// Overview is the full dashboard payload for a date range.
type Overview struct {
	Summary            Summary     `json:"summary"`
	Chart              ChartSeries `json:"chart"`
	TopPages           []TopEntry  `json:"top_pages"`
	TopReferrers       []TopEntry  `json:"top_referrers"`
	Browsers           []TopEntry  `json:"browsers"`
	Devices            []TopEntry  `json:"devices"`
	Countries          []TopEntry  `json:"countries"`
	OperatingSystems   []TopEntry  `json:"operating_systems"`
	BounceRate         float64     `json:"bounce_rate"`
	AvgSessionDuration string      `json:"avg_session_duration"`
	StartDate          string      `json:"start_date"`
	EndDate            string      `json:"end_date"`
}

// Pagination describes one page of a paginated listing.
type Pagination struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
}

// VisitorsPage is one page of per-visitor rollups.
type VisitorsPage struct {
	Visitors   []*event.VisitorRollup `json:"visitors"`
	Pagination Pagination             `json:"pagination"`
}

// PageViewsPage is one page of raw captured events.
type PageViewsPage struct {
	PageViews  []*event.CapturedEvent `json:"page_views"`
	Pagination Pagination             `json:"pagination"`
}
