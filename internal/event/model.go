package event

import (
	"time"
)

// Request categories a capture can belong to.
const (
	CategoryWeb = "web"
	CategoryAPI = "api"
)

// CapturedEvent is one recorded request/response pair. Rows are append-only:
// VisitedAt is set at capture time and never updated.
type CapturedEvent struct {
	ID              int64     `db:"id" json:"id"`
	Path            string    `db:"path" json:"path"`
	PageTitle       string    `db:"page_title" json:"page_title"`
	IPAddress       string    `db:"ip_address" json:"ip_address"`
	OperatingSystem string    `db:"operating_system" json:"operating_system"`
	Browser         string    `db:"browser" json:"browser"`
	Device          string    `db:"device" json:"device"`
	Screen          string    `db:"screen" json:"screen"`
	Referrer        string    `db:"referrer" json:"referrer"`
	Country         string    `db:"country" json:"country"`
	City            string    `db:"city" json:"city"`
	Language        string    `db:"language" json:"language"`
	QueryParams     string    `db:"query_params" json:"query_params"`
	SessionID       string    `db:"session_id" json:"session_id"`
	VisitorID       string    `db:"visitor_id" json:"visitor_id"`
	UserID          *int64    `db:"user_id" json:"user_id,omitempty"`
	HTTPMethod      string    `db:"http_method" json:"http_method"`
	RequestCategory string    `db:"request_category" json:"request_category"`
	ResponseTime    int64     `db:"response_time" json:"response_time"`
	VisitedAt       time.Time `db:"visited_at" json:"visited_at"`
}

func (e *CapturedEvent) Validate() error {
	if e.Path == "" {
		return ErrMissingPath
	}
	if e.VisitorID == "" {
		return ErrMissingVisitorID
	}
	if e.SessionID == "" {
		return ErrMissingSessionID
	}
	if e.RequestCategory != CategoryWeb && e.RequestCategory != CategoryAPI {
		return ErrInvalidCategory
	}
	return nil
}

// VisitorRollup is the paginated per-visitor summary the dashboard lists.
type VisitorRollup struct {
	VisitorID   string    `db:"visitor_id" json:"visitor_id"`
	PageViews   int64     `db:"page_views" json:"page_views"`
	Sessions    int64     `db:"sessions" json:"sessions"`
	FirstVisit  time.Time `db:"first_visit" json:"first_visit"`
	LastVisit   time.Time `db:"last_visit" json:"last_visit"`
	UniquePages int64     `db:"unique_pages" json:"unique_pages"`
}
