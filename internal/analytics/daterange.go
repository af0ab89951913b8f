package analytics

import (
	"errors"
	"fmt"
	"time"
)

var ErrEndBeforeStart = errors.New("end_date is before start_date")

const (
	defaultRangeDays = 30
	dateLayout       = "2006-01-02"
)

// RangeParams is the raw date selection a caller sends: either an explicit
// start/end pair or a relative "last N days" shorthand.
type RangeParams struct {
	StartDate string `form:"start_date" binding:"omitempty,datetime=2006-01-02"`
	EndDate   string `form:"end_date" binding:"omitempty,datetime=2006-01-02"`
	DateRange int    `form:"date_range" binding:"omitempty,min=1,max=365"`
	Category  string `form:"category" binding:"omitempty,oneof=web api"`
}

// DateRange is a resolved inclusive day span: Start at start-of-day, End at
// end-of-day, Days derived, Key a stable cache key.
type DateRange struct {
	Start time.Time
	End   time.Time
	Days  int
	Key   string
}

// NewDateRange resolves params against now. An explicit pair wins over the
// relative shorthand; end before start is a validation error.
func NewDateRange(params RangeParams, now time.Time) (DateRange, error) {
	if params.StartDate != "" && params.EndDate != "" {
		start, err := time.ParseInLocation(dateLayout, params.StartDate, now.Location())
		if err != nil {
			return DateRange{}, fmt.Errorf("invalid start_date: %w", err)
		}
		end, err := time.ParseInLocation(dateLayout, params.EndDate, now.Location())
		if err != nil {
			return DateRange{}, fmt.Errorf("invalid end_date: %w", err)
		}
		if end.Before(start) {
			return DateRange{}, ErrEndBeforeStart
		}
		return buildRange(start, end), nil
	}

	days := params.DateRange
	if days <= 0 {
		days = defaultRangeDays
	}

	end := now
	start := now.AddDate(0, 0, -days)
	return buildRange(start, end), nil
}

func buildRange(start, end time.Time) DateRange {
	start = startOfDay(start)
	end = endOfDay(end)

	days := int(end.Sub(start).Hours() / 24)

	return DateRange{
		Start: start,
		End:   end,
		Days:  days,
		Key:   start.Format(dateLayout) + "_" + end.Format(dateLayout),
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}
