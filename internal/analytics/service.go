package analytics

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hitwatch/request-analytics/internal/event"
	"github.com/hitwatch/request-analytics/pkg/cache"
)

const (
	defaultPerPage = 25
	maxPerPage     = 100
)

// Service answers dashboard queries: a full overview plus paginated visitor
// and page-view listings. Browser and country breakdowns are cached for a
// short TTL since the dashboard polls them on every refresh.
type Service struct {
	store    event.Store
	engine   *Engine
	cache    *cache.Cache
	cacheTTL time.Duration
	logger   *zap.Logger
}

func NewService(store event.Store, cacheTTL time.Duration, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		engine:   NewEngine(),
		cache:    cache.New(),
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

func (s *Service) Overview(ctx context.Context, params RangeParams) (*Overview, error) {
	dr, err := NewDateRange(params, time.Now())
	if err != nil {
		return nil, err
	}

	events, err := s.loadEvents(ctx, dr, params.Category)
	if err != nil {
		return nil, err
	}

	overview := &Overview{
		Summary:            s.engine.Summarize(events),
		Chart:              s.engine.ChartSeries(events, dr),
		TopPages:           s.engine.TopPages(events, true),
		TopReferrers:       s.engine.TopReferrers(events, true),
		Devices:            s.engine.Devices(events, true),
		OperatingSystems:   s.engine.OperatingSystems(events, true),
		BounceRate:         s.engine.BounceRate(events),
		AvgSessionDuration: s.engine.AvgSessionDuration(events),
		StartDate:          dr.Start.Format(dateLayout),
		EndDate:            dr.End.Format(dateLayout),
	}

	overview.Browsers = s.cachedTop("browsers", dr, params.Category, func() []TopEntry {
		return s.engine.Browsers(events, true)
	})
	overview.Countries = s.cachedTop("countries", dr, params.Category, func() []TopEntry {
		return s.engine.Countries(events, true)
	})

	s.logger.Debug("Overview computed",
		zap.String("range", dr.Key),
		zap.Int("events", len(events)),
		zap.String("category", params.Category),
	)

	return overview, nil
}

func (s *Service) Visitors(ctx context.Context, params RangeParams, page, perPage int) (*VisitorsPage, error) {
	dr, err := NewDateRange(params, time.Now())
	if err != nil {
		return nil, err
	}

	page, perPage = normalizePagination(page, perPage)

	rollups, total, err := s.store.SelectVisitorRollups(ctx, dr.Start, dr.End, perPage, (page-1)*perPage)
	if err != nil {
		return nil, fmt.Errorf("failed to load visitor rollups: %w", err)
	}
	if rollups == nil {
		rollups = []*event.VisitorRollup{}
	}

	return &VisitorsPage{
		Visitors:   rollups,
		Pagination: buildPagination(page, perPage, total),
	}, nil
}

func (s *Service) PageViews(ctx context.Context, params RangeParams, pathFilter string, page, perPage int) (*PageViewsPage, error) {
	dr, err := NewDateRange(params, time.Now())
	if err != nil {
		return nil, err
	}

	page, perPage = normalizePagination(page, perPage)

	events, total, err := s.store.SelectPageViews(ctx, dr.Start, dr.End, pathFilter, perPage, (page-1)*perPage)
	if err != nil {
		return nil, fmt.Errorf("failed to load page views: %w", err)
	}
	if events == nil {
		events = []*event.CapturedEvent{}
	}

	return &PageViewsPage{
		PageViews:  events,
		Pagination: buildPagination(page, perPage, total),
	}, nil
}

func (s *Service) loadEvents(ctx context.Context, dr DateRange, category string) ([]*event.CapturedEvent, error) {
	events, err := s.store.SelectRange(ctx, dr.Start, dr.End)
	if err != nil {
		return nil, fmt.Errorf("failed to load events for %s: %w", dr.Key, err)
	}

	if category == "" {
		return events, nil
	}

	filtered := events[:0:0]
	for _, ev := range events {
		if ev.RequestCategory == category {
			filtered = append(filtered, ev)
		}
	}
	return filtered, nil
}

func (s *Service) cachedTop(dimension string, dr DateRange, category string, compute func() []TopEntry) []TopEntry {
	if s.cacheTTL <= 0 {
		return compute()
	}

	key := fmt.Sprintf("analytics_%s_%s_%s", dimension, dr.Key, category)
	value, err := s.cache.Remember(key, s.cacheTTL, func() (any, error) {
		return compute(), nil
	})
	if err != nil {
		return compute()
	}

	entries, ok := value.([]TopEntry)
	if !ok {
		return compute()
	}
	return entries
}

func normalizePagination(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return page, perPage
}

func buildPagination(page, perPage int, total int64) Pagination {
	totalPages := total / int64(perPage)
	if total%int64(perPage) != 0 {
		totalPages++
	}
	return Pagination{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	}
}
