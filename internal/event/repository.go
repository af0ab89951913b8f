package event

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hitwatch/request-analytics/pkg/postgres"
	"go.uber.org/zap"
)

// Store is the durable append-only event table. Aggregation maths live in
// the analytics engine; the store only filters, groups and paginates.
type Store interface {
	Insert(ctx context.Context, event *CapturedEvent) error
	SelectRange(ctx context.Context, from, to time.Time) ([]*CapturedEvent, error)
	SelectPageViews(ctx context.Context, from, to time.Time, pathFilter string, limit, offset int) ([]*CapturedEvent, int64, error)
	SelectVisitorRollups(ctx context.Context, from, to time.Time, limit, offset int) ([]*VisitorRollup, int64, error)
	Prune(ctx context.Context, olderThan time.Time) (int64, error)
}

type store struct {
	db     *postgres.DB
	table  string
	logger *zap.Logger
}

func NewStore(db *postgres.DB, table string, logger *zap.Logger) Store {
	if table == "" {
		table = "request_analytics"
	}
	return &store{
		db:     db,
		table:  table,
		logger: logger,
	}
}

const eventColumns = `path, page_title, ip_address, operating_system, browser, device, screen,
		referrer, country, city, language, query_params, session_id, visitor_id,
		user_id, http_method, request_category, response_time, visited_at`

func (s *store) Insert(ctx context.Context, event *CapturedEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING id
	`, s.table, eventColumns)

	err := s.db.QueryRowContext(
		ctx,
		query,
		event.Path,
		event.PageTitle,
		event.IPAddress,
		event.OperatingSystem,
		event.Browser,
		event.Device,
		event.Screen,
		event.Referrer,
		event.Country,
		event.City,
		event.Language,
		event.QueryParams,
		event.SessionID,
		event.VisitorID,
		event.UserID,
		event.HTTPMethod,
		event.RequestCategory,
		event.ResponseTime,
		event.VisitedAt,
	).Scan(&event.ID)

	if err != nil {
		s.logger.Error("Failed to insert captured event",
			zap.Error(err),
			zap.String("path", event.Path),
			zap.String("visitor_id", event.VisitorID),
		)
		return fmt.Errorf("failed to insert captured event for %s %s: %w",
			event.HTTPMethod, event.Path, err)
	}

	s.logger.Debug("Captured event stored",
		zap.Int64("event_id", event.ID),
		zap.String("path", event.Path),
		zap.String("category", event.RequestCategory),
	)

	return nil
}

func (s *store) SelectRange(ctx context.Context, from, to time.Time) ([]*CapturedEvent, error) {
	query := fmt.Sprintf(`
		SELECT id, %s
		FROM %s
		WHERE visited_at >= $1 AND visited_at <= $2
		ORDER BY visited_at
	`, eventColumns, s.table)

	var events []*CapturedEvent
	if err := s.db.SelectContext(ctx, &events, query, from, to); err != nil {
		return nil, fmt.Errorf("failed to select events in range: %w", err)
	}

	return events, nil
}

func (s *store) SelectPageViews(
	ctx context.Context,
	from, to time.Time,
	pathFilter string,
	limit, offset int) ([]*CapturedEvent, int64, error) {

	where := "WHERE visited_at >= $1 AND visited_at <= $2"
	args := []interface{}{from, to}

	if pathFilter != "" {
		where += " AND path LIKE $3"
		args = append(args, "%"+strings.ReplaceAll(pathFilter, "%", "\\%")+"%")
	}

	var total int64
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s %s", s.table, where)
	if err := s.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count page views: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, %s
		FROM %s
		%s
		ORDER BY visited_at DESC
		LIMIT %d OFFSET %d
	`, eventColumns, s.table, where, limit, offset)

	var events []*CapturedEvent
	if err := s.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to select page views: %w", err)
	}

	return events, total, nil
}

func (s *store) SelectVisitorRollups(
	ctx context.Context,
	from, to time.Time,
	limit, offset int) ([]*VisitorRollup, int64, error) {

	var total int64
	countQuery := fmt.Sprintf(`
		SELECT COUNT(DISTINCT visitor_id)
		FROM %s
		WHERE visited_at >= $1 AND visited_at <= $2 AND visitor_id <> ''
	`, s.table)
	if err := s.db.GetContext(ctx, &total, countQuery, from, to); err != nil {
		return nil, 0, fmt.Errorf("failed to count visitors: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT
			visitor_id,
			COUNT(*) AS page_views,
			COUNT(DISTINCT session_id) AS sessions,
			MIN(visited_at) AS first_visit,
			MAX(visited_at) AS last_visit,
			COUNT(DISTINCT path) AS unique_pages
		FROM %s
		WHERE visited_at >= $1 AND visited_at <= $2 AND visitor_id <> ''
		GROUP BY visitor_id
		ORDER BY last_visit DESC
		LIMIT %d OFFSET %d
	`, s.table, limit, offset)

	var rollups []*VisitorRollup
	if err := s.db.SelectContext(ctx, &rollups, query, from, to); err != nil {
		return nil, 0, fmt.Errorf("failed to select visitor rollups: %w", err)
	}

	return rollups, total, nil
}

func (s *store) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE visited_at <= $1", s.table)

	result, err := s.db.ExecContext(ctx, query, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to prune events older than %s: %w",
			olderThan.Format(time.RFC3339), err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read pruned row count: %w", err)
	}

	if deleted > 0 {
		s.logger.Info("Pruned captured events",
			zap.Int64("deleted", deleted),
			zap.Time("older_than", olderThan),
		)
	}

	return deleted, nil
}
