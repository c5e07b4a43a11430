package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Zachkp/folio/internal/database"
	"github.com/Zachkp/folio/internal/models"
	"github.com/Zachkp/folio/internal/reveal"
)

// AnalyticsRepository stores page visits and section impressions.
type AnalyticsRepository interface {
	RecordVisit(ctx context.Context, v models.VisitorMetric) error
	RecordImpression(ctx context.Context, imp reveal.Impression) error
	RecentVisitors(ctx context.Context, limit int) ([]models.VisitorMetric, error)
	PurgeVisitorsBefore(ctx context.Context, t time.Time) (int64, error)
	VisitorCounts(ctx context.Context, now time.Time) (total, unique, today, week int64, err error)
	SectionImpressions(ctx context.Context) ([]models.SectionStat, error)
}

type sqliteAnalyticsRepo struct {
	db database.Querier
}

func NewSQLiteAnalyticsRepo(db database.Querier) AnalyticsRepository {
	return &sqliteAnalyticsRepo{db: db}
}

func (r *sqliteAnalyticsRepo) RecordVisit(ctx context.Context, v models.VisitorMetric) error {
	if v.Timestamp.IsZero() {
		v.Timestamp = time.Now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO visitors (hashed_ip, user_agent, path, timestamp) VALUES (?, ?, ?, ?)`,
		v.HashedIP, v.UserAgent, v.Path, database.Timestamp(v.Timestamp))
	if err != nil {
		return fmt.Errorf("record visit: %w", err)
	}
	return nil
}

// RecordImpression ignores duplicates for the same view and section.
func (r *sqliteAnalyticsRepo) RecordImpression(ctx context.Context, imp reveal.Impression) error {
	if imp.At.IsZero() {
		imp.At = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO section_impressions (view_id, path, section, timestamp)
		VALUES (?, ?, ?, ?)`,
		imp.ViewID, imp.Path, imp.Section, database.Timestamp(imp.At))
	if err != nil {
		return fmt.Errorf("record impression: %w", err)
	}
	return nil
}

func (r *sqliteAnalyticsRepo) RecentVisitors(ctx context.Context, limit int) ([]models.VisitorMetric, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, hashed_ip, user_agent, path, timestamp
		FROM visitors
		ORDER BY timestamp DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent visitors: %w", err)
	}
	defer rows.Close()

	var out []models.VisitorMetric
	for rows.Next() {
		var v models.VisitorMetric
		if err := rows.Scan(&v.ID, &v.HashedIP, &v.UserAgent, &v.Path, &v.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *sqliteAnalyticsRepo) PurgeVisitorsBefore(ctx context.Context, t time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM visitors WHERE timestamp < ?`, database.Timestamp(t))
	if err != nil {
		return 0, fmt.Errorf("purge visitors: %w", err)
	}
	return res.RowsAffected()
}

func (r *sqliteAnalyticsRepo) VisitorCounts(ctx context.Context, now time.Time) (total, unique, today, week int64, err error) {
	startOfDay := now.UTC().Truncate(24 * time.Hour)
	weekAgo := now.Add(-7 * 24 * time.Hour)
	err = r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(DISTINCT hashed_ip),
			COALESCE(SUM(CASE WHEN timestamp >= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN timestamp >= ? THEN 1 ELSE 0 END), 0)
		FROM visitors`,
		database.Timestamp(startOfDay), database.Timestamp(weekAgo),
	).Scan(&total, &unique, &today, &week)
	if err != nil {
		err = fmt.Errorf("visitor counts: %w", err)
	}
	return
}

func (r *sqliteAnalyticsRepo) SectionImpressions(ctx context.Context) ([]models.SectionStat, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT section, COUNT(*) AS n FROM section_impressions
		GROUP BY section ORDER BY n DESC, section ASC`)
	if err != nil {
		return nil, fmt.Errorf("section impressions: %w", err)
	}
	defer rows.Close()

	var out []models.SectionStat
	for rows.Next() {
		var s models.SectionStat
		if err := rows.Scan(&s.Section, &s.Impressions); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
