package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Zachkp/folio/internal/database"
	"github.com/Zachkp/folio/internal/models"
)

// ProfileRepository stores one profile per user, keyed by the user id.
type ProfileRepository interface {
	GetByUserID(ctx context.Context, userID string) (*models.Profile, error)
	Upsert(ctx context.Context, p *models.Profile) error
}

type sqliteProfileRepo struct {
	db database.Querier
}

func NewSQLiteProfileRepo(db database.Querier) ProfileRepository {
	return &sqliteProfileRepo{db: db}
}

func (r *sqliteProfileRepo) GetByUserID(ctx context.Context, userID string) (*models.Profile, error) {
	p := &models.Profile{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, full_name, avatar_url, updated_at FROM profiles WHERE id = ?`, userID,
	).Scan(&p.ID, &p.Username, &p.FullName, &p.AvatarURL, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func (r *sqliteProfileRepo) Upsert(ctx context.Context, p *models.Profile) error {
	p.UpdatedAt = time.Now().UTC().Truncate(time.Second)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO profiles (id, username, full_name, avatar_url, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			full_name = excluded.full_name,
			avatar_url = excluded.avatar_url,
			updated_at = excluded.updated_at`,
		p.ID, p.Username, p.FullName, p.AvatarURL, database.Timestamp(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}
