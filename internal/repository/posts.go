package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Zachkp/folio/internal/collection"
	"github.com/Zachkp/folio/internal/database"
	"github.com/Zachkp/folio/internal/models"
)

// PostRepository stores blog post links, newest first.
type PostRepository interface {
	collection.Repository[models.Post]
	GetByID(ctx context.Context, id string) (*models.Post, error)
	IncrementClicks(ctx context.Context, id string) error
	TopByClicks(ctx context.Context, limit int) ([]models.PostStat, error)
	Count(ctx context.Context) (int64, error)
	TotalClicks(ctx context.Context) (int64, error)
}

type sqlitePostRepo struct {
	db database.Querier
}

func NewSQLitePostRepo(db database.Querier) PostRepository {
	return &sqlitePostRepo{db: db}
}

const postColumns = `id, title, description, url, platform, published_at, image_url, clicks, COALESCE(user_id, ''), created_at`

func scanPost(row interface{ Scan(...any) error }) (models.Post, error) {
	var p models.Post
	var platform string
	err := row.Scan(&p.ID, &p.Title, &p.Description, &p.URL, &platform, &p.PublishedAt, &p.ImageURL, &p.Clicks, &p.UserID, &p.CreatedAt)
	p.Platform = models.Platform(platform)
	return p, err
}

func (r *sqlitePostRepo) List(ctx context.Context) ([]models.Post, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+postColumns+` FROM posts ORDER BY published_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	var out []models.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *sqlitePostRepo) Create(ctx context.Context, p models.Post) (models.Post, error) {
	now := time.Now().UTC().Truncate(time.Second)
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.PublishedAt.IsZero() {
		p.PublishedAt = now
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}

	var userID any
	if p.UserID != "" {
		userID = p.UserID
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO posts (id, title, description, url, platform, published_at, image_url, user_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Title, p.Description, p.URL, string(p.Platform),
		database.Timestamp(p.PublishedAt), p.ImageURL, userID, database.Timestamp(p.CreatedAt),
	)
	if isUniqueViolation(err) {
		return models.Post{}, fmt.Errorf("post %s: %w", p.ID, ErrAlreadyExists)
	}
	if err != nil {
		return models.Post{}, fmt.Errorf("create post: %w", err)
	}
	p.PublishedAt = p.PublishedAt.UTC().Truncate(time.Second)
	return p, nil
}

func (r *sqlitePostRepo) Remove(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sqlitePostRepo) GetByID(ctx context.Context, id string) (*models.Post, error) {
	p, err := scanPost(r.db.QueryRowContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	return &p, nil
}

func (r *sqlitePostRepo) IncrementClicks(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE posts SET clicks = clicks + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("increment clicks: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sqlitePostRepo) TopByClicks(ctx context.Context, limit int) ([]models.PostStat, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, url, clicks FROM posts
		ORDER BY clicks DESC, published_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("top posts: %w", err)
	}
	defer rows.Close()

	var out []models.PostStat
	for rows.Next() {
		var s models.PostStat
		if err := rows.Scan(&s.ID, &s.Title, &s.URL, &s.Clicks); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *sqlitePostRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts`).Scan(&n)
	return n, err
}

func (r *sqlitePostRepo) TotalClicks(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(clicks), 0) FROM posts`).Scan(&n)
	return n, err
}
