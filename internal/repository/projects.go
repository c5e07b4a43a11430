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

// ProjectRepository stores portfolio projects.
type ProjectRepository interface {
	collection.Repository[models.Project]
	GetByID(ctx context.Context, id string) (*models.Project, error)
	Count(ctx context.Context) (int64, error)
}

type sqliteProjectRepo struct {
	db database.Querier
}

func NewSQLiteProjectRepo(db database.Querier) ProjectRepository {
	return &sqliteProjectRepo{db: db}
}

const projectColumns = `id, title, description, category, image_url, alt, github_url, COALESCE(user_id, ''), created_at`

func scanProject(row interface{ Scan(...any) error }) (models.Project, error) {
	var p models.Project
	err := row.Scan(&p.ID, &p.Title, &p.Description, &p.Category, &p.ImageURL, &p.Alt, &p.GithubURL, &p.UserID, &p.CreatedAt)
	return p, err
}

func (r *sqliteProjectRepo) List(ctx context.Context) ([]models.Project, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+projectColumns+` FROM projects ORDER BY created_at ASC, rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var out []models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *sqliteProjectRepo) Create(ctx context.Context, p models.Project) (models.Project, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}

	var userID any
	if p.UserID != "" {
		userID = p.UserID
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO projects (id, title, description, category, image_url, alt, github_url, user_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Title, p.Description, p.Category, p.ImageURL, p.Alt, p.GithubURL, userID, database.Timestamp(p.CreatedAt),
	)
	if isUniqueViolation(err) {
		return models.Project{}, fmt.Errorf("project %s: %w", p.ID, ErrAlreadyExists)
	}
	if err != nil {
		return models.Project{}, fmt.Errorf("create project: %w", err)
	}
	return p, nil
}

func (r *sqliteProjectRepo) Remove(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sqliteProjectRepo) GetByID(ctx context.Context, id string) (*models.Project, error) {
	p, err := scanProject(r.db.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return &p, nil
}

func (r *sqliteProjectRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects`).Scan(&n)
	return n, err
}
