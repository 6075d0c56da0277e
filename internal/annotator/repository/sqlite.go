package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"blueprint-annotator/internal/annotator/drawing"
	"blueprint-annotator/internal/annotator/models"
)

//go:embed migrations/001_init_annotator.sql
var initMigration string

var (
	ErrNotFound    = errors.New("not found")
	ErrInvalidPage = errors.New("invalid page")
)

// ============================================================
// SQLite Repository
// ============================================================

type Repository struct {
	db *sql.DB
}

func New(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Init applies the schema. An empty migrationsPath uses the bundled
// migration.
func (r *Repository) Init(ctx context.Context, migrationsPath string) error {
	if err := r.runMigrations(ctx, migrationsPath); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// ============================================================
// Pages
// ============================================================

func (r *Repository) CreatePage(ctx context.Context, p models.Page) (*models.Page, error) {
	if strings.TrimSpace(p.URI) == "" {
		return nil, fmt.Errorf("%w: page uri is required", ErrInvalidPage)
	}
	if p.PageNumber <= 0 {
		p.PageNumber = 1
	}
	p.ID = uuid.NewString()

	_, err := r.db.ExecContext(ctx, `
        INSERT INTO pages (id, project_id, uri, group_name, page_number)
        VALUES (?, ?, ?, ?, ?)
    `, p.ID, p.ProjectID, p.URI, p.GroupName, p.PageNumber)
	if err != nil {
		return nil, fmt.Errorf("insert page: %w", err)
	}
	return r.GetPage(ctx, p.ID)
}

func (r *Repository) GetPage(ctx context.Context, id string) (*models.Page, error) {
	row := r.db.QueryRowContext(ctx, `
        SELECT id, project_id, uri, group_name, page_number, created_at
        FROM pages
        WHERE id = ?
    `, id)

	var p models.Page
	if err := row.Scan(&p.ID, &p.ProjectID, &p.URI, &p.GroupName, &p.PageNumber, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// ListPages returns a project's pages ordered by group then page number.
func (r *Repository) ListPages(ctx context.Context, projectID string) ([]models.Page, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT id, project_id, uri, group_name, page_number, created_at
        FROM pages
        WHERE project_id = ?
        ORDER BY group_name, page_number, created_at
    `, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pages := []models.Page{}
	for rows.Next() {
		var p models.Page
		if err := rows.Scan(&p.ID, &p.ProjectID, &p.URI, &p.GroupName, &p.PageNumber, &p.CreatedAt); err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// DeletePage removes a page together with its annotations.
func (r *Repository) DeletePage(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM pages WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM annotations WHERE page_ref = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// ============================================================
// Annotations
// ============================================================

const annotationColumns = `id, project_id, page_ref, shape, x, y, width, height, path, color,
        completed, catalog_item_id, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanAnnotation(s scanner) (*models.Annotation, error) {
	var (
		a                   models.Annotation
		pageRef             sql.NullString
		x, y, width, height sql.NullFloat64
		shape               string
	)
	err := s.Scan(&a.ID, &a.ProjectID, &pageRef, &shape, &x, &y, &width, &height, &a.Path, &a.Color,
		&a.Completed, &a.CatalogItemID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Shape = models.Shape(shape)
	if pageRef.Valid {
		a.PageRef = &pageRef.String
	}
	a.X = nullFloat(x)
	a.Y = nullFloat(y)
	a.Width = nullFloat(width)
	a.Height = nullFloat(height)
	return &a, nil
}

func sqlFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func sqlString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return models.Float(v.Float64)
}

// CreateAnnotation validates and stores a, assigning it a fresh id.
func (r *Repository) CreateAnnotation(ctx context.Context, a models.Annotation) (*models.Annotation, error) {
	a, err := drawing.Normalize(a)
	if err != nil {
		return nil, err
	}
	if a.PageRef != nil && *a.PageRef == "" {
		a.PageRef = nil
	}
	a.ID = uuid.NewString()

	_, err = r.db.ExecContext(ctx, `
        INSERT INTO annotations (id, project_id, page_ref, shape, x, y, width, height, path, color, completed, catalog_item_id)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `, a.ID, a.ProjectID, sqlString(a.PageRef), string(a.Shape),
		sqlFloat(a.X), sqlFloat(a.Y), sqlFloat(a.Width), sqlFloat(a.Height), a.Path, a.Color,
		a.Completed, a.CatalogItemID)
	if err != nil {
		return nil, fmt.Errorf("insert annotation: %w", err)
	}
	return r.GetAnnotation(ctx, a.ID)
}

func (r *Repository) GetAnnotation(ctx context.Context, id string) (*models.Annotation, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+annotationColumns+` FROM annotations WHERE id = ?`, id)
	a, err := scanAnnotation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

// ListAnnotations returns the annotations of one page in creation order.
// A nil pageRef selects the project's default plan.
func (r *Repository) ListAnnotations(ctx context.Context, projectID string, pageRef *string) ([]models.Annotation, error) {
	query := `SELECT ` + annotationColumns + ` FROM annotations WHERE project_id = ? AND page_ref IS NULL`
	args := []any{projectID}
	if pageRef != nil {
		query = `SELECT ` + annotationColumns + ` FROM annotations WHERE project_id = ? AND page_ref = ?`
		args = append(args, *pageRef)
	}
	query += ` ORDER BY created_at, rowid`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []models.Annotation{}
	for rows.Next() {
		a, err := scanAnnotation(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *a)
	}
	return list, rows.Err()
}

// AnnotationPatch holds the fields a host may change after creation.
// Geometry is immutable once stored.
type AnnotationPatch struct {
	Completed *bool   `json:"completed"`
	Color     *string `json:"color"`
}

func (r *Repository) UpdateAnnotation(ctx context.Context, id string, patch AnnotationPatch) (*models.Annotation, error) {
	sets := []string{}
	args := []any{}
	if patch.Completed != nil {
		sets = append(sets, "completed = ?")
		args = append(args, *patch.Completed)
	}
	if patch.Color != nil {
		sets = append(sets, "color = ?")
		args = append(args, *patch.Color)
	}
	if len(sets) == 0 {
		return r.GetAnnotation(ctx, id)
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, id)

	res, err := r.db.ExecContext(ctx, `UPDATE annotations SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("update annotation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return r.GetAnnotation(ctx, id)
}

func (r *Repository) DeleteAnnotation(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM annotations WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ============================================================
// Migrations
// ============================================================

func (r *Repository) runMigrations(ctx context.Context, migrationsPath string) error {
	sqlText := initMigration
	if migrationsPath != "" {
		data, err := os.ReadFile(migrationsPath)
		if err != nil {
			return fmt.Errorf("read migration: %w", err)
		}
		sqlText = string(data)
	}
	if _, err := r.db.ExecContext(ctx, sqlText); err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}
	return nil
}

// OpenSQLite opens the sqlite database at dbPath, creating its directory.
func OpenSQLite(dbPath string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_pragma=busy_timeout=5000", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}
