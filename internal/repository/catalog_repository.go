package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/internal/models"
)

// CatalogRepository reads the reference tables behind form selects.
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository constructs the repository.
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func catalogTable(kind models.CatalogKind) (string, error) {
	table := kind.Table()
	if table == "" {
		return "", fmt.Errorf("unknown catalog %q", kind)
	}
	return table, nil
}

// ListActive returns the active entries sorted by name.
func (r *CatalogRepository) ListActive(ctx context.Context, kind models.CatalogKind) ([]models.CatalogEntry, error) {
	table, err := catalogTable(kind)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT id, name, active, created_at FROM %s WHERE active = TRUE ORDER BY name ASC", table)
	var entries []models.CatalogEntry
	if err := r.db.SelectContext(ctx, &entries, query); err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	return entries, nil
}

// CountActive counts how many of ids point to active entries.
func (r *CatalogRepository) CountActive(ctx context.Context, kind models.CatalogKind, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	table, err := catalogTable(kind)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf("SELECT COUNT(DISTINCT id) FROM %s WHERE active = TRUE AND id = ANY($1)", table)
	var count int
	if err := r.db.GetContext(ctx, &count, query, pq.Array(ids)); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return count, nil
}

// FindByIDs returns entries (active or not) for display purposes.
func (r *CatalogRepository) FindByIDs(ctx context.Context, kind models.CatalogKind, ids []string) ([]models.CatalogEntry, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	table, err := catalogTable(kind)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT id, name, active, created_at FROM %s WHERE id = ANY($1) ORDER BY name ASC", table)
	var entries []models.CatalogEntry
	if err := r.db.SelectContext(ctx, &entries, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find %s: %w", table, err)
	}
	return entries, nil
}
