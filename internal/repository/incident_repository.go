package repository

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/reflectx"
	"github.com/lib/pq"

	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/internal/models"
)

var incidentColumns = columnsOf(reflect.TypeOf(models.Incident{}))

// columnsOf lists the top-level db columns of a struct in declaration order.
func columnsOf(t reflect.Type) []string {
	tm := reflectx.NewMapper("db").TypeMap(t)
	cols := make([]string, 0, len(tm.Index))
	for _, fi := range tm.Index {
		if len(fi.Index) != 1 || fi.Name == "" {
			continue
		}
		cols = append(cols, fi.Name)
	}
	return cols
}

func isIncidentColumn(col string) bool {
	for _, c := range incidentColumns {
		if c == col {
			return true
		}
	}
	return false
}

var (
	incidentSelect = "SELECT " + strings.Join(incidentColumns, ", ") + " FROM incidents"
	incidentInsert = fmt.Sprintf("INSERT INTO incidents (%s) VALUES (:%s)",
		strings.Join(incidentColumns, ", "), strings.Join(incidentColumns, ", :"))
)

// IncidentRepository persists incident reports.
type IncidentRepository struct {
	db *sqlx.DB
}

// NewIncidentRepository constructs the repository.
func NewIncidentRepository(db *sqlx.DB) *IncidentRepository {
	return &IncidentRepository{db: db}
}

// Create inserts a new report, assigning id and timestamps when missing.
func (r *IncidentRepository) Create(ctx context.Context, inc *models.Incident) error {
	if inc.ID == "" {
		inc.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if inc.CreatedAt.IsZero() {
		inc.CreatedAt = now
	}
	inc.UpdatedAt = now
	if _, err := r.db.NamedExecContext(ctx, incidentInsert, inc); err != nil {
		return fmt.Errorf("create incident: %w", err)
	}
	return nil
}

// GetByID fetches a report. sql.ErrNoRows is returned untouched.
func (r *IncidentRepository) GetByID(ctx context.Context, id string) (*models.Incident, error) {
	var inc models.Incident
	if err := r.db.GetContext(ctx, &inc, incidentSelect+" WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &inc, nil
}

// List returns the page of reports matching filter and the total count.
func (r *IncidentRepository) List(ctx context.Context, filter models.IncidentFilter) ([]models.Incident, int, error) {
	where, args := buildIncidentFilter(filter)

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM incidents"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count incidents: %w", err)
	}

	order := "DESC"
	if strings.EqualFold(filter.SortOrder, "asc") {
		order = "ASC"
	}
	page, size := normalisePage(filter.Page, filter.PageSize)
	query := fmt.Sprintf("%s%s ORDER BY created_at %s LIMIT %d OFFSET %d", incidentSelect, where, order, size, (page-1)*size)

	var items []models.Incident
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list incidents: %w", err)
	}
	return items, total, nil
}

func buildIncidentFilter(filter models.IncidentFilter) (string, []interface{}) {
	conditions := make([]string, 0, 4)
	args := make([]interface{}, 0, 4)
	if filter.UnitCode != "" {
		args = append(args, filter.UnitCode)
		conditions = append(conditions, fmt.Sprintf("unit_code = $%d", len(args)))
	}
	if filter.DistrictCode != "" {
		args = append(args, filter.DistrictCode)
		conditions = append(conditions, fmt.Sprintf("district_code = $%d", len(args)))
	}
	if filter.OwnerUsername != "" {
		args = append(args, filter.OwnerUsername)
		conditions = append(conditions, fmt.Sprintf("owner_username = $%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		args = append(args, pq.Array(statuses))
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func normalisePage(page, size int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return page, size
}

// IncidentTx groups the statements that must run under one row lock.
type IncidentTx interface {
	GetForUpdate(ctx context.Context, id string) (*models.Incident, error)
	Update(ctx context.Context, inc *models.Incident, columns []string) error
	NextProtocolSequence(ctx context.Context, year int) (int64, error)
	LockDraftsByOwner(ctx context.Context, username string) ([]models.Incident, error)
	DeleteByIDs(ctx context.Context, ids []string) (int64, error)
}

// WithinTx runs fn inside a transaction, committing only when fn succeeds.
func (r *IncidentRepository) WithinTx(ctx context.Context, fn func(IncidentTx) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin incident transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&incidentTx{tx: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit incident transaction: %w", err)
	}
	return nil
}

type incidentTx struct {
	tx *sqlx.Tx
}

func (t *incidentTx) GetForUpdate(ctx context.Context, id string) (*models.Incident, error) {
	var inc models.Incident
	if err := t.tx.GetContext(ctx, &inc, incidentSelect+" WHERE id = $1 FOR UPDATE", id); err != nil {
		return nil, err
	}
	return &inc, nil
}

// Update persists the listed columns plus updated_at.
func (t *incidentTx) Update(ctx context.Context, inc *models.Incident, columns []string) error {
	inc.UpdatedAt = time.Now().UTC()
	setParts := make([]string, 0, len(columns)+1)
	for _, col := range columns {
		if col == "id" || col == "updated_at" || !isIncidentColumn(col) {
			continue
		}
		setParts = append(setParts, fmt.Sprintf("%s = :%s", col, col))
	}
	setParts = append(setParts, "updated_at = :updated_at")

	query := fmt.Sprintf("UPDATE incidents SET %s WHERE id = :id", strings.Join(setParts, ", "))
	res, err := t.tx.NamedExecContext(ctx, query, inc)
	if err != nil {
		return fmt.Errorf("update incident: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// NextProtocolSequence increments and returns the running counter of the year.
func (t *incidentTx) NextProtocolSequence(ctx context.Context, year int) (int64, error) {
	const query = `INSERT INTO protocol_counters (year, value) VALUES ($1, 1)
ON CONFLICT (year) DO UPDATE SET value = protocol_counters.value + 1
RETURNING value`
	var value int64
	if err := t.tx.GetContext(ctx, &value, query, year); err != nil {
		return 0, fmt.Errorf("next protocol sequence: %w", err)
	}
	return value, nil
}

// LockDraftsByOwner locks every drafting report of the user.
func (t *incidentTx) LockDraftsByOwner(ctx context.Context, username string) ([]models.Incident, error) {
	var items []models.Incident
	query := incidentSelect + " WHERE owner_username = $1 AND status = $2 ORDER BY created_at FOR UPDATE"
	if err := t.tx.SelectContext(ctx, &items, query, username, models.StatusDrafting); err != nil {
		return nil, fmt.Errorf("lock drafts: %w", err)
	}
	return items, nil
}

// DeleteByIDs removes drafting reports only.
func (t *incidentTx) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	const query = `DELETE FROM incidents WHERE id = ANY($1) AND status = $2`
	res, err := t.tx.ExecContext(ctx, query, pq.Array(ids), models.StatusDrafting)
	if err != nil {
		return 0, fmt.Errorf("delete incidents: %w", err)
	}
	return res.RowsAffected()
}
