package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/internal/models"
)

func newCatalogRepoMock(t *testing.T) (*CatalogRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return NewCatalogRepository(sqlxDB), mock, func() { _ = sqlxDB.Close() }
}

func TestCatalogRepositoryListActive(t *testing.T) {
	repo, mock, cleanup := newCatalogRepoMock(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"id", "name", "active", "created_at"}).
		AddRow("type-1", "Furto", true, time.Now()).
		AddRow("type-2", "Roubo", true, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, active, created_at FROM incident_types WHERE active = TRUE ORDER BY name ASC")).
		WillReturnRows(rows)

	entries, err := repo.ListActive(context.Background(), models.CatalogIncidentTypes)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Furto", entries[0].Name)
}

func TestCatalogRepositoryRejectsUnknownCatalog(t *testing.T) {
	repo, _, cleanup := newCatalogRepoMock(t)
	defer cleanup()

	_, err := repo.ListActive(context.Background(), models.CatalogKind("users; --"))
	require.Error(t, err)
}

func TestCatalogRepositoryCountActive(t *testing.T) {
	repo, mock, cleanup := newCatalogRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(DISTINCT id) FROM declarants WHERE active = TRUE AND id = ANY($1)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	count, err := repo.CountActive(context.Background(), models.CatalogDeclarants, []string{"decl-1", "decl-2"})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = repo.CountActive(context.Background(), models.CatalogDeclarants, nil)
	require.NoError(t, err)
	assert.Zero(t, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogRepositoryFindByIDs(t *testing.T) {
	repo, mock, cleanup := newCatalogRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("FROM involved_parties WHERE id = ANY($1)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "active", "created_at"}).
			AddRow("env-1", "Estudante", false, time.Now()))

	entries, err := repo.FindByIDs(context.Background(), models.CatalogInvolvedParties, []string{"env-1"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Active)
}
