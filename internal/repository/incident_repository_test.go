package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"reflect"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/reflectx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/internal/models"
)

func newIncidentRepoMock(t *testing.T) (*IncidentRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	cleanup := func() {
		_ = sqlxDB.Close()
	}
	return NewIncidentRepository(sqlxDB), mock, cleanup
}

// incidentRow fills every column with a scannable value: empty strings and
// false for plain columns, NULL for nullable ones.
func incidentRow(id, status string) *sqlmock.Rows {
	tm := reflectx.NewMapper("db").TypeMap(reflect.TypeOf(models.Incident{}))
	now := time.Now().UTC()
	values := make([]driver.Value, len(incidentColumns))
	for i, col := range incidentColumns {
		switch col {
		case "id":
			values[i] = id
		case "status":
			values[i] = status
		case "owner_username":
			values[i] = "diretor1"
		case "unit_code":
			values[i] = "200237"
		case "district_code":
			values[i] = "108500"
		case "is_theft_category":
			values[i] = true
		case "incident_type_ids":
			values[i] = []byte(`{0f5c2a9e-7a4b-4c1e-9d57-4d2f7c1b3a10}`)
		default:
			switch tm.GetByPath(col).Field.Type.Kind() {
			case reflect.String:
				values[i] = ""
			case reflect.Bool:
				values[i] = false
			case reflect.Struct:
				values[i] = now
			default:
				values[i] = nil
			}
		}
	}
	return sqlmock.NewRows(incidentColumns).AddRow(values...)
}

func TestIncidentColumnsFollowModel(t *testing.T) {
	assert.Equal(t, "id", incidentColumns[0])
	assert.Contains(t, incidentColumns, "has_aggressor_info")
	assert.Contains(t, incidentColumns, "protocol_number")
	assert.NotContains(t, incidentColumns, "status_label")
	assert.True(t, isIncidentColumn("central_referrals"))
	assert.False(t, isIncidentColumn("drop table"))
}

func TestIncidentRepositoryCreate(t *testing.T) {
	repo, mock, cleanup := newIncidentRepoMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO incidents (id, status, owner_username")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	inc := &models.Incident{Status: models.StatusDrafting, OwnerUsername: "diretor1"}
	require.NoError(t, repo.Create(context.Background(), inc))
	assert.NotEmpty(t, inc.ID)
	assert.False(t, inc.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIncidentRepositoryGetByID(t *testing.T) {
	repo, mock, cleanup := newIncidentRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("FROM incidents WHERE id = $1")).
		WithArgs("inc-1").
		WillReturnRows(incidentRow("inc-1", string(models.StatusDrafting)))

	inc, err := repo.GetByID(context.Background(), "inc-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDrafting, inc.Status)
	assert.True(t, inc.IsTheftCategory)
	assert.Equal(t, []string{"0f5c2a9e-7a4b-4c1e-9d57-4d2f7c1b3a10"}, []string(inc.IncidentTypeIDs))
	assert.Nil(t, inc.ProtocolNumber)
}

func TestIncidentRepositoryGetByIDNotFound(t *testing.T) {
	repo, mock, cleanup := newIncidentRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("FROM incidents WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestIncidentRepositoryListAppliesFilters(t *testing.T) {
	repo, mock, cleanup := newIncidentRepoMock(t)
	defer cleanup()

	filter := models.IncidentFilter{
		DistrictCode: "108500",
		Statuses:     []models.Status{models.StatusSentToDistrict},
		Page:         2,
		PageSize:     10,
	}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM incidents WHERE district_code = $1 AND status = ANY($2)")).
		WithArgs("108500", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))
	mock.ExpectQuery(regexp.QuoteMeta("FROM incidents WHERE district_code = $1 AND status = ANY($2) ORDER BY created_at DESC LIMIT 10 OFFSET 10")).
		WithArgs("108500", sqlmock.AnyArg()).
		WillReturnRows(incidentRow("inc-11", string(models.StatusSentToDistrict)))

	items, total, err := repo.List(context.Background(), filter)
	require.NoError(t, err)
	assert.Equal(t, 11, total)
	require.Len(t, items, 1)
	assert.Equal(t, "inc-11", items[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIncidentRepositoryWithinTxUpdatesListedColumns(t *testing.T) {
	repo, mock, cleanup := newIncidentRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM incidents WHERE id = $1 FOR UPDATE")).
		WithArgs("inc-1").
		WillReturnRows(incidentRow("inc-1", string(models.StatusDrafting)))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE incidents SET description = $1, status = $2, updated_at = $3 WHERE id = $4")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.WithinTx(context.Background(), func(tx IncidentTx) error {
		inc, err := tx.GetForUpdate(context.Background(), "inc-1")
		if err != nil {
			return err
		}
		inc.Description = "furto"
		inc.Status = models.StatusSentToDistrict
		return tx.Update(context.Background(), inc, []string{"description", "status", "updated_at", "bogus"})
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIncidentRepositoryWithinTxRollsBackOnError(t *testing.T) {
	repo, mock, cleanup := newIncidentRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO protocol_counters")).
		WithArgs(2025).
		WillReturnError(errors.New("counter table locked"))
	mock.ExpectRollback()

	err := repo.WithinTx(context.Background(), func(tx IncidentTx) error {
		_, err := tx.NextProtocolSequence(context.Background(), 2025)
		return err
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "next protocol sequence")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIncidentRepositoryNextProtocolSequence(t *testing.T) {
	repo, mock, cleanup := newIncidentRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (year) DO UPDATE SET value = protocol_counters.value + 1")).
		WithArgs(2025).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(int64(42)))
	mock.ExpectCommit()

	var seq int64
	err := repo.WithinTx(context.Background(), func(tx IncidentTx) error {
		var err error
		seq, err = tx.NextProtocolSequence(context.Background(), 2025)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), seq)
}

func TestIncidentRepositoryDeleteDrafts(t *testing.T) {
	repo, mock, cleanup := newIncidentRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE owner_username = $1 AND status = $2 ORDER BY created_at FOR UPDATE")).
		WithArgs("diretor1", string(models.StatusDrafting)).
		WillReturnRows(incidentRow("inc-1", string(models.StatusDrafting)))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM incidents WHERE id = ANY($1) AND status = $2")).
		WithArgs(sqlmock.AnyArg(), string(models.StatusDrafting)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var deleted int64
	err := repo.WithinTx(context.Background(), func(tx IncidentTx) error {
		drafts, err := tx.LockDraftsByOwner(context.Background(), "diretor1")
		if err != nil {
			return err
		}
		ids := make([]string, 0, len(drafts))
		for _, d := range drafts {
			ids = append(ids, d.ID)
		}
		deleted, err = tx.DeleteByIDs(context.Background(), ids)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}
