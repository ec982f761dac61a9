package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/internal/models"
	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/internal/workflow"
	appErrors "github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/pkg/errors"
)

type mockCatalogStore struct {
	entries   map[models.CatalogKind][]models.CatalogEntry
	listCalls int
}

func (m *mockCatalogStore) ListActive(_ context.Context, kind models.CatalogKind) ([]models.CatalogEntry, error) {
	m.listCalls++
	var out []models.CatalogEntry
	for _, e := range m.entries[kind] {
		if e.Active {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockCatalogStore) CountActive(_ context.Context, kind models.CatalogKind, ids []string) (int, error) {
	n := 0
	for _, e := range m.entries[kind] {
		for _, id := range ids {
			if e.ID == id && e.Active {
				n++
			}
		}
	}
	return n, nil
}

func (m *mockCatalogStore) FindByIDs(_ context.Context, kind models.CatalogKind, ids []string) ([]models.CatalogEntry, error) {
	var out []models.CatalogEntry
	for _, e := range m.entries[kind] {
		for _, id := range ids {
			if e.ID == id {
				out = append(out, e)
			}
		}
	}
	return out, nil
}

const inactiveTypeID = "a1b2c3d4-0000-4000-8000-000000000001"

func newCatalogStore() *mockCatalogStore {
	return &mockCatalogStore{entries: map[models.CatalogKind][]models.CatalogEntry{
		models.CatalogIncidentTypes: {
			{ID: typeID, Name: "Furto", Active: true},
			{ID: inactiveTypeID, Name: "Antigo", Active: false},
		},
		models.CatalogDeclarants: {
			{ID: declarantID, Name: "Diretor", Active: true},
		},
	}}
}

func decodeChanges(t *testing.T, values map[string]any) workflow.Changes {
	t.Helper()
	raw := make(map[string]json.RawMessage, len(values))
	for k, v := range values {
		b, err := json.Marshal(v)
		require.NoError(t, err)
		raw[k] = b
	}
	changes, err := workflow.Decode(raw)
	require.NoError(t, err)
	return changes
}

func TestCatalogServiceListCaches(t *testing.T) {
	store := newCatalogStore()
	cache := NewCacheService(newMemoryCache(), nil, time.Minute, zap.NewNop())
	svc := NewCatalogService(store, cache, time.Hour, nil)

	entries, err := svc.List(context.Background(), models.CatalogIncidentTypes)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Furto", entries[0].Name)

	_, err = svc.List(context.Background(), models.CatalogIncidentTypes)
	require.NoError(t, err)
	assert.Equal(t, 1, store.listCalls)

	empty, err := svc.List(context.Background(), models.CatalogInvolvedParties)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	_, err = svc.List(context.Background(), "weapons")
	assert.True(t, appErrors.IsCode(err, appErrors.ErrNotFound.Code))
}

func TestCatalogServiceChoices(t *testing.T) {
	svc := NewCatalogService(newCatalogStore(), nil, 0, nil)

	choices, err := svc.Choices(ChoiceGroupCentral)
	require.NoError(t, err)
	assert.Contains(t, choices, "threat_mode")
	assert.NotEmpty(t, choices["learning_cycle"])

	_, err = svc.Choices("unknown")
	assert.True(t, appErrors.IsCode(err, appErrors.ErrNotFound.Code))
}

func TestCatalogServiceCheckReferences(t *testing.T) {
	svc := NewCatalogService(newCatalogStore(), nil, 0, nil)
	ctx := context.Background()

	err := svc.CheckReferences(ctx, decodeChanges(t, map[string]any{
		"incident_type_ids": []string{typeID},
		"declarant_id":      declarantID,
		"description":       "texto",
	}))
	assert.NoError(t, err)

	err = svc.CheckReferences(ctx, decodeChanges(t, map[string]any{
		"incident_type_ids": []string{typeID, inactiveTypeID},
		"declarant_id":      partyID,
	}))
	require.Error(t, err)
	assert.ElementsMatch(t, []string{"incident_type_ids", "declarant_id"}, appErrors.FromError(err).Fields())

	assert.NoError(t, svc.CheckReferences(ctx, workflow.Changes{}))
}
