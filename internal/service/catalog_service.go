package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/internal/models"
	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/internal/workflow"
	appErrors "github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/pkg/errors"
)

type catalogStore interface {
	ListActive(ctx context.Context, kind models.CatalogKind) ([]models.CatalogEntry, error)
	CountActive(ctx context.Context, kind models.CatalogKind, ids []string) (int, error)
	FindByIDs(ctx context.Context, kind models.CatalogKind, ids []string) ([]models.CatalogEntry, error)
}

const catalogCacheNamespace = "catalogs"

// ChoiceGroup names a bundle of closed lists served to a form.
type ChoiceGroup string

const (
	ChoiceGroupDirector  ChoiceGroup = "director"
	ChoiceGroupAggressor ChoiceGroup = "aggressor"
	ChoiceGroupCentral   ChoiceGroup = "central"
)

var choiceGroups = map[ChoiceGroup]map[string]models.ChoiceSet{
	ChoiceGroupDirector: {
		"smart_camera_status":     models.SmartCameraChoices,
		"has_aggressor_info":      models.AggressorInfoChoices,
		"public_security_contact": models.PublicSecurityContactChoices,
		"triggered_protocol":      models.TriggeredProtocolChoices,
	},
	ChoiceGroupAggressor: {
		"motives":           models.MotiveChoices,
		"ethnic_group":      models.EthnicGroupChoices,
		"aggressor_gender":  models.GenderChoices,
		"school_attendance": models.SchoolAttendanceChoices,
		"school_stage":      models.SchoolStageChoices,
	},
	ChoiceGroupCentral: {
		"weapon_involvement": models.WeaponInvolvementChoices,
		"threat_mode":        models.ThreatModeChoices,
		"central_motives":    models.MotiveChoices,
		"learning_cycle":     models.LearningCycleChoices,
	},
}

// CatalogService serves reference lists and checks proposed references.
type CatalogService struct {
	repo   catalogStore
	cache  *CacheService
	ttl    time.Duration
	logger *zap.Logger
}

// NewCatalogService constructs the service; cache may be nil.
func NewCatalogService(repo catalogStore, cache *CacheService, ttl time.Duration, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

// List returns the active entries of a catalog, sorted by name.
func (s *CatalogService) List(ctx context.Context, kind models.CatalogKind) ([]models.CatalogEntry, error) {
	if kind.Table() == "" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "catalog not found")
	}

	key := CacheKey(catalogCacheNamespace, string(kind))
	var cached []models.CatalogEntry
	if s.cache.Get(ctx, catalogCacheNamespace, key, &cached) {
		return cached, nil
	}

	entries, err := s.repo.ListActive(ctx, kind)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list catalog")
	}
	if entries == nil {
		entries = []models.CatalogEntry{}
	}
	s.cache.Set(ctx, key, entries, s.ttl)
	return entries, nil
}

// Choices returns the closed lists of a group.
func (s *CatalogService) Choices(group ChoiceGroup) (map[string][]models.Choice, error) {
	sets, ok := choiceGroups[group]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "choice group not found")
	}
	out := make(map[string][]models.Choice, len(sets))
	for name, set := range sets {
		out[name] = []models.Choice(set)
	}
	return out, nil
}

// CheckReferences verifies every catalog id in changes points to an active
// entry and names the fields that do not.
func (s *CatalogService) CheckReferences(ctx context.Context, changes workflow.Changes) error {
	refs := workflow.References(changes)
	if len(refs) == 0 {
		return nil
	}

	invalid := make(map[string]struct{})
	for kind, ids := range refs {
		ids = dedupe(ids)
		count, err := s.repo.CountActive(ctx, kind, ids)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check references")
		}
		if count == len(ids) {
			continue
		}

		found, err := s.repo.FindByIDs(ctx, kind, ids)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check references")
		}
		active := make(map[string]struct{}, len(found))
		for _, entry := range found {
			if entry.Active {
				active[entry.ID] = struct{}{}
			}
		}
		for _, id := range ids {
			if _, ok := active[id]; !ok {
				invalid[string(kind)+"/"+id] = struct{}{}
			}
		}
	}

	var details []appErrors.FieldError
	for _, f := range changes.Fields() {
		kind, ok := workflow.CatalogOf(f)
		if !ok {
			continue
		}
		single := workflow.Changes{f: changes[f]}
		for _, id := range workflow.References(single)[kind] {
			if _, bad := invalid[string(kind)+"/"+id]; bad {
				details = append(details, appErrors.FieldError{
					Field:   string(f),
					Message: fmt.Sprintf("%s is not an active entry", id),
				})
				break
			}
		}
	}
	if len(details) > 0 {
		return appErrors.Validation(details...)
	}
	return nil
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
