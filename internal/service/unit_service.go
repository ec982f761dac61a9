package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/internal/models"
	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/internal/repository"
	appErrors "github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/pkg/errors"
)

type unitSource interface {
	Get(ctx context.Context, code string) (*models.Unit, error)
}

const (
	unitCacheNamespace = "units"
	unitBatchLimit     = 8
)

// UnitService resolves schools and districts against the units registry and
// validates the unit/district pair of a report.
type UnitService struct {
	source  unitSource
	cache   *CacheService
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
}

// NewUnitService constructs the validator. cache and metrics may be nil.
func NewUnitService(source unitSource, cache *CacheService, metrics *MetricsService, ttl time.Duration, logger *zap.Logger) *UnitService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UnitService{source: source, cache: cache, metrics: metrics, ttl: ttl, logger: logger}
}

// Lookup returns the unit with the given code. A missing unit is NotFound;
// any other failure is a retryable UpstreamUnavailable.
func (s *UnitService) Lookup(ctx context.Context, code string) (*models.Unit, error) {
	return s.lookup(ctx, strings.TrimSpace(code), true)
}

// lookup reads through the cache when useCache is set. Registry answers are
// always written back.
func (s *UnitService) lookup(ctx context.Context, code string, useCache bool) (*models.Unit, error) {
	if code == "" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "unit not found")
	}

	key := CacheKey(unitCacheNamespace, code)
	var cached models.Unit
	if useCache && s.cache.Get(ctx, unitCacheNamespace, key, &cached) {
		return &cached, nil
	}

	start := time.Now()
	unit, err := s.source.Get(ctx, code)
	switch {
	case err == nil:
		s.metrics.RecordUpstream(unitCacheNamespace, "ok", time.Since(start))
	case errors.Is(err, repository.ErrUnitNotFound):
		s.metrics.RecordUpstream(unitCacheNamespace, "not_found", time.Since(start))
		_ = s.cache.Invalidate(ctx, key)
		return nil, appErrors.Clone(appErrors.ErrNotFound, "unit not found")
	default:
		s.metrics.RecordUpstream(unitCacheNamespace, "error", time.Since(start))
		s.logger.Warn("units registry unavailable", zap.String("code", code), zap.Error(err))
		return nil, appErrors.Upstream(err, "units registry unavailable")
	}

	s.cache.Set(ctx, key, unit, s.ttl)
	return unit, nil
}

// LookupBatch resolves several codes concurrently. Unknown codes are left out
// of the result; the first upstream failure is returned next to whatever was
// resolved.
func (s *UnitService) LookupBatch(ctx context.Context, codes []string) (map[string]models.Unit, error) {
	unique := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		if code = strings.TrimSpace(code); code != "" {
			unique[code] = struct{}{}
		}
	}
	ordered := make([]string, 0, len(unique))
	for code := range unique {
		ordered = append(ordered, code)
	}
	sort.Strings(ordered)

	var (
		mu     sync.Mutex
		result = make(map[string]models.Unit, len(ordered))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(unitBatchLimit)
	for _, code := range ordered {
		code := code
		g.Go(func() error {
			unit, err := s.Lookup(gctx, code)
			if err != nil {
				if appErrors.IsCode(err, appErrors.ErrNotFound.Code) {
					return nil
				}
				return err
			}
			mu.Lock()
			result[code] = *unit
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()
	return result, err
}

// Validate checks that unitCode exists, belongs to districtCode and, when
// scope is not empty, that the acting user works at the unit or its district.
// The registry is always asked; an unreachable registry fails the check even
// when the unit is cached.
func (s *UnitService) Validate(ctx context.Context, unitCode, districtCode, scope string) error {
	unit, err := s.lookup(ctx, strings.TrimSpace(unitCode), false)
	if err != nil {
		if appErrors.IsCode(err, appErrors.ErrNotFound.Code) {
			return appErrors.Field("unit_code", "unit not found in the units registry")
		}
		return err
	}
	if unit.Code != "" && unit.Code != unitCode {
		return appErrors.Field("unit_code", "unit code does not match the registry")
	}
	if unit.DistrictCode != districtCode {
		return appErrors.Field("district_code", "district does not match the unit's district")
	}
	if scope != "" && scope != unitCode && scope != districtCode {
		return appErrors.Field("unit_code", "unit does not belong to the authenticated user")
	}
	return nil
}
