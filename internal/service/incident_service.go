package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/internal/models"
	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/internal/repository"
	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/internal/workflow"
	appErrors "github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/pkg/errors"
)

type incidentStore interface {
	Create(ctx context.Context, inc *models.Incident) error
	GetByID(ctx context.Context, id string) (*models.Incident, error)
	List(ctx context.Context, filter models.IncidentFilter) ([]models.Incident, int, error)
	WithinTx(ctx context.Context, fn func(repository.IncidentTx) error) error
}

type unitValidator interface {
	Validate(ctx context.Context, unitCode, districtCode, scope string) error
	LookupBatch(ctx context.Context, codes []string) (map[string]models.Unit, error)
}

type referenceChecker interface {
	CheckReferences(ctx context.Context, changes workflow.Changes) error
}

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type protocolGenerator interface {
	Generate(ctx context.Context, seq workflow.Sequencer) (string, error)
}

// Payload is the raw JSON body of a proposal, keyed by field name.
type Payload map[string]json.RawMessage

// IncidentService is the workflow engine: it loads, authorizes, validates,
// applies the field invariants and persists every report mutation.
type IncidentService struct {
	repo      incidentStore
	units     unitValidator
	catalogs  referenceChecker
	audit     auditRecorder
	matrix    *workflow.AuthorizationMatrix
	protocols protocolGenerator
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// IncidentServiceOption configures the service.
type IncidentServiceOption func(*IncidentService)

// WithAuthorizationMatrix overrides the default role binding.
func WithAuthorizationMatrix(matrix *workflow.AuthorizationMatrix) IncidentServiceOption {
	return func(s *IncidentService) {
		if matrix != nil {
			s.matrix = matrix
		}
	}
}

// WithProtocolGenerator overrides the protocol generator.
func WithProtocolGenerator(gen protocolGenerator) IncidentServiceOption {
	return func(s *IncidentService) {
		if gen != nil {
			s.protocols = gen
		}
	}
}

// WithIncidentMetrics records workflow counters.
func WithIncidentMetrics(metrics *MetricsService) IncidentServiceOption {
	return func(s *IncidentService) {
		s.metrics = metrics
	}
}

// WithClock overrides the time source used for closing timestamps.
func WithClock(now func() time.Time) IncidentServiceOption {
	return func(s *IncidentService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewIncidentService constructs the engine with defaults.
func NewIncidentService(repo incidentStore, units unitValidator, catalogs referenceChecker, audit auditRecorder, logger *zap.Logger, opts ...IncidentServiceOption) *IncidentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &IncidentService{
		repo:      repo,
		units:     units,
		catalogs:  catalogs,
		audit:     audit,
		matrix:    workflow.NewAuthorizationMatrix(nil),
		protocols: workflow.NewProtocolGenerator("", nil),
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Matrix exposes the authorization matrix used by the engine.
func (s *IncidentService) Matrix() *workflow.AuthorizationMatrix {
	return s.matrix
}

// CreateDraft opens a report in drafting status from the initial section.
func (s *IncidentService) CreateDraft(ctx context.Context, p *models.Principal, payload Payload) (view *models.IncidentView, err error) {
	defer func() { s.record(workflow.ActionCreate, err) }()

	if err := s.matrix.Authorize(p, workflow.ActionCreate, nil); err != nil {
		return nil, err
	}
	changes, err := workflow.Decode(payload)
	if err != nil {
		return nil, err
	}
	section, _ := workflow.LookupSection(workflow.SectionInitial)

	blank := &models.Incident{Status: models.StatusDrafting, OwnerUsername: p.Username}
	plan, err := workflow.PrepareSection(blank, section, changes)
	if err != nil {
		return nil, err
	}
	inc := plan.Post
	if err := s.matrix.Authorize(p, workflow.ActionCreate, inc); err != nil {
		return nil, err
	}
	if err := s.units.Validate(ctx, inc.UnitCode, inc.DistrictCode, s.scopeOf(p)); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, inc); err != nil {
		s.logger.Error("failed to create incident", zap.String("username", p.Username), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create report")
	}

	s.emitAudit(ctx, p, models.AuditActionIncidentCreate, inc.ID, nil, snapshot(inc, plan.Columns()))
	return s.viewOf(ctx, p, inc), nil
}

// UpdateSection applies a partial update restricted to one form section.
func (s *IncidentService) UpdateSection(ctx context.Context, p *models.Principal, id string, name workflow.SectionName, payload Payload) (view *models.IncidentView, err error) {
	defer func() { s.record(workflow.ActionUpdate, err) }()

	section, ok := workflow.LookupSection(name)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
	}
	changes, decodeErr := workflow.Decode(payload)

	var (
		before, after *models.Incident
		columns       []workflow.Field
	)
	err = s.repo.WithinTx(ctx, func(tx repository.IncidentTx) error {
		current, err := s.lock(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := s.matrix.AuthorizeSection(p, section, current); err != nil {
			return err
		}
		if decodeErr != nil {
			return decodeErr
		}

		plan, err := workflow.PrepareSection(current, section, changes)
		if err != nil {
			return err
		}
		if err := s.catalogs.CheckReferences(ctx, plan.Writes); err != nil {
			return err
		}
		if plan.Writes.Has(workflow.FieldUnitCode) || plan.Writes.Has(workflow.FieldDistrictCode) {
			if err := s.units.Validate(ctx, plan.Post.UnitCode, plan.Post.DistrictCode, s.scopeOf(p)); err != nil {
				return err
			}
		}

		columns = plan.Columns()
		if len(columns) == 0 {
			before, after = current, current
			return nil
		}
		if err := tx.Update(ctx, plan.Post, columnNames(columns)); err != nil {
			return s.persistError(err)
		}
		before, after = current, plan.Post
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(columns) > 0 {
		s.emitAudit(ctx, p, models.AuditActionIncidentUpdate, after.ID, snapshot(before, columns), snapshot(after, columns))
	}
	return s.viewOf(ctx, p, after), nil
}

// SendToDistrict closes the director stage and assigns the protocol number.
func (s *IncidentService) SendToDistrict(ctx context.Context, p *models.Principal, id string, payload Payload) (*models.IncidentView, error) {
	return s.advance(ctx, p, id, workflow.ActionSendToDistrict, payload)
}

// SendToCentral closes the district stage.
func (s *IncidentService) SendToCentral(ctx context.Context, p *models.Principal, id string, payload Payload) (*models.IncidentView, error) {
	return s.advance(ctx, p, id, workflow.ActionSendToCentral, payload)
}

// Finalize closes the central stage; the report becomes read-only.
func (s *IncidentService) Finalize(ctx context.Context, p *models.Principal, id string, payload Payload) (*models.IncidentView, error) {
	return s.advance(ctx, p, id, workflow.ActionFinalize, payload)
}

var auditActions = map[workflow.Action]string{
	workflow.ActionSendToDistrict: models.AuditActionIncidentSendToDistrict,
	workflow.ActionSendToCentral:  models.AuditActionIncidentSendToCentral,
	workflow.ActionFinalize:       models.AuditActionIncidentFinalize,
}

func (s *IncidentService) advance(ctx context.Context, p *models.Principal, id string, action workflow.Action, payload Payload) (view *models.IncidentView, err error) {
	defer func() { s.record(action, err) }()

	exit, ok := workflow.LookupStageExit(action)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInternal, "unknown stage action")
	}
	changes, decodeErr := workflow.Decode(payload)

	var (
		before, after *models.Incident
		columns       []workflow.Field
	)
	err = s.repo.WithinTx(ctx, func(tx repository.IncidentTx) error {
		current, err := s.lock(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := s.matrix.Authorize(p, action, current); err != nil {
			return err
		}
		next, err := workflow.Transition(current.Status, action)
		if err != nil {
			return err
		}
		if decodeErr != nil {
			return decodeErr
		}
		if err := s.units.Validate(ctx, current.UnitCode, current.DistrictCode, s.scopeOf(p)); err != nil {
			return err
		}

		plan, err := workflow.PrepareStageExit(current, exit, changes)
		if err != nil {
			return err
		}

		post := plan.Post
		post.Status = next
		columns = append(plan.Columns(), workflow.FieldStatus)
		columns = append(columns, s.close(post, action, p.Username)...)

		if action == workflow.ActionSendToDistrict && post.ProtocolNumber == nil {
			number, err := s.protocols.Generate(ctx, tx)
			if err != nil {
				s.logger.Error("protocol generation failed", zap.String("incident_id", id), zap.Error(err))
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign protocol number")
			}
			post.ProtocolNumber = &number
			columns = append(columns, workflow.FieldProtocolNumber)
		}

		if err := tx.Update(ctx, post, columnNames(columns)); err != nil {
			return s.persistError(err)
		}
		before, after = current, post
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("incident advanced",
		zap.String("incident_id", after.ID),
		zap.String("action", string(action)),
		zap.String("from", string(before.Status)),
		zap.String("to", string(after.Status)),
		zap.String("username", p.Username),
	)
	s.emitAudit(ctx, p, auditActions[action], after.ID, snapshot(before, columns), snapshot(after, columns))
	return s.viewOf(ctx, p, after), nil
}

// close stamps the closing time and actor of the stage being exited.
func (s *IncidentService) close(inc *models.Incident, action workflow.Action, username string) []workflow.Field {
	now := s.now().UTC()
	by := username
	switch action {
	case workflow.ActionSendToDistrict:
		inc.ClosedByDirectorAt, inc.ClosedByDirectorBy = &now, &by
		return []workflow.Field{workflow.FieldClosedByDirectorAt, workflow.FieldClosedByDirectorBy}
	case workflow.ActionSendToCentral:
		inc.ClosedByDistrictAt, inc.ClosedByDistrictBy = &now, &by
		return []workflow.Field{workflow.FieldClosedByDistrictAt, workflow.FieldClosedByDistrictBy}
	case workflow.ActionFinalize:
		inc.ClosedByCentralAt, inc.ClosedByCentralBy = &now, &by
		return []workflow.Field{workflow.FieldClosedByCentralAt, workflow.FieldClosedByCentralBy}
	}
	return nil
}

// GetByID returns a report visible to the principal.
func (s *IncidentService) GetByID(ctx context.Context, p *models.Principal, id string) (*models.IncidentView, error) {
	inc, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.matrix.Authorize(p, workflow.ActionRead, inc); err != nil {
		return nil, err
	}
	return s.viewOf(ctx, p, inc), nil
}

// ListForRole lists the reports visible to the principal. Caller filters are
// narrowed by the principal's scope, never widened.
func (s *IncidentService) ListForRole(ctx context.Context, p *models.Principal, filter models.IncidentFilter) ([]models.IncidentView, *models.Pagination, error) {
	if p == nil || p.Username == "" {
		return nil, nil, appErrors.ErrUnauthorized
	}
	tier := s.matrix.TierOf(p)
	page, size := normalisePage(filter.Page, filter.PageSize)
	empty := &models.Pagination{Page: page, PageSize: size}

	switch tier {
	case models.TierDirector:
		if filter.UnitCode != "" && filter.UnitCode != p.UnitScope {
			return []models.IncidentView{}, empty, nil
		}
		filter.UnitCode = p.UnitScope
	case models.TierDistrict:
		if filter.DistrictCode != "" && filter.DistrictCode != p.UnitScope {
			return []models.IncidentView{}, empty, nil
		}
		filter.DistrictCode = p.UnitScope
	case models.TierCentral:
	default:
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "profile has no access to incident reports")
	}
	if (tier == models.TierDirector || tier == models.TierDistrict) && p.UnitScope == "" {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "user has no unit")
	}
	for _, st := range filter.Statuses {
		if !st.Valid() {
			return nil, nil, appErrors.Field("status", "unknown status "+string(st))
		}
	}

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reports")
	}

	refs := make([]*models.Incident, len(items))
	for i := range items {
		refs[i] = &items[i]
	}
	units := s.unitNames(ctx, refs...)
	views := make([]models.IncidentView, 0, len(items))
	for _, inc := range refs {
		views = append(views, s.decorate(tier, inc, units))
	}

	return views, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// normalisePage mirrors the repository defaults so pagination echoes what was queried.
func normalisePage(page, size int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return page, size
}

// Verify answers other services asking whether a user may see a report.
// District users must share its district; school users must own it.
func (s *IncidentService) Verify(ctx context.Context, p *models.Principal, id string) (*models.IncidentView, error) {
	if p == nil || p.Username == "" {
		return nil, appErrors.ErrUnauthorized
	}
	inc, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	switch s.matrix.TierOf(p) {
	case models.TierCentral:
	case models.TierDistrict:
		if inc.DistrictCode != p.UnitScope {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "report does not belong to the user's district")
		}
	case models.TierDirector:
		if inc.OwnerUsername != p.Username {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "report does not belong to the user")
		}
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "profile not allowed for this operation")
	}
	return s.viewOf(ctx, p, inc), nil
}

// errReportNotFound answers unknown and malformed ids alike.
func errReportNotFound() error {
	return appErrors.Clone(appErrors.ErrNotFound, "report not found")
}

func (s *IncidentService) load(ctx context.Context, id string) (*models.Incident, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errReportNotFound()
	}
	inc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errReportNotFound()
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report")
	}
	return inc, nil
}

func (s *IncidentService) lock(ctx context.Context, tx repository.IncidentTx, id string) (*models.Incident, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errReportNotFound()
	}
	inc, err := tx.GetForUpdate(ctx, id)
	if err != nil {
		return nil, s.persistError(err)
	}
	return inc, nil
}

func (s *IncidentService) persistError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return errReportNotFound()
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist report")
}

// scopeOf is the unit scope checked against the registry; central users have none.
func (s *IncidentService) scopeOf(p *models.Principal) string {
	if s.matrix.TierOf(p) == models.TierCentral {
		return ""
	}
	return p.UnitScope
}

func (s *IncidentService) viewOf(ctx context.Context, p *models.Principal, inc *models.Incident) *models.IncidentView {
	view := s.decorate(s.matrix.TierOf(p), inc, s.unitNames(ctx, inc))
	return &view
}

func (s *IncidentService) decorate(tier models.Tier, inc *models.Incident, units map[string]models.Unit) models.IncidentView {
	return models.IncidentView{
		Incident:     inc,
		StatusLabel:  inc.Status.Label(),
		StatusExtra:  workflow.StatusExtra(tier, inc.Status),
		UnitName:     units[inc.UnitCode].Name,
		DistrictName: units[inc.DistrictCode].Name,
	}
}

// unitNames resolves display names; registry failures leave names empty.
func (s *IncidentService) unitNames(ctx context.Context, items ...*models.Incident) map[string]models.Unit {
	codes := make([]string, 0, len(items)*2)
	for _, inc := range items {
		codes = append(codes, inc.UnitCode, inc.DistrictCode)
	}
	units, err := s.units.LookupBatch(ctx, codes)
	if err != nil {
		s.logger.Warn("unit names unavailable", zap.Error(err))
	}
	if units == nil {
		units = map[string]models.Unit{}
	}
	return units
}

func (s *IncidentService) record(action workflow.Action, err error) {
	result := "ok"
	if err != nil {
		result = appErrors.FromError(err).Code
	}
	s.metrics.RecordWorkflow(string(action), result)
}

func (s *IncidentService) emitAudit(ctx context.Context, p *models.Principal, action, id string, oldValues, newValues []byte) {
	if s.audit == nil {
		return
	}
	client := clientFrom(ctx)
	resourceID := id
	log := &models.AuditLog{
		Username:   p.Username,
		Action:     action,
		Resource:   models.AuditResourceIncident,
		ResourceID: &resourceID,
		OldValues:  oldValues,
		NewValues:  newValues,
		IPAddress:  client.IP,
		UserAgent:  client.UserAgent,
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.String("incident_id", id), zap.Error(err))
	}
}

func columnNames(fields []workflow.Field) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, string(f))
	}
	return out
}

func snapshot(inc *models.Incident, fields []workflow.Field) []byte {
	if inc == nil || len(fields) == 0 {
		return nil
	}
	values := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		values[string(f)] = workflow.Get(inc, f)
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return nil
	}
	return raw
}
