package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/internal/models"
	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/pkg/jobs"
)

const auditWriteTimeout = 5 * time.Second

// AuditWriter moves audit inserts off the request path. Entries that cannot
// be queued are written inline so none are silently dropped.
type AuditWriter struct {
	store  auditRecorder
	queue  *jobs.Queue[*models.AuditLog]
	logger *zap.Logger
}

// NewAuditWriter wraps store with a worker pool sized by cfg.
func NewAuditWriter(store auditRecorder, cfg jobs.Config) *AuditWriter {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	w := &AuditWriter{store: store, logger: cfg.Logger}
	w.queue = jobs.NewQueue("audit", w.write, cfg)
	return w
}

// Start launches the workers.
func (w *AuditWriter) Start(ctx context.Context) {
	w.queue.Start(ctx)
}

// Stop flushes queued entries.
func (w *AuditWriter) Stop(ctx context.Context) error {
	return w.queue.Stop(ctx)
}

// CreateAuditLog stamps the entry and hands it to the workers.
func (w *AuditWriter) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	err := w.queue.Enqueue(jobs.Job[*models.AuditLog]{ID: log.ID, Payload: log})
	if err == nil {
		return nil
	}
	if errors.Is(err, jobs.ErrQueueFull) {
		w.logger.Warn("audit queue full, writing inline", zap.String("audit_id", log.ID))
	}
	return w.store.CreateAuditLog(ctx, log)
}

func (w *AuditWriter) write(ctx context.Context, job jobs.Job[*models.AuditLog]) error {
	ctx, cancel := context.WithTimeout(ctx, auditWriteTimeout)
	defer cancel()
	return w.store.CreateAuditLog(ctx, job.Payload)
}
