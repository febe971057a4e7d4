package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docvault/internal/repo"
	"github.com/xxxsen/docvault/internal/service"
)

const pendingBatchSize = 10

// PendingDocumentsJob picks up documents whose async processing kick was lost,
// typically across a restart. A document still uploaded after the configured
// delay gets another pipeline pass.
type PendingDocumentsJob struct {
	docs    *repo.DocumentRepo
	process *service.ProcessService
	delay   time.Duration
}

func NewPendingDocumentsJob(docs *repo.DocumentRepo, process *service.ProcessService, delay time.Duration) *PendingDocumentsJob {
	return &PendingDocumentsJob{docs: docs, process: process, delay: delay}
}

func (j *PendingDocumentsJob) Name() string {
	return "pending_documents"
}

func (j *PendingDocumentsJob) Run(ctx context.Context) error {
	if j.docs == nil || j.process == nil {
		return nil
	}
	logger := logutil.GetLogger(ctx)
	delay := j.delay
	if delay <= 0 {
		delay = 10 * time.Minute
	}
	cutoff := time.Now().Add(-delay).Unix()
	docs, err := j.docs.ListPendingProcess(ctx, cutoff, pendingBatchSize)
	if err != nil {
		logger.Error("failed to list pending documents", zap.Error(err))
		return err
	}
	if len(docs) == 0 {
		return nil
	}
	logger.Info("processing pending documents", zap.Int("count", len(docs)))
	for _, doc := range docs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if j.process.Process(ctx, doc.ID) == nil {
			logger.Warn("pending document failed to process, cooling down...", zap.String("doc_id", doc.ID))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(10 * time.Second):
			}
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
	return nil
}
