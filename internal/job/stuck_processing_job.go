package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docvault/internal/model"
	"github.com/xxxsen/docvault/internal/pkg/timeutil"
	"github.com/xxxsen/docvault/internal/repo"
)

const stuckBatchSize = 50

// StuckProcessingJob fails documents stranded in processing, usually by a crash
// mid-pipeline. Marking them failed surfaces the retry affordance.
type StuckProcessingJob struct {
	docs   *repo.DocumentRepo
	cutoff time.Duration
}

func NewStuckProcessingJob(docs *repo.DocumentRepo, cutoff time.Duration) *StuckProcessingJob {
	return &StuckProcessingJob{docs: docs, cutoff: cutoff}
}

func (j *StuckProcessingJob) Name() string {
	return "stuck_processing"
}

func (j *StuckProcessingJob) Run(ctx context.Context) error {
	if j.docs == nil {
		return nil
	}
	logger := logutil.GetLogger(ctx)
	cutoff := j.cutoff
	if cutoff <= 0 {
		cutoff = 30 * time.Minute
	}
	before := time.Now().Add(-cutoff).Unix()
	docs, err := j.docs.ListStuckProcessing(ctx, before, stuckBatchSize)
	if err != nil {
		logger.Error("failed to list stuck documents", zap.Error(err))
		return err
	}
	if len(docs) == 0 {
		return nil
	}
	logger.Info("failing stuck documents", zap.Int("count", len(docs)))
	for _, doc := range docs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := j.docs.UpdateStatus(ctx, doc.ID, model.DocStatusFailed, timeutil.NowUnix()); err != nil {
			logger.Error("failed to mark stuck document failed", zap.String("doc_id", doc.ID), zap.Error(err))
		}
	}
	return nil
}
