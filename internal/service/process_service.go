package service

import (
	"context"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docvault/internal/ai"
	"github.com/xxxsen/docvault/internal/extract"
	"github.com/xxxsen/docvault/internal/filestore"
	"github.com/xxxsen/docvault/internal/model"
	"github.com/xxxsen/docvault/internal/pkg/timeutil"
)

const processMaxAttempts = 3

// DocumentStore is the slice of the document repo the pipeline writes through.
type DocumentStore interface {
	GetByID(ctx context.Context, docID string) (*model.Document, error)
	UpdateStatus(ctx context.Context, docID, status string, mtime int64) error
	UpdateProcessed(ctx context.Context, docID, summary, markdown, aiModel string, mtime int64) error
	ResetForReprocess(ctx context.Context, docID string, mtime int64) error
}

type TextSummarizer interface {
	Summarize(ctx context.Context, content string, filename string) (*ai.Result, error)
}

// ProcessService drives a document through the pipeline: uploaded, processing,
// then ready or failed. Process and Retry never return an error; a document
// that could not be processed comes back as nil with its row marked failed
// where possible.
type ProcessService struct {
	docs        DocumentStore
	files       filestore.Store
	summarizer  TextSummarizer
	maxAttempts int
	sleep       func(ctx context.Context, d time.Duration)
}

func NewProcessService(docs DocumentStore, files filestore.Store, summarizer TextSummarizer) *ProcessService {
	return &ProcessService{
		docs:        docs,
		files:       files,
		summarizer:  summarizer,
		maxAttempts: processMaxAttempts,
		sleep:       sleepContext,
	}
}

// Process runs one pipeline pass. A document that cannot be loaded is left
// untouched; any later failure marks the row failed on a best effort basis.
func (s *ProcessService) Process(ctx context.Context, docID string) *model.Document {
	logger := logutil.GetLogger(ctx).With(zap.String("document_id", docID))
	doc, err := s.docs.GetByID(ctx, docID)
	if err != nil {
		logger.Warn("document not found for processing", zap.Error(err))
		return nil
	}
	return s.runPipeline(ctx, logger, doc)
}

func (s *ProcessService) runPipeline(ctx context.Context, logger *zap.Logger, doc *model.Document) (out *model.Document) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic while processing document", zap.Any("panic", r))
			s.markFailed(ctx, logger, doc.ID)
			out = nil
		}
	}()
	if err := s.docs.UpdateStatus(ctx, doc.ID, model.DocStatusProcessing, timeutil.NowUnix()); err != nil {
		logger.Error("failed to mark document processing", zap.Error(err))
		s.markFailed(ctx, logger, doc.ID)
		return nil
	}
	data, err := filestore.ReadAll(ctx, s.files, doc.StoragePath)
	if err != nil {
		logger.Error("failed to download document content", zap.Error(err))
		s.markFailed(ctx, logger, doc.ID)
		return nil
	}
	text := extract.Text(data, doc.Name)
	if strings.TrimSpace(text) == "" {
		logger.Error("no text extracted from document")
		s.markFailed(ctx, logger, doc.ID)
		return nil
	}
	res, err := s.summarizer.Summarize(ctx, text, doc.Name)
	if err != nil {
		logger.Error("summarizer rejected document", zap.Error(err))
		s.markFailed(ctx, logger, doc.ID)
		return nil
	}
	if err := s.docs.UpdateProcessed(ctx, doc.ID, res.Summary, res.Markdown, res.Model, timeutil.NowUnix()); err != nil {
		logger.Error("failed to persist processed document", zap.Error(err))
		s.markFailed(ctx, logger, doc.ID)
		return nil
	}
	return s.verify(ctx, logger, doc, res)
}

// verify re-reads the row after the final write. Divergence is only logged;
// the write already went through.
func (s *ProcessService) verify(ctx context.Context, logger *zap.Logger, doc *model.Document, res *ai.Result) *model.Document {
	fresh, err := s.docs.GetByID(ctx, doc.ID)
	if err != nil {
		logger.Warn("verification re-read failed", zap.Error(err))
		updated := *doc
		updated.Status = model.DocStatusReady
		updated.Summary = res.Summary
		updated.Markdown = res.Markdown
		updated.AIModel = res.Model
		updated.SummarySource = model.SourceAIGenerated
		updated.MarkdownSource = model.SourceAIGenerated
		return &updated
	}
	if fresh.Status != model.DocStatusReady {
		logger.Warn("document status diverged after processing", zap.String("status", fresh.Status))
	}
	return fresh
}

// Retry reprocesses a failed document with up to three attempts. Every attempt
// starts from a clean row: status back to uploaded, generated content cleared.
// Attempts back off exponentially; there is no cap across separate calls.
func (s *ProcessService) Retry(ctx context.Context, docID string) *model.Document {
	logger := logutil.GetLogger(ctx).With(zap.String("document_id", docID))
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if doc := s.retryOnce(ctx, logger, docID, attempt); doc != nil {
			return doc
		}
		if attempt < s.maxAttempts {
			delay := time.Duration(1<<uint(attempt)) * time.Second
			logger.Info("retry attempt failed, backing off",
				zap.Int("attempt", attempt), zap.Duration("delay", delay))
			s.sleep(ctx, delay)
			if ctx.Err() != nil {
				logger.Warn("retry aborted", zap.Error(ctx.Err()))
				return nil
			}
		}
	}
	logger.Warn("document processing retries exhausted", zap.Int("attempts", s.maxAttempts))
	return nil
}

func (s *ProcessService) retryOnce(ctx context.Context, logger *zap.Logger, docID string, attempt int) (doc *model.Document) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic during retry attempt", zap.Int("attempt", attempt), zap.Any("panic", r))
			doc = nil
		}
	}()
	if err := s.docs.ResetForReprocess(ctx, docID, timeutil.NowUnix()); err != nil {
		logger.Error("failed to reset document for retry", zap.Int("attempt", attempt), zap.Error(err))
		return nil
	}
	return s.Process(ctx, docID)
}

func (s *ProcessService) markFailed(ctx context.Context, logger *zap.Logger, docID string) {
	if err := s.docs.UpdateStatus(ctx, docID, model.DocStatusFailed, timeutil.NowUnix()); err != nil {
		logger.Error("failed to mark document failed", zap.Error(err))
	}
}

func sleepContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
