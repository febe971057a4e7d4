package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docvault/internal/extract"
	"github.com/xxxsen/docvault/internal/filestore"
	"github.com/xxxsen/docvault/internal/model"
	appErr "github.com/xxxsen/docvault/internal/pkg/errors"
	"github.com/xxxsen/docvault/internal/pkg/mdutil"
	"github.com/xxxsen/docvault/internal/pkg/timeutil"
	"github.com/xxxsen/docvault/internal/repo"
)

const listExcerptChars = 200

const (
	FieldSummary  = "summary"
	FieldMarkdown = "markdown"
)

type DocumentService struct {
	docs       *repo.DocumentRepo
	groups     *repo.GroupRepo
	files      filestore.Store
	process    *ProcessService
	summarizer TextSummarizer
	urlTTL     time.Duration
}

// DocumentListItem is the list view of a document; the markdown body is
// replaced by a short excerpt.
type DocumentListItem struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Status  string `json:"status"`
	Summary string `json:"summary"`
	Excerpt string `json:"excerpt"`
	AIModel string `json:"ai_model"`
	Size    int64  `json:"size"`
	Ctime   int64  `json:"ctime"`
	Mtime   int64  `json:"mtime"`
}

func NewDocumentService(docs *repo.DocumentRepo, groups *repo.GroupRepo, files filestore.Store, process *ProcessService, summarizer TextSummarizer, urlTTL time.Duration) *DocumentService {
	return &DocumentService{docs: docs, groups: groups, files: files, process: process, summarizer: summarizer, urlTTL: urlTTL}
}

// Upload stores the blob, inserts the row as uploaded and kicks off processing
// in the background.
func (s *DocumentService) Upload(ctx context.Context, userID, filename string, r filestore.ReadSeekCloser, size int64, contentType string) (*model.Document, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return nil, fmt.Errorf("%w: filename is required", appErr.ErrInvalid)
	}
	key := buildStorageKey(userID, filename)
	if err := s.files.Save(ctx, key, r, size, contentType); err != nil {
		return nil, fmt.Errorf("save uploaded file: %w", err)
	}
	now := timeutil.NowUnix()
	doc := &model.Document{
		ID:             newID(),
		UserID:         userID,
		Name:           filename,
		StoragePath:    key,
		Status:         model.DocStatusUploaded,
		SummarySource:  model.SourceAIGenerated,
		MarkdownSource: model.SourceAIGenerated,
		Size:           size,
		Ctime:          now,
		Mtime:          now,
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		if derr := s.files.Delete(ctx, key); derr != nil {
			logutil.GetLogger(ctx).Warn("failed to remove orphan blob", zap.String("key", key), zap.Error(derr))
		}
		return nil, err
	}
	// The request context dies with the response; processing runs on its own.
	go s.process.Process(context.Background(), doc.ID)
	return doc, nil
}

func (s *DocumentService) Get(ctx context.Context, userID, docID string) (*model.Document, error) {
	return s.docs.GetByUser(ctx, userID, docID)
}

// Excerpt returns the plain-text preview used alongside a full document.
func (s *DocumentService) Excerpt(doc *model.Document) string {
	if doc == nil {
		return ""
	}
	return mdutil.Excerpt(doc.Markdown, listExcerptChars)
}

func (s *DocumentService) List(ctx context.Context, userID, status string, limit, offset uint) ([]DocumentListItem, int, error) {
	if status != "" && !model.ValidDocStatus(status) {
		return nil, 0, fmt.Errorf("%w: unknown status %s", appErr.ErrInvalid, status)
	}
	docs, err := s.docs.List(ctx, userID, status, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.docs.Count(ctx, userID, status)
	if err != nil {
		return nil, 0, err
	}
	items := make([]DocumentListItem, 0, len(docs))
	for _, doc := range docs {
		items = append(items, documentListItem(doc))
	}
	return items, total, nil
}

func documentListItem(doc model.Document) DocumentListItem {
	return DocumentListItem{
		ID:      doc.ID,
		Name:    doc.Name,
		Status:  doc.Status,
		Summary: doc.Summary,
		Excerpt: mdutil.Excerpt(doc.Markdown, listExcerptChars),
		AIModel: doc.AIModel,
		Size:    doc.Size,
		Ctime:   doc.Ctime,
		Mtime:   doc.Mtime,
	}
}

// Delete removes group memberships and the row, then drops the blob on a best
// effort basis.
func (s *DocumentService) Delete(ctx context.Context, userID, docID string) error {
	doc, err := s.docs.GetByUser(ctx, userID, docID)
	if err != nil {
		return err
	}
	if err := s.groups.DeleteMembersByDocument(ctx, docID); err != nil {
		return err
	}
	if err := s.docs.Delete(ctx, userID, docID); err != nil {
		return err
	}
	if err := s.files.Delete(ctx, doc.StoragePath); err != nil {
		logutil.GetLogger(ctx).Warn("failed to delete blob",
			zap.String("document_id", docID), zap.String("key", doc.StoragePath), zap.Error(err))
	}
	return nil
}

// EditField overwrites one content field with user text and marks it
// user_modified; the other field keeps its value and source.
func (s *DocumentService) EditField(ctx context.Context, userID, docID, field, value string) (*model.Document, error) {
	if field != FieldSummary && field != FieldMarkdown {
		return nil, fmt.Errorf("%w: unknown field %s", appErr.ErrInvalid, field)
	}
	doc, err := s.docs.GetByUser(ctx, userID, docID)
	if err != nil {
		return nil, err
	}
	if doc.Status != model.DocStatusReady {
		return nil, appErr.ErrNotReady
	}
	if err := s.docs.UpdateContentField(ctx, userID, docID, field, value, model.SourceUserModified, timeutil.NowUnix()); err != nil {
		return nil, err
	}
	return s.docs.GetByUser(ctx, userID, docID)
}

// Regenerate re-runs extraction and summarization for a single field. The
// sibling field is untouched, so a user edit there survives.
func (s *DocumentService) Regenerate(ctx context.Context, userID, docID, field string) (*model.Document, error) {
	if field != FieldSummary && field != FieldMarkdown {
		return nil, fmt.Errorf("%w: unknown field %s", appErr.ErrInvalid, field)
	}
	doc, err := s.docs.GetByUser(ctx, userID, docID)
	if err != nil {
		return nil, err
	}
	if doc.Status != model.DocStatusReady {
		return nil, appErr.ErrNotReady
	}
	data, err := filestore.ReadAll(ctx, s.files, doc.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("read stored file: %w", err)
	}
	text := extract.Text(data, doc.Name)
	res, err := s.summarizer.Summarize(ctx, text, doc.Name)
	if err != nil {
		return nil, err
	}
	value := res.Summary
	if field == FieldMarkdown {
		value = res.Markdown
	}
	if err := s.docs.UpdateRegenerated(ctx, userID, docID, field, value, res.Model, timeutil.NowUnix()); err != nil {
		return nil, err
	}
	return s.docs.GetByUser(ctx, userID, docID)
}

// Retry reprocesses an owned document through the retry pipeline. A nil
// pipeline result means every attempt failed.
func (s *DocumentService) Retry(ctx context.Context, userID, docID string) (*model.Document, error) {
	if _, err := s.docs.GetByUser(ctx, userID, docID); err != nil {
		return nil, err
	}
	doc := s.process.Retry(ctx, docID)
	if doc == nil {
		return nil, fmt.Errorf("%w: all attempts exhausted", appErr.ErrProcessFailed)
	}
	return doc, nil
}

func (s *DocumentService) SignedURL(ctx context.Context, userID, docID string) (string, error) {
	doc, err := s.docs.GetByUser(ctx, userID, docID)
	if err != nil {
		return "", err
	}
	return s.files.SignedURL(ctx, doc.StoragePath, s.urlTTL)
}

func buildStorageKey(userID, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return userID + "/" + newID() + ext
}
