package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/docvault/internal/model"
	"github.com/xxxsen/docvault/internal/pkg/dbutil"
	appErr "github.com/xxxsen/docvault/internal/pkg/errors"
)

type DocumentRepo struct {
	db *sql.DB
}

func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

func (r *DocumentRepo) Create(ctx context.Context, doc *model.Document) error {
	data := map[string]interface{}{
		"id":              doc.ID,
		"user_id":         doc.UserID,
		"name":            doc.Name,
		"storage_path":    doc.StoragePath,
		"status":          doc.Status,
		"summary":         doc.Summary,
		"markdown":        doc.Markdown,
		"ai_model":        doc.AIModel,
		"summary_source":  doc.SummarySource,
		"markdown_source": doc.MarkdownSource,
		"size":            doc.Size,
		"ctime":           doc.Ctime,
		"mtime":           doc.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("documents", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
		return err
	}
	return nil
}

// GetByID loads a document without a user scope; the processing pipeline and
// jobs operate on documents regardless of owner.
func (r *DocumentRepo) GetByID(ctx context.Context, docID string) (*model.Document, error) {
	sqlStr := `
		SELECT id, user_id, name, storage_path, status, summary, markdown, ai_model,
			summary_source, markdown_source, size, ctime, mtime
		FROM documents
		WHERE id = ?
	`
	sqlStr, args := dbutil.Finalize(sqlStr, []interface{}{docID})
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		return nil, appErr.ErrNotFound
	}
	return scanDocument(rows)
}

func (r *DocumentRepo) GetByUser(ctx context.Context, userID, docID string) (*model.Document, error) {
	sqlStr := `
		SELECT id, user_id, name, storage_path, status, summary, markdown, ai_model,
			summary_source, markdown_source, size, ctime, mtime
		FROM documents
		WHERE id = ? AND user_id = ?
	`
	sqlStr, args := dbutil.Finalize(sqlStr, []interface{}{docID, userID})
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		return nil, appErr.ErrNotFound
	}
	return scanDocument(rows)
}

func (r *DocumentRepo) List(ctx context.Context, userID, status string, limit, offset uint) ([]model.Document, error) {
	sqlStr := `
		SELECT id, user_id, name, storage_path, status, summary, markdown, ai_model,
			summary_source, markdown_source, size, ctime, mtime
		FROM documents
		WHERE user_id = ?
	`
	args := []interface{}{userID}
	if status != "" {
		sqlStr += ` AND status = ?`
		args = append(args, status)
	}
	sqlStr += ` ORDER BY mtime DESC`
	if limit > 0 {
		sqlStr += ` LIMIT ? OFFSET ?`
		args = append(args, limit, offset)
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return collectDocuments(rows)
}

func (r *DocumentRepo) ListByIDs(ctx context.Context, userID string, docIDs []string) ([]model.Document, error) {
	if len(docIDs) == 0 {
		return []model.Document{}, nil
	}
	where := map[string]interface{}{
		"user_id":  userID,
		"id in":    docIDs,
		"_orderby": "mtime desc",
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, []string{
		"id", "user_id", "name", "storage_path", "status", "summary", "markdown", "ai_model",
		"summary_source", "markdown_source", "size", "ctime", "mtime",
	})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return collectDocuments(rows)
}

func (r *DocumentRepo) Count(ctx context.Context, userID, status string) (int, error) {
	sqlStr := `SELECT COUNT(1) FROM documents WHERE user_id = ?`
	args := []interface{}{userID}
	if status != "" {
		sqlStr += ` AND status = ?`
		args = append(args, status)
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	row := r.db.QueryRowContext(ctx, sqlStr, args...)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *DocumentRepo) UpdateStatus(ctx context.Context, docID, status string, mtime int64) error {
	where := map[string]interface{}{"id": docID}
	update := map[string]interface{}{
		"status": status,
		"mtime":  mtime,
	}
	return r.update(ctx, where, update)
}

// UpdateProcessed records a finished processing run: the document becomes
// ready and both content fields are owned by the pipeline again.
func (r *DocumentRepo) UpdateProcessed(ctx context.Context, docID, summary, markdown, aiModel string, mtime int64) error {
	where := map[string]interface{}{"id": docID}
	update := map[string]interface{}{
		"status":          model.DocStatusReady,
		"summary":         summary,
		"markdown":        markdown,
		"ai_model":        aiModel,
		"summary_source":  model.SourceAIGenerated,
		"markdown_source": model.SourceAIGenerated,
		"mtime":           mtime,
	}
	return r.update(ctx, where, update)
}

// UpdateContentField rewrites a single content field together with its source
// marker, leaving the sibling field untouched.
func (r *DocumentRepo) UpdateContentField(ctx context.Context, userID, docID, field, value, source string, mtime int64) error {
	if field != "summary" && field != "markdown" {
		return appErr.ErrInvalid
	}
	where := map[string]interface{}{"id": docID, "user_id": userID}
	update := map[string]interface{}{
		field:             value,
		field + "_source": source,
		"mtime":           mtime,
	}
	return r.update(ctx, where, update)
}

// UpdateRegenerated replaces one content field with a fresh model output; the
// sibling field keeps its current value and source.
func (r *DocumentRepo) UpdateRegenerated(ctx context.Context, userID, docID, field, value, aiModel string, mtime int64) error {
	if field != "summary" && field != "markdown" {
		return appErr.ErrInvalid
	}
	where := map[string]interface{}{"id": docID, "user_id": userID}
	update := map[string]interface{}{
		field:             value,
		field + "_source": model.SourceAIGenerated,
		"ai_model":        aiModel,
		"mtime":           mtime,
	}
	return r.update(ctx, where, update)
}

// ResetForReprocess puts a document back at the start of the pipeline and
// clears everything a previous run may have produced.
func (r *DocumentRepo) ResetForReprocess(ctx context.Context, docID string, mtime int64) error {
	where := map[string]interface{}{"id": docID}
	update := map[string]interface{}{
		"status":   model.DocStatusUploaded,
		"summary":  "",
		"markdown": "",
		"ai_model": "",
		"mtime":    mtime,
	}
	return r.update(ctx, where, update)
}

func (r *DocumentRepo) update(ctx context.Context, where, update map[string]interface{}) error {
	sqlStr, args, err := builder.BuildUpdate("documents", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func (r *DocumentRepo) Delete(ctx context.Context, userID, docID string) error {
	sqlStr, args, err := builder.BuildDelete("documents", map[string]interface{}{"id": docID, "user_id": userID})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

// ListPendingProcess returns uploaded documents whose last touch is older than
// cutoff, oldest first.
func (r *DocumentRepo) ListPendingProcess(ctx context.Context, cutoff int64, limit uint) ([]model.Document, error) {
	return r.listByStatusBefore(ctx, model.DocStatusUploaded, cutoff, limit)
}

// ListStuckProcessing returns documents sitting in processing since before
// cutoff; their worker is assumed gone.
func (r *DocumentRepo) ListStuckProcessing(ctx context.Context, cutoff int64, limit uint) ([]model.Document, error) {
	return r.listByStatusBefore(ctx, model.DocStatusProcessing, cutoff, limit)
}

func (r *DocumentRepo) listByStatusBefore(ctx context.Context, status string, cutoff int64, limit uint) ([]model.Document, error) {
	sqlStr := `
		SELECT id, user_id, name, storage_path, status, summary, markdown, ai_model,
			summary_source, markdown_source, size, ctime, mtime
		FROM documents
		WHERE status = ? AND mtime <= ?
		ORDER BY mtime ASC
	`
	args := []interface{}{status, cutoff}
	if limit > 0 {
		sqlStr += ` LIMIT ?`
		args = append(args, limit)
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return collectDocuments(rows)
}

type documentScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(s documentScanner) (*model.Document, error) {
	var doc model.Document
	if err := s.Scan(
		&doc.ID,
		&doc.UserID,
		&doc.Name,
		&doc.StoragePath,
		&doc.Status,
		&doc.Summary,
		&doc.Markdown,
		&doc.AIModel,
		&doc.SummarySource,
		&doc.MarkdownSource,
		&doc.Size,
		&doc.Ctime,
		&doc.Mtime,
	); err != nil {
		return nil, err
	}
	return &doc, nil
}

func collectDocuments(rows *sql.Rows) ([]model.Document, error) {
	docs := make([]model.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}
