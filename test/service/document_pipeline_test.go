package service_test

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/docvault/internal/ai"
	"github.com/xxxsen/docvault/internal/config"
	"github.com/xxxsen/docvault/internal/filestore"
	"github.com/xxxsen/docvault/internal/model"
	appErr "github.com/xxxsen/docvault/internal/pkg/errors"
	"github.com/xxxsen/docvault/internal/pkg/timeutil"
	"github.com/xxxsen/docvault/internal/repo"
	"github.com/xxxsen/docvault/internal/service"
	"github.com/xxxsen/docvault/test/testutil"
)

type scriptedGenerator struct {
	mu      sync.Mutex
	replies []string
	calls   int
}

func (g *scriptedGenerator) Generate(_ context.Context, _ string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	idx := g.calls
	if idx >= len(g.replies) {
		idx = len(g.replies) - 1
	}
	g.calls++
	return g.replies[idx], nil
}

func (g *scriptedGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type memFile struct {
	*bytes.Reader
}

func (memFile) Close() error { return nil }

func newMemFile(data []byte) memFile {
	return memFile{bytes.NewReader(data)}
}

func newLocalStore(t *testing.T) filestore.Store {
	t.Helper()
	store, err := filestore.New(config.FileStoreConfig{
		Type: "local",
		Data: map[string]interface{}{"dir": t.TempDir(), "public_url": "http://files.test"},
	})
	require.NoError(t, err)
	return store
}

func waitReady(t *testing.T, docs *service.DocumentService, userID, docID string) *model.Document {
	t.Helper()
	require.Eventually(t, func() bool {
		doc, err := docs.Get(context.Background(), userID, docID)
		return err == nil && doc.Status == model.DocStatusReady
	}, 5*time.Second, 50*time.Millisecond)
	doc, err := docs.Get(context.Background(), userID, docID)
	require.NoError(t, err)
	return doc
}

func TestDocumentPipelineUploadToReady(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	const userID = "svc-upload-user"
	testutil.WipeUser(t, conn, userID)
	t.Cleanup(func() { testutil.WipeUser(t, conn, userID) })

	docRepo := repo.NewDocumentRepo(conn)
	groupRepo := repo.NewGroupRepo(conn)
	store := newLocalStore(t)
	gen := &scriptedGenerator{replies: []string{"```json\n{\"summary\": \"Greeting note\", \"markdown\": \"# Hello\"}\n```"}}
	summarizer := ai.NewSummarizer(gen, ai.SummarizerConfig{Model: "test-model"})
	process := service.NewProcessService(docRepo, store, summarizer)
	docs := service.NewDocumentService(docRepo, groupRepo, store, process, summarizer, time.Minute)

	data := []byte("Hello world")
	doc, err := docs.Upload(context.Background(), userID, "notes.txt", newMemFile(data), int64(len(data)), "text/plain")
	require.NoError(t, err)
	require.Equal(t, model.DocStatusUploaded, doc.Status)

	final := waitReady(t, docs, userID, doc.ID)
	require.Equal(t, "Greeting note", final.Summary)
	require.Equal(t, "# Hello", final.Markdown)
	require.Equal(t, "test-model", final.AIModel)
	require.Equal(t, model.SourceAIGenerated, final.SummarySource)
	require.Equal(t, model.SourceAIGenerated, final.MarkdownSource)

	url, err := docs.SignedURL(context.Background(), userID, doc.ID)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "http://files.test/"))

	require.NoError(t, docs.Delete(context.Background(), userID, doc.ID))
	_, err = docs.Get(context.Background(), userID, doc.ID)
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestDocumentPipelineEditAndRegenerate(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	const userID = "svc-edit-user"
	testutil.WipeUser(t, conn, userID)
	t.Cleanup(func() { testutil.WipeUser(t, conn, userID) })

	docRepo := repo.NewDocumentRepo(conn)
	groupRepo := repo.NewGroupRepo(conn)
	store := newLocalStore(t)
	gen := &scriptedGenerator{replies: []string{
		`{"summary": "First pass", "markdown": "# First"}`,
		`{"summary": "Second pass", "markdown": "# Second"}`,
	}}
	summarizer := ai.NewSummarizer(gen, ai.SummarizerConfig{Model: "test-model"})
	process := service.NewProcessService(docRepo, store, summarizer)
	docs := service.NewDocumentService(docRepo, groupRepo, store, process, summarizer, time.Minute)

	data := []byte("Hello world")
	doc, err := docs.Upload(context.Background(), userID, "notes.txt", newMemFile(data), int64(len(data)), "text/plain")
	require.NoError(t, err)
	waitReady(t, docs, userID, doc.ID)

	_, err = docs.EditField(context.Background(), userID, doc.ID, "status", "x")
	require.ErrorIs(t, err, appErr.ErrInvalid)

	edited, err := docs.EditField(context.Background(), userID, doc.ID, service.FieldSummary, "my own words")
	require.NoError(t, err)
	require.Equal(t, "my own words", edited.Summary)
	require.Equal(t, model.SourceUserModified, edited.SummarySource)
	require.Equal(t, "# First", edited.Markdown)
	require.Equal(t, model.SourceAIGenerated, edited.MarkdownSource)

	regenerated, err := docs.Regenerate(context.Background(), userID, doc.ID, service.FieldMarkdown)
	require.NoError(t, err)
	require.Equal(t, "# Second", regenerated.Markdown)
	require.Equal(t, model.SourceAIGenerated, regenerated.MarkdownSource)
	require.Equal(t, "my own words", regenerated.Summary)
	require.Equal(t, model.SourceUserModified, regenerated.SummarySource)

	// Edits are rejected while a document is not ready.
	pending := &model.Document{
		ID:             "svc-edit-pending",
		UserID:         userID,
		Name:           "pending.txt",
		StoragePath:    userID + "/pending.txt",
		Status:         model.DocStatusUploaded,
		SummarySource:  model.SourceAIGenerated,
		MarkdownSource: model.SourceAIGenerated,
		Ctime:          timeutil.NowUnix(),
		Mtime:          timeutil.NowUnix(),
	}
	require.NoError(t, docRepo.Create(context.Background(), pending))
	_, err = docs.EditField(context.Background(), userID, pending.ID, service.FieldSummary, "x")
	require.ErrorIs(t, err, appErr.ErrNotReady)
}

func TestDocumentPipelineFailureAndRetry(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	const userID = "svc-retry-user"
	testutil.WipeUser(t, conn, userID)
	t.Cleanup(func() { testutil.WipeUser(t, conn, userID) })

	docRepo := repo.NewDocumentRepo(conn)
	groupRepo := repo.NewGroupRepo(conn)
	store := newLocalStore(t)
	gen := &scriptedGenerator{replies: []string{`{"summary": "Back again", "markdown": "# Recovered"}`}}
	summarizer := ai.NewSummarizer(gen, ai.SummarizerConfig{Model: "test-model"})
	process := service.NewProcessService(docRepo, store, summarizer)
	docs := service.NewDocumentService(docRepo, groupRepo, store, process, summarizer, time.Minute)

	now := timeutil.NowUnix()
	doc := &model.Document{
		ID:             "svc-retry-1",
		UserID:         userID,
		Name:           "notes.txt",
		StoragePath:    userID + "/svc-retry-1.txt",
		Status:         model.DocStatusUploaded,
		SummarySource:  model.SourceAIGenerated,
		MarkdownSource: model.SourceAIGenerated,
		Ctime:          now,
		Mtime:          now,
	}
	require.NoError(t, docRepo.Create(context.Background(), doc))

	// The blob is missing, so the first pipeline pass fails the document.
	require.Nil(t, process.Process(context.Background(), doc.ID))
	failed, err := docRepo.GetByID(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Equal(t, model.DocStatusFailed, failed.Status)

	data := []byte("Hello world")
	require.NoError(t, store.Save(context.Background(), doc.StoragePath, newMemFile(data), int64(len(data)), "text/plain"))

	recovered, err := docs.Retry(context.Background(), userID, doc.ID)
	require.NoError(t, err)
	require.Equal(t, model.DocStatusReady, recovered.Status)
	require.Equal(t, "Back again", recovered.Summary)
	require.Equal(t, "# Recovered", recovered.Markdown)
}
