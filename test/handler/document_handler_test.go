package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/docvault/internal/model"
	"github.com/xxxsen/docvault/internal/pkg/errcode"
	"github.com/xxxsen/docvault/test/testutil"
)

type documentPayload struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Status         string `json:"status"`
	Summary        string `json:"summary"`
	Markdown       string `json:"markdown"`
	AIModel        string `json:"ai_model"`
	SummarySource  string `json:"summary_source"`
	MarkdownSource string `json:"markdown_source"`
}

type documentDetail struct {
	Document documentPayload `json:"document"`
	Excerpt  string          `json:"excerpt"`
}

func waitDocumentReady(t *testing.T, env *testEnv, token, docID string) documentPayload {
	t.Helper()
	var detail documentDetail
	require.Eventually(t, func() bool {
		result := doJSON(t, env.router, http.MethodGet, "/api/v1/documents/"+docID, token, nil)
		if result.Code != 0 {
			return false
		}
		decodeData(t, result, &detail)
		return detail.Document.Status == model.DocStatusReady
	}, 5*time.Second, 50*time.Millisecond)
	return detail.Document
}

func TestDocumentEndpointsRequireAuth(t *testing.T) {
	env, cleanup := setupRouter(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	var result apiResult
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &result))
	require.Equal(t, errcode.ErrUnauthorized, result.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp = httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &result))
	require.Equal(t, errcode.ErrUnauthorized, result.Code)
}

func TestDocumentUploadFlow(t *testing.T) {
	env, cleanup := setupRouter(t)
	defer cleanup()
	const userID = "http-upload-user"
	testutil.WipeUser(t, env.conn, userID)
	t.Cleanup(func() { testutil.WipeUser(t, env.conn, userID) })
	token := authToken(t, userID)

	result := doUpload(t, env.router, token, "notes.txt", []byte("Hello world"))
	require.Zero(t, result.Code)
	var created documentPayload
	decodeData(t, result, &created)
	require.NotEmpty(t, created.ID)
	require.Equal(t, model.DocStatusUploaded, created.Status)

	doc := waitDocumentReady(t, env, token, created.ID)
	require.Equal(t, "canned summary", doc.Summary)
	require.Equal(t, "# canned", doc.Markdown)
	require.Equal(t, "test-model", doc.AIModel)

	result = doJSON(t, env.router, http.MethodGet, "/api/v1/documents?status=ready", token, nil)
	var listing struct {
		Items []documentPayload `json:"items"`
		Total int               `json:"total"`
	}
	decodeData(t, result, &listing)
	require.Equal(t, 1, listing.Total)
	require.Len(t, listing.Items, 1)
	require.Equal(t, created.ID, listing.Items[0].ID)

	// Another user cannot see the document.
	foreign := authToken(t, "http-upload-other")
	result = doJSON(t, env.router, http.MethodGet, "/api/v1/documents/"+created.ID, foreign, nil)
	require.Equal(t, errcode.ErrNotFound, result.Code)

	result = doJSON(t, env.router, http.MethodGet, "/api/v1/documents/"+created.ID+"/url", token, nil)
	require.Zero(t, result.Code)
	var urlData struct {
		URL string `json:"url"`
	}
	decodeData(t, result, &urlData)
	require.Contains(t, urlData.URL, "http://files.test/")

	result = doJSON(t, env.router, http.MethodDelete, "/api/v1/documents/"+created.ID, token, nil)
	require.Zero(t, result.Code)
	result = doJSON(t, env.router, http.MethodGet, "/api/v1/documents/"+created.ID, token, nil)
	require.Equal(t, errcode.ErrNotFound, result.Code)
}

func TestDocumentContentEndpoints(t *testing.T) {
	env, cleanup := setupRouter(t)
	defer cleanup()
	const userID = "http-content-user"
	testutil.WipeUser(t, env.conn, userID)
	t.Cleanup(func() { testutil.WipeUser(t, env.conn, userID) })
	token := authToken(t, userID)

	result := doUpload(t, env.router, token, "notes.txt", []byte("Hello world"))
	var created documentPayload
	decodeData(t, result, &created)
	waitDocumentReady(t, env, token, created.ID)

	result = doJSON(t, env.router, http.MethodPut, "/api/v1/documents/"+created.ID+"/content", token,
		map[string]string{"field": "status", "value": "x"})
	require.Equal(t, errcode.ErrInvalid, result.Code)

	result = doJSON(t, env.router, http.MethodPut, "/api/v1/documents/"+created.ID+"/content", token,
		map[string]string{"field": "summary", "value": "my own words"})
	require.Zero(t, result.Code)
	var doc documentPayload
	decodeData(t, result, &doc)
	require.Equal(t, "my own words", doc.Summary)
	require.Equal(t, model.SourceUserModified, doc.SummarySource)
	require.Equal(t, model.SourceAIGenerated, doc.MarkdownSource)

	env.gen.setReply(`{"summary": "fresh summary", "markdown": "# fresh"}`)
	result = doJSON(t, env.router, http.MethodPost, "/api/v1/documents/"+created.ID+"/regenerate", token,
		map[string]string{"field": "markdown"})
	require.Zero(t, result.Code)
	decodeData(t, result, &doc)
	require.Equal(t, "# fresh", doc.Markdown)
	require.Equal(t, model.SourceAIGenerated, doc.MarkdownSource)
	require.Equal(t, "my own words", doc.Summary)
	require.Equal(t, model.SourceUserModified, doc.SummarySource)
}

func TestDocumentUploadRejectsOversize(t *testing.T) {
	env, cleanup := setupRouter(t)
	defer cleanup()
	const userID = "http-oversize-user"
	testutil.WipeUser(t, env.conn, userID)
	t.Cleanup(func() { testutil.WipeUser(t, env.conn, userID) })
	token := authToken(t, userID)

	big := bytes.Repeat([]byte("a"), testUploadLimitBytes+1)
	result := doUpload(t, env.router, token, "big.txt", big)
	require.Equal(t, errcode.ErrFileTooLarge, result.Code)
}
