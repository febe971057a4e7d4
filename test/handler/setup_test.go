package handler_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/common/webapi"

	"github.com/xxxsen/docvault/internal/ai"
	"github.com/xxxsen/docvault/internal/config"
	"github.com/xxxsen/docvault/internal/filestore"
	"github.com/xxxsen/docvault/internal/handler"
	"github.com/xxxsen/docvault/internal/middleware"
	"github.com/xxxsen/docvault/internal/pkg/jwt"
	"github.com/xxxsen/docvault/internal/repo"
	"github.com/xxxsen/docvault/internal/service"
	"github.com/xxxsen/docvault/test/testutil"
)

var testJWTSecret = []byte("test-secret")

const testUploadLimitBytes = 1024 * 1024

type stubGenerator struct {
	mu    sync.Mutex
	reply string
}

func (g *stubGenerator) Generate(_ context.Context, _ string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.reply, nil
}

func (g *stubGenerator) setReply(reply string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reply = reply
}

type testEnv struct {
	router http.Handler
	conn   *sql.DB
	gen    *stubGenerator
}

func setupRouter(t *testing.T) (*testEnv, func()) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, cleanup := testutil.OpenTestDB(t)
	docRepo := repo.NewDocumentRepo(conn)
	groupRepo := repo.NewGroupRepo(conn)

	store, err := filestore.New(config.FileStoreConfig{
		Type: "local",
		Data: map[string]interface{}{"dir": t.TempDir(), "public_url": "http://files.test"},
	})
	require.NoError(t, err)

	gen := &stubGenerator{reply: `{"summary": "canned summary", "markdown": "# canned"}`}
	summarizer := ai.NewSummarizer(gen, ai.SummarizerConfig{Model: "test-model"})
	suggester := ai.NewSuggester(gen, ai.SuggesterConfig{})
	process := service.NewProcessService(docRepo, store, summarizer)
	documents := service.NewDocumentService(docRepo, groupRepo, store, process, summarizer, time.Minute)
	groups := service.NewGroupService(groupRepo, docRepo, suggester)

	deps := handler.RouterDeps{
		Documents: handler.NewDocumentHandler(documents, testUploadLimitBytes),
		Groups:    handler.NewGroupHandler(groups),
		JWTSecret: testJWTSecret,
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		"",
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(nil),
		),
	)
	require.NoError(t, err)

	return &testEnv{router: engine, conn: conn, gen: gen}, cleanup
}

func authToken(t *testing.T, userID string) string {
	t.Helper()
	token, err := jwt.GenerateToken(userID, testJWTSecret, time.Hour)
	require.NoError(t, err)
	return token
}

type apiResult struct {
	Code int             `json:"code"`
	Data json.RawMessage `json:"data"`
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body interface{}) apiResult {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)

	var result apiResult
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &result))
	return result
}

func doUpload(t *testing.T, router http.Handler, token, filename string, content []byte) apiResult {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)

	var result apiResult
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &result))
	return result
}

func decodeData(t *testing.T, result apiResult, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(result.Data, dst))
}
