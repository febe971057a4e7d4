package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/docvault/internal/filestore"
	"github.com/xxxsen/docvault/internal/pkg/errcode"
	"github.com/xxxsen/docvault/internal/pkg/response"
	"github.com/xxxsen/docvault/internal/service"
)

const defaultListLimit = 20

type DocumentHandler struct {
	documents      *service.DocumentService
	maxUploadBytes int64
}

func NewDocumentHandler(documents *service.DocumentService, maxUploadBytes int64) *DocumentHandler {
	return &DocumentHandler{documents: documents, maxUploadBytes: maxUploadBytes}
}

func (h *DocumentHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "file is required")
		return
	}
	if h.maxUploadBytes > 0 && file.Size > h.maxUploadBytes {
		response.Error(c, errcode.ErrFileTooLarge, "file exceeds the "+formatUploadLimit(h.maxUploadBytes)+" upload limit")
		return
	}
	opened, err := file.Open()
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "failed to open file")
		return
	}
	reader, contentType, err := ensureReadSeekCloser(opened)
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "failed to read file")
		return
	}
	defer reader.Close()

	doc, err := h.documents.Upload(c.Request.Context(), getUserID(c), file.Filename, reader, file.Size, contentType)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

func (h *DocumentHandler) List(c *gin.Context) {
	status := c.Query("status")
	limit := uint(defaultListLimit)
	if value := c.Query("limit"); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			limit = uint(parsed)
		}
	}
	offset := uint(0)
	if value := c.Query("offset"); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			offset = uint(parsed)
		}
	}
	items, total, err := h.documents.List(c.Request.Context(), getUserID(c), status, limit, offset)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"items": items, "total": total})
}

func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.documents.Get(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"document": doc, "excerpt": h.documents.Excerpt(doc)})
}

func (h *DocumentHandler) SignedURL(c *gin.Context) {
	url, err := h.documents.SignedURL(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"url": url})
}

func (h *DocumentHandler) Retry(c *gin.Context) {
	doc, err := h.documents.Retry(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

type contentUpdateRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

func (h *DocumentHandler) UpdateContent(c *gin.Context) {
	var req contentUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	doc, err := h.documents.EditField(c.Request.Context(), getUserID(c), c.Param("id"), req.Field, req.Value)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

type regenerateRequest struct {
	Field string `json:"field"`
}

func (h *DocumentHandler) Regenerate(c *gin.Context) {
	var req regenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	doc, err := h.documents.Regenerate(c.Request.Context(), getUserID(c), c.Param("id"), req.Field)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.documents.Delete(c.Request.Context(), getUserID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

func ensureReadSeekCloser(file filestore.ReadSeekCloser) (filestore.ReadSeekCloser, string, error) {
	buf := make([]byte, 512)
	read, err := file.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, "", err
	}
	contentType := http.DetectContentType(buf[:read])
	if _, err := file.Seek(0, 0); err != nil {
		return nil, "", err
	}
	return file, contentType, nil
}

func formatUploadLimit(bytes int64) string {
	const mb = 1024 * 1024
	if bytes <= 0 {
		return "0MB"
	}
	value := bytes / mb
	if value <= 0 {
		value = 1
	}
	return strconv.FormatInt(value, 10) + "MB"
}
