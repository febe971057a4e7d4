package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/docvault/internal/pkg/errcode"
	"github.com/xxxsen/docvault/internal/pkg/response"
	"github.com/xxxsen/docvault/internal/service"
)

type GroupHandler struct {
	groups *service.GroupService
}

func NewGroupHandler(groups *service.GroupService) *GroupHandler {
	return &GroupHandler{groups: groups}
}

type groupCreateRequest struct {
	Name        string   `json:"name"`
	Gtype       string   `json:"gtype"`
	DocumentIDs []string `json:"document_ids"`
}

func (h *GroupHandler) Create(c *gin.Context) {
	var req groupCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	group, err := h.groups.Create(c.Request.Context(), getUserID(c), req.Name, req.Gtype, req.DocumentIDs)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, group)
}

func (h *GroupHandler) List(c *gin.Context) {
	groups, err := h.groups.List(c.Request.Context(), getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"items": groups})
}

func (h *GroupHandler) Get(c *gin.Context) {
	detail, err := h.groups.Get(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, detail)
}

type groupRenameRequest struct {
	Name string `json:"name"`
}

func (h *GroupHandler) Rename(c *gin.Context) {
	var req groupRenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if err := h.groups.Rename(c.Request.Context(), getUserID(c), c.Param("id"), req.Name); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

func (h *GroupHandler) Delete(c *gin.Context) {
	if err := h.groups.Delete(c.Request.Context(), getUserID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

type groupMembersRequest struct {
	DocumentIDs []string `json:"document_ids"`
}

func (h *GroupHandler) AddDocuments(c *gin.Context) {
	var req groupMembersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if err := h.groups.AddDocuments(c.Request.Context(), getUserID(c), c.Param("id"), req.DocumentIDs); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

func (h *GroupHandler) RemoveDocument(c *gin.Context) {
	if err := h.groups.RemoveDocument(c.Request.Context(), getUserID(c), c.Param("id"), c.Param("doc_id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

func (h *GroupHandler) Suggest(c *gin.Context) {
	suggestions, err := h.groups.Suggest(c.Request.Context(), getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"items": suggestions})
}
