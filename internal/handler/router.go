package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/docvault/internal/middleware"
)

type RouterDeps struct {
	Documents  *DocumentHandler
	Groups     *GroupHandler
	JWTSecret  []byte
	RateWindow time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))

	authGroup.POST("/documents", deps.Documents.Upload)
	authGroup.GET("/documents", deps.Documents.List)
	authGroup.GET("/documents/:id", deps.Documents.Get)
	authGroup.GET("/documents/:id/url", deps.Documents.SignedURL)
	authGroup.PUT("/documents/:id/content", deps.Documents.UpdateContent)
	authGroup.DELETE("/documents/:id", deps.Documents.Delete)
	authGroup.POST("/documents/:id/retry", middleware.RateLimit(deps.RateWindow), deps.Documents.Retry)
	authGroup.POST("/documents/:id/regenerate", middleware.RateLimit(deps.RateWindow), deps.Documents.Regenerate)

	authGroup.POST("/groups", deps.Groups.Create)
	authGroup.GET("/groups", deps.Groups.List)
	authGroup.GET("/groups/:id", deps.Groups.Get)
	authGroup.PUT("/groups/:id", deps.Groups.Rename)
	authGroup.DELETE("/groups/:id", deps.Groups.Delete)
	authGroup.POST("/groups/:id/documents", deps.Groups.AddDocuments)
	authGroup.DELETE("/groups/:id/documents/:doc_id", deps.Groups.RemoveDocument)
	authGroup.POST("/groups/suggest", middleware.RateLimit(deps.RateWindow), deps.Groups.Suggest)
}
