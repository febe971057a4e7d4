package model

const (
	DocStatusUploaded   = "uploaded"
	DocStatusProcessing = "processing"
	DocStatusReady      = "ready"
	DocStatusFailed     = "failed"
)

const (
	SourceAIGenerated  = "ai_generated"
	SourceUserModified = "user_modified"
)

// Document is a stored file plus the AI-generated view of it. Summary,
// Markdown and AIModel stay empty until a processing pass completes;
// AIModel holds "error-fallback" when the pass finished on degraded output.
type Document struct {
	ID             string `json:"id"`
	UserID         string `json:"user_id"`
	Name           string `json:"name"`
	StoragePath    string `json:"storage_path"`
	Status         string `json:"status"`
	Summary        string `json:"summary"`
	Markdown       string `json:"markdown"`
	AIModel        string `json:"ai_model"`
	SummarySource  string `json:"summary_source"`
	MarkdownSource string `json:"markdown_source"`
	Size           int64  `json:"size"`
	Ctime          int64  `json:"ctime"`
	Mtime          int64  `json:"mtime"`
}

func ValidDocStatus(status string) bool {
	switch status {
	case DocStatusUploaded, DocStatusProcessing, DocStatusReady, DocStatusFailed:
		return true
	}
	return false
}
