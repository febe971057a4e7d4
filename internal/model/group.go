package model

const (
	GroupTypeManual = "manual"
	GroupTypeAI     = "ai"
)

type Group struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Gtype  string `json:"gtype"`
	Ctime  int64  `json:"ctime"`
	Mtime  int64  `json:"mtime"`
}

// GroupSummary is the list view of a group with its member count folded in.
type GroupSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Gtype       string `json:"gtype"`
	MemberCount int    `json:"member_count"`
	Ctime       int64  `json:"ctime"`
	Mtime       int64  `json:"mtime"`
}

type GroupMember struct {
	GroupID    string `json:"group_id"`
	DocumentID string `json:"document_id"`
	Ctime      int64  `json:"ctime"`
}

// GroupSuggestion is the model-proposed grouping over existing documents.
type GroupSuggestion struct {
	Name        string   `json:"name"`
	DocumentIDs []string `json:"document_ids"`
	Reason      string   `json:"reason"`
}
