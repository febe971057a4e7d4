package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/xxxsen/docvault/internal/ai"
	"github.com/xxxsen/docvault/internal/model"
	appErr "github.com/xxxsen/docvault/internal/pkg/errors"
	"github.com/xxxsen/docvault/internal/pkg/timeutil"
	"github.com/xxxsen/docvault/internal/repo"
)

const suggestMaxDocs = 50

type GroupService struct {
	groups    *repo.GroupRepo
	docs      *repo.DocumentRepo
	suggester *ai.Suggester
	cache     *expirable.LRU[string, []model.GroupSuggestion]
}

// GroupDetail is a group together with its member documents in list form.
type GroupDetail struct {
	model.Group
	Documents []DocumentListItem `json:"documents"`
}

func NewGroupService(groups *repo.GroupRepo, docs *repo.DocumentRepo, suggester *ai.Suggester) *GroupService {
	cache := expirable.NewLRU[string, []model.GroupSuggestion](1000, nil, 10*time.Minute)
	return &GroupService{groups: groups, docs: docs, suggester: suggester, cache: cache}
}

// Create makes a group and optionally seeds it with documents; ids the user
// does not own are dropped.
func (s *GroupService) Create(ctx context.Context, userID, name, gtype string, docIDs []string) (*model.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: group name is required", appErr.ErrInvalid)
	}
	if gtype == "" {
		gtype = model.GroupTypeManual
	}
	if gtype != model.GroupTypeManual && gtype != model.GroupTypeAI {
		return nil, fmt.Errorf("%w: unknown group type %s", appErr.ErrInvalid, gtype)
	}
	now := timeutil.NowUnix()
	group := &model.Group{
		ID:     newID(),
		UserID: userID,
		Name:   name,
		Gtype:  gtype,
		Ctime:  now,
		Mtime:  now,
	}
	if err := s.groups.Create(ctx, group); err != nil {
		return nil, err
	}
	if len(docIDs) > 0 {
		owned, err := s.docs.ListByIDs(ctx, userID, docIDs)
		if err != nil {
			return nil, err
		}
		for _, doc := range owned {
			if err := s.groups.AddMember(ctx, &model.GroupMember{GroupID: group.ID, DocumentID: doc.ID, Ctime: now}); err != nil {
				return nil, err
			}
		}
	}
	return group, nil
}

func (s *GroupService) List(ctx context.Context, userID string) ([]model.GroupSummary, error) {
	return s.groups.List(ctx, userID)
}

func (s *GroupService) Get(ctx context.Context, userID, groupID string) (*GroupDetail, error) {
	group, err := s.groups.GetByID(ctx, userID, groupID)
	if err != nil {
		return nil, err
	}
	ids, err := s.groups.ListMemberDocIDs(ctx, groupID)
	if err != nil {
		return nil, err
	}
	docs, err := s.docs.ListByIDs(ctx, userID, ids)
	if err != nil {
		return nil, err
	}
	items := make([]DocumentListItem, 0, len(docs))
	for _, doc := range docs {
		items = append(items, documentListItem(doc))
	}
	return &GroupDetail{Group: *group, Documents: items}, nil
}

func (s *GroupService) Rename(ctx context.Context, userID, groupID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: group name is required", appErr.ErrInvalid)
	}
	return s.groups.Rename(ctx, userID, groupID, name, timeutil.NowUnix())
}

// Delete drops memberships first so a half-deleted group never keeps orphan
// member rows.
func (s *GroupService) Delete(ctx context.Context, userID, groupID string) error {
	if _, err := s.groups.GetByID(ctx, userID, groupID); err != nil {
		return err
	}
	if err := s.groups.DeleteMembersByGroup(ctx, groupID); err != nil {
		return err
	}
	return s.groups.Delete(ctx, userID, groupID)
}

// AddDocuments attaches owned documents to the group; re-adding an existing
// member is a no-op.
func (s *GroupService) AddDocuments(ctx context.Context, userID, groupID string, docIDs []string) error {
	if _, err := s.groups.GetByID(ctx, userID, groupID); err != nil {
		return err
	}
	if len(docIDs) == 0 {
		return fmt.Errorf("%w: document_ids is required", appErr.ErrInvalid)
	}
	owned, err := s.docs.ListByIDs(ctx, userID, docIDs)
	if err != nil {
		return err
	}
	if len(owned) == 0 {
		return appErr.ErrNotFound
	}
	now := timeutil.NowUnix()
	for _, doc := range owned {
		if err := s.groups.AddMember(ctx, &model.GroupMember{GroupID: groupID, DocumentID: doc.ID, Ctime: now}); err != nil {
			return err
		}
	}
	return nil
}

func (s *GroupService) RemoveDocument(ctx context.Context, userID, groupID, docID string) error {
	if _, err := s.groups.GetByID(ctx, userID, groupID); err != nil {
		return err
	}
	return s.groups.RemoveMember(ctx, groupID, docID)
}

// Suggest asks the model for groupings over the user's ready documents. The
// result is cached per document set, so repeated calls are cheap until the
// library changes.
func (s *GroupService) Suggest(ctx context.Context, userID string) ([]model.GroupSuggestion, error) {
	if s.suggester == nil {
		return nil, ai.ErrUnavailable
	}
	docs, err := s.docs.List(ctx, userID, model.DocStatusReady, suggestMaxDocs, 0)
	if err != nil {
		return nil, err
	}
	if len(docs) < 2 {
		return nil, fmt.Errorf("%w: at least two processed documents are required", appErr.ErrInvalid)
	}
	key := suggestCacheKey(userID, docs)
	if cached, ok := s.cache.Get(key); ok {
		return cached, nil
	}
	input := make([]ai.SuggestDoc, 0, len(docs))
	for _, doc := range docs {
		input = append(input, ai.SuggestDoc{ID: doc.ID, Name: doc.Name, Summary: doc.Summary})
	}
	suggestions, err := s.suggester.SuggestGroups(ctx, input)
	if err != nil {
		return nil, err
	}
	s.cache.Add(key, suggestions)
	return suggestions, nil
}

func suggestCacheKey(userID string, docs []model.Document) string {
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.ID)
	}
	sort.Strings(ids)
	hash := sha256.Sum256([]byte(strings.Join(ids, ",")))
	return userID + ":" + hex.EncodeToString(hash[:])
}
