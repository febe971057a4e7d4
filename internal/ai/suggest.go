package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xxxsen/docvault/internal/model"
)

const maxSuggestedGroups = 10

type SuggestDoc struct {
	ID      string
	Name    string
	Summary string
}

type SuggesterConfig struct {
	TimeoutSecs int
}

// Suggester proposes document groupings over the caller's library.
type Suggester struct {
	gen IGenerator
	cfg SuggesterConfig
}

func NewSuggester(gen IGenerator, cfg SuggesterConfig) *Suggester {
	return &Suggester{gen: gen, cfg: cfg}
}

func (s *Suggester) SuggestGroups(ctx context.Context, docs []SuggestDoc) ([]model.GroupSuggestion, error) {
	if len(docs) < 2 {
		return nil, fmt.Errorf("at least two documents are required for suggestions")
	}
	var list strings.Builder
	valid := make(map[string]bool, len(docs))
	for _, doc := range docs {
		valid[doc.ID] = true
		summary := doc.Summary
		if summary == "" {
			summary = "(not summarized yet)"
		}
		fmt.Fprintf(&list, "- id: %s | name: %s | summary: %s\n", doc.ID, doc.Name, summary)
	}
	prompt := fmt.Sprintf(`You are a document organization assistant.
Below is a list of documents with their ids, names and summaries.
Propose up to %d groups of related documents.
- Each group needs at least two documents.
- Return ONLY a JSON array. Each element is an object with fields:
  "name" (short group name), "document_ids" (ids from the list), "reason" (one sentence).
- Use the same language as the document names.

DOCUMENTS:
%s`, maxSuggestedGroups, list.String())

	result, err := generateText(ctx, s.gen, s.cfg.TimeoutSecs, prompt)
	if err != nil {
		return nil, err
	}
	return parseSuggestions(result, valid)
}

func parseSuggestions(output string, validIDs map[string]bool) ([]model.GroupSuggestion, error) {
	clean := strings.TrimSpace(output)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	clean = strings.TrimSpace(clean)
	start := strings.Index(clean, "[")
	end := strings.LastIndex(clean, "]")
	if start >= 0 && end > start {
		clean = clean[start : end+1]
	}

	var parsed []model.GroupSuggestion
	if err := json.Unmarshal([]byte(clean), &parsed); err != nil {
		return nil, fmt.Errorf("parse suggestions: %w", err)
	}
	out := make([]model.GroupSuggestion, 0, len(parsed))
	seen := make(map[string]bool)
	for _, sug := range parsed {
		name := strings.TrimSpace(sug.Name)
		if name == "" || seen[strings.ToLower(name)] {
			continue
		}
		ids := make([]string, 0, len(sug.DocumentIDs))
		for _, id := range sug.DocumentIDs {
			id = strings.TrimSpace(id)
			if validIDs[id] {
				ids = append(ids, id)
			}
		}
		if len(ids) < 2 {
			continue
		}
		seen[strings.ToLower(name)] = true
		out = append(out, model.GroupSuggestion{Name: name, DocumentIDs: ids, Reason: strings.TrimSpace(sug.Reason)})
		if len(out) >= maxSuggestedGroups {
			break
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no usable suggestions found")
	}
	return out, nil
}
