package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/xxxsen/docvault/internal/pkg/errors"
)

// ErrorFallbackModel marks results produced without a working model reply.
const ErrorFallbackModel = "error-fallback"

const (
	defaultMaxInputChars  = 60000
	truncationMarker      = "\n\n[content truncated for length]"
	synthesizedSummaryLen = 200
)

type Result struct {
	Summary  string `json:"summary"`
	Markdown string `json:"markdown"`
	Model    string `json:"model"`
}

type SummarizerConfig struct {
	Model         string
	MaxInputChars int
	TimeoutSecs   int
}

// Summarizer turns extracted document text into a summary plus cleaned-up
// markdown. Input validation errors are returned to the caller; everything
// after that degrades to an error-fallback Result instead of failing, and the
// original content is never dropped.
type Summarizer struct {
	gen IGenerator
	cfg SummarizerConfig
}

func NewSummarizer(gen IGenerator, cfg SummarizerConfig) *Summarizer {
	if cfg.MaxInputChars <= 0 {
		cfg.MaxInputChars = defaultMaxInputChars
	}
	return &Summarizer{gen: gen, cfg: cfg}
}

func (s *Summarizer) Summarize(ctx context.Context, content string, filename string) (*Result, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: content is required", appErr.ErrInvalid)
	}
	if strings.TrimSpace(filename) == "" {
		return nil, fmt.Errorf("%w: filename is required", appErr.ErrInvalid)
	}
	logger := logutil.GetLogger(ctx).With(zap.String("filename", filename))

	input, truncated := truncateInput(content, s.cfg.MaxInputChars)
	if truncated {
		logger.Info("content truncated for prompt",
			zap.Int("limit", s.cfg.MaxInputChars), zap.Int("original_chars", len([]rune(content))))
	}
	raw, err := generateText(ctx, s.gen, s.cfg.TimeoutSecs, buildSummarizePrompt(input, filename))
	if err != nil {
		reason := classifyGenError(err)
		logger.Warn("summarize degraded to fallback", zap.String("reason", reason), zap.Error(err))
		return &Result{
			Summary:  "Summarization failed: " + reason,
			Markdown: content,
			Model:    ErrorFallbackModel,
		}, nil
	}
	res := parseSummarizeResponse(raw, filename)
	res.Model = s.cfg.Model
	return res, nil
}

func buildSummarizePrompt(content, filename string) string {
	return fmt.Sprintf(`You are a document analysis assistant.
Read the document below and produce a JSON object with exactly two string fields:
- "summary": a concise summary (2-4 sentences) of the document.
- "markdown": the document content cleaned up as well-formatted markdown.
Rules:
- Use the same language as the document.
- Return ONLY the JSON object. No extra text.

FILENAME: %s

DOCUMENT:
%s`, filename, content)
}

func truncateInput(s string, limit int) (string, bool) {
	runes := []rune(s)
	if len(runes) <= limit {
		return s, false
	}
	return string(runes[:limit]) + truncationMarker, true
}

// classifyGenError maps a generation failure to the message shown in the
// fallback summary.
func classifyGenError(err error) string {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "401") || strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "api key") || strings.Contains(msg, "permission denied"):
		return "authentication with the AI service failed, check the configured API key"
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate") ||
		strings.Contains(msg, "quota") || strings.Contains(msg, "exhausted"):
		return "the AI service rate limit was reached, retry later"
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline") ||
		strings.Contains(msg, "connection") || strings.Contains(msg, "network") ||
		strings.Contains(msg, "no such host"):
		return "the AI service was unreachable"
	default:
		return "the AI request failed unexpectedly"
	}
}

type summarizePayload struct {
	Summary  string `json:"summary"`
	Markdown string `json:"markdown"`
}

type parseStrategy func(string) (*Result, bool)

// parseSummarizeResponse tries strict parsers first and degrades towards a
// synthesized result; it always returns something usable.
func parseSummarizeResponse(raw, filename string) *Result {
	for _, parse := range []parseStrategy{parseFencedJSON, parseBraceJSON, parseLabelledFields} {
		if res, ok := parse(raw); ok {
			return res
		}
	}
	return synthesizeResult(raw, filename)
}

var fencedJSONRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

func parseFencedJSON(raw string) (*Result, bool) {
	m := fencedJSONRe.FindStringSubmatch(raw)
	if m == nil {
		return nil, false
	}
	return resultFromPayload(m[1], raw)
}

func parseBraceJSON(raw string) (*Result, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, false
	}
	return resultFromPayload(raw[start:end+1], raw)
}

func resultFromPayload(payload, raw string) (*Result, bool) {
	var out summarizePayload
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		return nil, false
	}
	if strings.TrimSpace(out.Summary) == "" {
		return nil, false
	}
	md := out.Markdown
	if strings.TrimSpace(md) == "" {
		md = raw
	}
	return &Result{Summary: strings.TrimSpace(out.Summary), Markdown: md}, true
}

var (
	summaryFieldRe  = regexp.MustCompile(`"summary"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	markdownFieldRe = regexp.MustCompile(`"markdown"\s*:\s*"((?:[^"\\]|\\.)*)"`)
)

// parseLabelledFields salvages individual fields out of replies whose JSON is
// broken as a whole (unbalanced braces, trailing chatter).
func parseLabelledFields(raw string) (*Result, bool) {
	sm := summaryFieldRe.FindStringSubmatch(raw)
	if sm == nil {
		return nil, false
	}
	summary, ok := unescapeJSONString(sm[1])
	if !ok || strings.TrimSpace(summary) == "" {
		return nil, false
	}
	md := raw
	if mm := markdownFieldRe.FindStringSubmatch(raw); mm != nil {
		if v, ok := unescapeJSONString(mm[1]); ok && strings.TrimSpace(v) != "" {
			md = v
		}
	}
	return &Result{Summary: strings.TrimSpace(summary), Markdown: md}, true
}

func unescapeJSONString(s string) (string, bool) {
	var out string
	if err := json.Unmarshal([]byte(`"`+s+`"`), &out); err != nil {
		return "", false
	}
	return out, true
}

// synthesizeResult keeps the whole reply as markdown and builds the summary
// from the filename plus the front of the reply.
func synthesizeResult(raw, filename string) *Result {
	prefix := strings.TrimSpace(raw)
	runes := []rune(prefix)
	if len(runes) > synthesizedSummaryLen {
		prefix = strings.TrimSpace(string(runes[:synthesizedSummaryLen])) + "..."
	}
	return &Result{Summary: filename + ": " + prefix, Markdown: raw}
}
