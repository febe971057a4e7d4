package mdutil

import (
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Excerpt renders a plain-text preview of markdown: heading and paragraph text
// is kept, code blocks and raw HTML are skipped. The result is cut near limit
// runes on a word boundary with a trailing ellipsis.
func Excerpt(markdown string, limit int) string {
	if limit <= 0 || strings.TrimSpace(markdown) == "" {
		return ""
	}
	md := goldmark.New()
	reader := text.NewReader([]byte(markdown))
	doc := md.Parser().Parse(reader)

	var parts []string
	total := 0
	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		switch node.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock:
			continue
		}
		txt := nodeText(node, reader.Source())
		if txt == "" {
			continue
		}
		parts = append(parts, txt)
		total += utf8.RuneCountInString(txt) + 1
		if total >= limit {
			break
		}
	}
	return cut(strings.Join(parts, " "), limit)
}

func nodeText(n ast.Node, source []byte) string {
	var sb strings.Builder
	ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if node.Kind() == ast.KindText {
			sb.Write(node.(*ast.Text).Segment.Value(source))
			sb.WriteByte(' ')
		}
		return ast.WalkContinue, nil
	})
	return strings.Join(strings.Fields(sb.String()), " ")
}

func cut(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	cutAt := limit
	for i := limit; i > limit/2; i-- {
		if runes[i] == ' ' {
			cutAt = i
			break
		}
	}
	return strings.TrimSpace(string(runes[:cutAt])) + "..."
}
