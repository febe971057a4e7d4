package extract

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf16"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

func extractPDF(data []byte) (string, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}
	if err := api.ValidateContext(ctx); err != nil {
		return "", fmt.Errorf("validate pdf: %w", err)
	}
	var sb strings.Builder
	for page := 1; page <= ctx.PageCount; page++ {
		r, err := pdfcpu.ExtractPageContent(ctx, page)
		if err != nil {
			return "", fmt.Errorf("extract page %d: %w", page, err)
		}
		if r == nil {
			continue
		}
		raw, err := io.ReadAll(r)
		if err != nil {
			return "", fmt.Errorf("read page %d content: %w", page, err)
		}
		txt := contentStreamText(raw)
		if txt != "" {
			sb.WriteString(txt)
			sb.WriteString("\n")
		}
	}
	return plainText([]byte(sb.String())), nil
}

// contentStreamText pulls the arguments of text-showing operators (Tj, TJ,
// ', ") out of a decoded page content stream. Positioning operators map to
// line breaks so paragraphs keep some shape.
func contentStreamText(content []byte) string {
	var out strings.Builder
	var pending strings.Builder
	i := 0
	for i < len(content) {
		c := content[i]
		switch {
		case c == '(':
			s, next := parseLiteralString(content, i)
			pending.WriteString(s)
			i = next
		case c == '<':
			if i+1 < len(content) && content[i+1] == '<' {
				i += 2
				continue
			}
			s, next := parseHexString(content, i)
			pending.WriteString(s)
			i = next
		case isOperatorChar(c):
			start := i
			for i < len(content) && isOperatorChar(content[i]) {
				i++
			}
			switch string(content[start:i]) {
			case "Tj", "TJ", "'", "\"":
				if pending.Len() > 0 {
					out.WriteString(pending.String())
					out.WriteByte(' ')
					pending.Reset()
				}
			case "Td", "TD", "T*":
				pending.Reset()
				out.WriteByte('\n')
			case "ET":
				pending.Reset()
			}
		default:
			i++
		}
	}
	return strings.TrimSpace(out.String())
}

func isOperatorChar(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || c == '\'' || c == '"' || c == '*'
}

// parseLiteralString decodes a PDF literal string starting at the opening
// paren, honoring nested parens and backslash escapes. Returns the decoded
// value and the index after the closing paren.
func parseLiteralString(b []byte, start int) (string, int) {
	var sb strings.Builder
	depth := 1
	i := start + 1
	for i < len(b) && depth > 0 {
		c := b[i]
		switch c {
		case '\\':
			if i+1 >= len(b) {
				i++
				continue
			}
			nxt := b[i+1]
			switch nxt {
			case 'n':
				sb.WriteByte('\n')
				i += 2
			case 'r':
				sb.WriteByte('\r')
				i += 2
			case 't':
				sb.WriteByte('\t')
				i += 2
			case 'b', 'f':
				i += 2
			case '(', ')', '\\':
				sb.WriteByte(nxt)
				i += 2
			case '\n':
				i += 2
			case '\r':
				i += 2
				if i < len(b) && b[i] == '\n' {
					i++
				}
			default:
				if nxt >= '0' && nxt <= '7' {
					val := 0
					j := i + 1
					for j < len(b) && j < i+4 && b[j] >= '0' && b[j] <= '7' {
						val = val*8 + int(b[j]-'0')
						j++
					}
					sb.WriteByte(byte(val))
					i = j
				} else {
					sb.WriteByte(nxt)
					i += 2
				}
			}
		case '(':
			depth++
			sb.WriteByte(c)
			i++
		case ')':
			depth--
			if depth > 0 {
				sb.WriteByte(c)
			}
			i++
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return sb.String(), i
}

// parseHexString decodes a PDF hex string starting at '<'. UTF-16BE payloads
// (BOM fe ff) are converted, anything else is kept byte for byte.
func parseHexString(b []byte, start int) (string, int) {
	i := start + 1
	var hexDigits []byte
	for i < len(b) && b[i] != '>' {
		c := b[i]
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F') {
			hexDigits = append(hexDigits, c)
		}
		i++
	}
	if i < len(b) {
		i++
	}
	if len(hexDigits)%2 == 1 {
		hexDigits = append(hexDigits, '0')
	}
	raw := make([]byte, 0, len(hexDigits)/2)
	for j := 0; j+1 < len(hexDigits); j += 2 {
		raw = append(raw, hexNibble(hexDigits[j])<<4|hexNibble(hexDigits[j+1]))
	}
	if len(raw) >= 2 && raw[0] == 0xFE && raw[1] == 0xFF {
		codes := make([]uint16, 0, (len(raw)-2)/2)
		for j := 2; j+1 < len(raw); j += 2 {
			codes = append(codes, uint16(raw[j])<<8|uint16(raw[j+1]))
		}
		return string(utf16.Decode(codes)), i
	}
	return string(raw), i
}

func hexNibble(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
