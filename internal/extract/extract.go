package extract

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Text converts raw file bytes into text suitable for summarization. It is
// total: any input yields a non-empty string, parser failures and panics
// degrade to a bracketed placeholder naming the file.
func Text(data []byte, filename string) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = failurePlaceholder(filename, fmt.Errorf("%v", r))
		}
	}()
	text, err := parse(data, filename)
	if err != nil {
		return failurePlaceholder(filename, err)
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Sprintf("[no readable text content in %s]", filename)
	}
	return text
}

func failurePlaceholder(filename string, err error) string {
	return fmt.Sprintf("[text extraction failed for %s: %v]", filename, err)
}

func parse(data []byte, filename string) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return extractPDF(data)
	case ".docx", ".doc":
		return extractDOCX(data)
	default:
		return plainText(data), nil
	}
}

// plainText treats the bytes as UTF-8 verbatim; invalid sequences are coerced
// so the result is always storable.
func plainText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	return string(bytes.ToValidUTF8(data, []byte("�")))
}
