package extract

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"ragchat/internal/domain"
)

// TextExtractor reads plain text and markdown files. Page count is reported as 0.
type TextExtractor struct{}

func (p *TextExtractor) Supports(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".txt" || ext == ".md" || ext == ".markdown"
}

func (p *TextExtractor) Extract(r io.Reader, filename string) (domain.Document, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return domain.Document{}, domain.E(domain.KindExtraction, "extract text", fmt.Errorf("read %s: %w", filename, err))
	}
	if !utf8.Valid(content) {
		return domain.Document{}, domain.Errorf(domain.KindExtraction, "extract text", "%s is not valid UTF-8", filename)
	}
	return domain.Document{Name: filepath.Base(filename), Text: string(content)}, nil
}
