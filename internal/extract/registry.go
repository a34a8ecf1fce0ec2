package extract

import (
	"io"
	"os"
	"path/filepath"

	"ragchat/internal/domain"
)

// Registry dispatches to the first extractor that supports a filename.
type Registry struct {
	extractors []domain.Extractor
}

// NewRegistry returns a registry with the PDF and plain-text extractors.
func NewRegistry(extra ...domain.Extractor) *Registry {
	return &Registry{extractors: append([]domain.Extractor{&PDFExtractor{}, &TextExtractor{}}, extra...)}
}

func (m *Registry) Supports(filename string) bool {
	return m.find(filename) != nil
}

func (m *Registry) Extract(r io.Reader, filename string) (domain.Document, error) {
	ex := m.find(filename)
	if ex == nil {
		return domain.Document{}, domain.Errorf(domain.KindInvalidArgument, "extract", "unsupported file type %q", filepath.Ext(filename))
	}
	return ex.Extract(r, filename)
}

// ExtractFile opens path and extracts it with ex.
func ExtractFile(ex domain.Extractor, path string) (domain.Document, error) {
	if !ex.Supports(path) {
		return domain.Document{}, domain.Errorf(domain.KindInvalidArgument, "extract", "unsupported file type %q", filepath.Ext(path))
	}
	f, err := os.Open(path)
	if err != nil {
		return domain.Document{}, domain.E(domain.KindExtraction, "extract", err)
	}
	defer f.Close()
	return ex.Extract(f, path)
}

func (m *Registry) find(filename string) domain.Extractor {
	for _, ex := range m.extractors {
		if ex.Supports(filename) {
			return ex
		}
	}
	return nil
}
