package extract

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"

	"ragchat/internal/domain"
)

// SetPDFLicense registers a UniDoc metered license key. Empty keys are ignored.
func SetPDFLicense(key string) error {
	if strings.TrimSpace(key) == "" {
		return nil
	}
	return license.SetMeteredKey(key)
}

// PDFExtractor extracts page text from PDF files.
type PDFExtractor struct{}

func (p *PDFExtractor) Supports(filename string) bool {
	return strings.ToLower(filepath.Ext(filename)) == ".pdf"
}

// Extract concatenates the text of every page, separated by a space. Any page
// that cannot be read fails the whole document.
func (p *PDFExtractor) Extract(r io.Reader, filename string) (domain.Document, error) {
	const op = "extract pdf"
	data, err := io.ReadAll(r)
	if err != nil {
		return domain.Document{}, domain.E(domain.KindExtraction, op, fmt.Errorf("read %s: %w", filename, err))
	}

	reader, err := model.NewPdfReader(bytes.NewReader(data))
	if err != nil {
		return domain.Document{}, domain.E(domain.KindExtraction, op, fmt.Errorf("parse %s: %w", filename, err))
	}
	encrypted, err := reader.IsEncrypted()
	if err != nil {
		return domain.Document{}, domain.E(domain.KindExtraction, op, err)
	}
	if encrypted {
		ok, err := reader.Decrypt([]byte(""))
		if err != nil || !ok {
			return domain.Document{}, domain.Errorf(domain.KindExtraction, op, "%s is password protected", filename)
		}
	}

	numPages, err := reader.GetNumPages()
	if err != nil {
		return domain.Document{}, domain.E(domain.KindExtraction, op, fmt.Errorf("count pages of %s: %w", filename, err))
	}

	var text strings.Builder
	for i := 1; i <= numPages; i++ {
		page, err := reader.GetPage(i)
		if err != nil {
			return domain.Document{}, domain.E(domain.KindExtraction, op, fmt.Errorf("page %d of %s: %w", i, filename, err))
		}
		ex, err := extractor.New(page)
		if err != nil {
			return domain.Document{}, domain.E(domain.KindExtraction, op, fmt.Errorf("page %d of %s: %w", i, filename, err))
		}
		pageText, err := ex.ExtractText()
		if err != nil {
			return domain.Document{}, domain.E(domain.KindExtraction, op, fmt.Errorf("page %d of %s: %w", i, filename, err))
		}
		text.WriteString(pageText)
		text.WriteString(" ")
	}

	return domain.Document{Name: filepath.Base(filename), Text: text.String(), PageCount: numPages}, nil
}
