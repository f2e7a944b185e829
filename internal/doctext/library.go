package doctext

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
)

const (
	// maxPDFPages limits the number of pages to process.
	maxPDFPages = 100
	// maxSheetRows limits rows read per spreadsheet sheet.
	maxSheetRows = 1000
)

// Library extracts PDF and XLSX text with in-process parsers. No external
// binaries required, so it is the workhorse on minimal hosts.
type Library struct{}

// NewLibrary creates the strategy.
func NewLibrary() *Library {
	return &Library{}
}

func (l *Library) Name() string { return "library" }

func (l *Library) Supports(format Format) bool {
	return format == FormatPDF || format == FormatXLSX
}

func (l *Library) Extract(ctx context.Context, doc Document) (string, error) {
	switch doc.Format() {
	case FormatPDF:
		return extractPDF(doc.Data)
	case FormatXLSX:
		return extractXLSX(doc.Data)
	default:
		return "", fmt.Errorf("library strategy does not handle %s", doc.Format())
	}
}

// extractPDF walks pages in order, skipping pages whose text layer cannot
// be decoded rather than failing the whole document.
func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}

	totalPages := reader.NumPage()
	if totalPages == 0 {
		return "", fmt.Errorf("PDF has no pages")
	}
	if totalPages > maxPDFPages {
		totalPages = maxPDFPages
	}

	var b strings.Builder
	for pageNum := 1; pageNum <= totalPages; pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text = strings.TrimSpace(strings.ReplaceAll(text, "\x00", ""))
		if text == "" {
			continue
		}
		fmt.Fprintf(&b, "\n--- Page %d ---\n%s\n", pageNum, text)
	}

	return b.String(), nil
}

// extractXLSX renders each sheet as tab-separated rows under a sheet
// heading. Empty trailing cells are dropped by the reader already.
func extractXLSX(data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		if len(rows) == 0 {
			continue
		}
		if len(rows) > maxSheetRows {
			rows = rows[:maxSheetRows]
		}

		fmt.Fprintf(&b, "\n--- Sheet: %s ---\n", sheet)
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, "\t"))
			if line != "" {
				b.WriteString(line)
				b.WriteString("\n")
			}
		}
	}

	return b.String(), nil
}
