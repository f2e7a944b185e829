// Package doctext turns binary office documents into plain text. Extraction
// runs through an ordered chain of strategies; the first one that supports
// the format and succeeds wins, later ones are fallbacks for when a faster
// path fails on a malformed file.
package doctext

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"coursemind/internal/textutil"
)

// MaxDocumentChars caps extracted text per document before it is cached.
const MaxDocumentChars = 10000

// Format is a recognized document format.
type Format string

const (
	FormatPDF     Format = "pdf"
	FormatDOCX    Format = "docx"
	FormatPPTX    Format = "pptx"
	FormatXLSX    Format = "xlsx"
	FormatODT     Format = "odt"
	FormatODP     Format = "odp"
	FormatODS     Format = "ods"
	FormatDOC     Format = "doc"
	FormatRTF     Format = "rtf"
	FormatText    Format = "txt"
	FormatUnknown Format = ""
)

// Document is one binary payload to extract.
type Document struct {
	Filename string
	MimeType string
	Data     []byte
}

// Format resolves the document format from the filename extension, falling
// back to the MIME type when the extension says nothing.
func (d Document) Format() Format {
	switch strings.ToLower(filepath.Ext(d.Filename)) {
	case ".pdf":
		return FormatPDF
	case ".docx":
		return FormatDOCX
	case ".pptx":
		return FormatPPTX
	case ".xlsx":
		return FormatXLSX
	case ".odt":
		return FormatODT
	case ".odp":
		return FormatODP
	case ".ods":
		return FormatODS
	case ".doc":
		return FormatDOC
	case ".rtf":
		return FormatRTF
	case ".txt", ".md", ".text":
		return FormatText
	}

	switch d.MimeType {
	case "application/pdf":
		return FormatPDF
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return FormatDOCX
	case "application/vnd.openxmlformats-officedocument.presentationml.presentation":
		return FormatPPTX
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return FormatXLSX
	case "text/plain", "text/markdown":
		return FormatText
	}
	return FormatUnknown
}

// Strategy is one way of getting text out of a document.
type Strategy interface {
	// Name identifies the strategy in logs.
	Name() string
	// Supports reports whether the strategy can handle the format.
	Supports(format Format) bool
	// Extract returns plain text for the document.
	Extract(ctx context.Context, doc Document) (string, error)
}

// Chain runs strategies in order and returns the first successful result.
type Chain struct {
	strategies []Strategy
}

// NewChain builds a chain over the given strategies, tried in order.
func NewChain(strategies ...Strategy) *Chain {
	return &Chain{strategies: strategies}
}

// DefaultChain is the production ordering: external native tools first
// (best fidelity), then in-process libraries, then raw ZIP parsing, then
// the converter subprocess as a catch-all.
func DefaultChain(scratchDir string) *Chain {
	return NewChain(
		NewNativeTool(scratchDir),
		NewLibrary(),
		NewZipParse(),
		NewConverter(scratchDir),
	)
}

// Extract runs the document through the chain. Strategy failures are logged
// and the next candidate is tried; the error returns only when every
// supporting strategy has failed or none supports the format. Output is
// whitespace-normalized and capped at MaxDocumentChars.
func (c *Chain) Extract(ctx context.Context, doc Document) (string, error) {
	format := doc.Format()
	if format == FormatUnknown {
		return "", fmt.Errorf("unsupported document format: %s", doc.Filename)
	}
	if len(doc.Data) == 0 {
		return "", fmt.Errorf("document %s is empty", doc.Filename)
	}

	if format == FormatText {
		return finalize(string(doc.Data)), nil
	}

	tried := 0
	var lastErr error
	for _, strategy := range c.strategies {
		if !strategy.Supports(format) {
			continue
		}
		tried++

		text, err := strategy.Extract(ctx, doc)
		if err != nil {
			log.Printf("⚠️  [DOCTEXT] %s failed on %s: %v", strategy.Name(), doc.Filename, err)
			lastErr = err
			continue
		}
		if strings.TrimSpace(text) == "" {
			log.Printf("⚠️  [DOCTEXT] %s produced no text for %s, trying next", strategy.Name(), doc.Filename)
			lastErr = fmt.Errorf("%s: empty extraction", strategy.Name())
			continue
		}

		log.Printf("📄 [DOCTEXT] %s extracted %s (%d chars)", strategy.Name(), doc.Filename, len(text))
		return finalize(text), nil
	}

	if tried == 0 {
		return "", fmt.Errorf("no extraction strategy for format %s (%s)", format, doc.Filename)
	}
	return "", fmt.Errorf("all extraction strategies failed for %s: %w", doc.Filename, lastErr)
}

func finalize(text string) string {
	text = textutil.NormalizeWhitespace(text)
	text = textutil.CollapseBlankLines(text)
	text = strings.TrimSpace(text)
	return textutil.Truncate(text, MaxDocumentChars)
}
