package doctext

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type stubStrategy struct {
	name    string
	formats map[Format]bool
	text    string
	err     error
	calls   int
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Supports(format Format) bool { return s.formats[format] }

func (s *stubStrategy) Extract(ctx context.Context, doc Document) (string, error) {
	s.calls++
	return s.text, s.err
}

// TestDocumentFormat verifies format detection by extension and MIME type.
func TestDocumentFormat(t *testing.T) {
	tests := []struct {
		filename string
		mimeType string
		want     Format
	}{
		{"report.pdf", "", FormatPDF},
		{"Slides.PPTX", "", FormatPPTX},
		{"notes.docx", "", FormatDOCX},
		{"grades.xlsx", "", FormatXLSX},
		{"old.doc", "", FormatDOC},
		{"readme.md", "", FormatText},
		{"noext", "application/pdf", FormatPDF},
		{"noext", "text/plain", FormatText},
		{"noext", "image/png", FormatUnknown},
	}

	for _, tt := range tests {
		doc := Document{Filename: tt.filename, MimeType: tt.mimeType}
		if got := doc.Format(); got != tt.want {
			t.Errorf("Format(%q, %q) = %q, want %q", tt.filename, tt.mimeType, got, tt.want)
		}
	}
}

// TestChainFallsThroughOnFailure verifies that a failing strategy does not
// abort extraction when a later strategy supports the format.
func TestChainFallsThroughOnFailure(t *testing.T) {
	failing := &stubStrategy{name: "first", formats: map[Format]bool{FormatPDF: true}, err: errors.New("boom")}
	working := &stubStrategy{name: "second", formats: map[Format]bool{FormatPDF: true}, text: "hello world"}

	chain := NewChain(failing, working)
	text, err := chain.Extract(context.Background(), Document{Filename: "a.pdf", Data: []byte("x")})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if text != "hello world" {
		t.Errorf("got %q, want %q", text, "hello world")
	}
	if failing.calls != 1 || working.calls != 1 {
		t.Errorf("call counts = %d/%d, want 1/1", failing.calls, working.calls)
	}
}

// TestChainSkipsUnsupported verifies that strategies are only consulted for
// formats they declare.
func TestChainSkipsUnsupported(t *testing.T) {
	pdfOnly := &stubStrategy{name: "pdf-only", formats: map[Format]bool{FormatPDF: true}, text: "nope"}
	docx := &stubStrategy{name: "docx", formats: map[Format]bool{FormatDOCX: true}, text: "docx text"}

	chain := NewChain(pdfOnly, docx)
	text, err := chain.Extract(context.Background(), Document{Filename: "b.docx", Data: []byte("x")})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if text != "docx text" {
		t.Errorf("got %q", text)
	}
	if pdfOnly.calls != 0 {
		t.Errorf("pdf-only strategy was called for a docx")
	}
}

// TestChainEmptyTextTriesNext verifies that a strategy returning only
// whitespace is treated as a failure.
func TestChainEmptyTextTriesNext(t *testing.T) {
	empty := &stubStrategy{name: "empty", formats: map[Format]bool{FormatPDF: true}, text: "   \n  "}
	working := &stubStrategy{name: "working", formats: map[Format]bool{FormatPDF: true}, text: "real text"}

	chain := NewChain(empty, working)
	text, err := chain.Extract(context.Background(), Document{Filename: "c.pdf", Data: []byte("x")})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if text != "real text" {
		t.Errorf("got %q", text)
	}
}

// TestChainAllFail verifies the error when every supporting strategy fails.
func TestChainAllFail(t *testing.T) {
	failing := &stubStrategy{name: "only", formats: map[Format]bool{FormatPDF: true}, err: errors.New("boom")}

	chain := NewChain(failing)
	_, err := chain.Extract(context.Background(), Document{Filename: "d.pdf", Data: []byte("x")})
	if err == nil {
		t.Fatal("expected error when all strategies fail")
	}
}

// TestChainUnknownFormat verifies unknown formats are rejected up front.
func TestChainUnknownFormat(t *testing.T) {
	chain := NewChain()
	_, err := chain.Extract(context.Background(), Document{Filename: "photo.png", Data: []byte("x")})
	if err == nil {
		t.Fatal("expected error for unknown format")
	}
}

// TestChainPlainTextBypassesStrategies verifies .txt payloads are returned
// directly without consulting any strategy.
func TestChainPlainTextBypassesStrategies(t *testing.T) {
	strategy := &stubStrategy{name: "never", formats: map[Format]bool{FormatText: true}, text: "wrong"}

	chain := NewChain(strategy)
	text, err := chain.Extract(context.Background(), Document{Filename: "notes.txt", Data: []byte("plain contents")})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if text != "plain contents" {
		t.Errorf("got %q", text)
	}
	if strategy.calls != 0 {
		t.Error("strategy was called for plain text")
	}
}

// TestChainCapsOutput verifies the per-document character cap.
func TestChainCapsOutput(t *testing.T) {
	long := &stubStrategy{name: "long", formats: map[Format]bool{FormatPDF: true}, text: strings.Repeat("a", MaxDocumentChars*2)}

	chain := NewChain(long)
	text, err := chain.Extract(context.Background(), Document{Filename: "e.pdf", Data: []byte("x")})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(text) > MaxDocumentChars {
		t.Errorf("output length %d exceeds cap", len(text))
	}
	if !strings.HasSuffix(text, "[truncated]") {
		t.Error("capped output missing truncation marker")
	}
}

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("zip create: %v", err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

// TestZipParseDOCX verifies paragraph extraction from a minimal DOCX.
func TestZipParseDOCX(t *testing.T) {
	docXML := `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>First paragraph.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second</w:t></w:r><w:r><w:t>paragraph.</w:t></w:r></w:p>
  </w:body>
</w:document>`
	data := buildZip(t, map[string]string{
		"[Content_Types].xml": `<Types/>`,
		"word/document.xml":   docXML,
	})

	text, err := NewZipParse().Extract(context.Background(), Document{Filename: "doc.docx", Data: data})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if !strings.Contains(text, "First paragraph.") {
		t.Errorf("missing first paragraph: %q", text)
	}
	if !strings.Contains(text, "Second paragraph.") {
		t.Errorf("runs not joined with a space: %q", text)
	}
}

// TestZipParsePPTXSlideOrder verifies slides are emitted in numeric order,
// not lexical ZIP order.
func TestZipParsePPTXSlideOrder(t *testing.T) {
	slide := func(text string) string {
		return `<?xml version="1.0"?>
<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">
  <a:p><a:r><a:t>` + text + `</a:t></a:r></a:p>
</p:sld>`
	}
	data := buildZip(t, map[string]string{
		"[Content_Types].xml":    `<Types/>`,
		"ppt/slides/slide10.xml": slide("tenth"),
		"ppt/slides/slide2.xml":  slide("second"),
		"ppt/slides/slide1.xml":  slide("first"),
	})

	text, err := NewZipParse().Extract(context.Background(), Document{Filename: "deck.pptx", Data: data})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	first := strings.Index(text, "first")
	second := strings.Index(text, "second")
	tenth := strings.Index(text, "tenth")
	if first < 0 || second < 0 || tenth < 0 {
		t.Fatalf("missing slide text: %q", text)
	}
	if !(first < second && second < tenth) {
		t.Errorf("slides out of order: %q", text)
	}
}

// TestZipParseRejectsGarbage verifies non-ZIP payloads error cleanly.
func TestZipParseRejectsGarbage(t *testing.T) {
	_, err := NewZipParse().Extract(context.Background(), Document{Filename: "x.docx", Data: []byte("not a zip")})
	if err == nil {
		t.Fatal("expected error for non-ZIP payload")
	}
}

// TestNativeToolUnavailable verifies the strategy excludes itself when the
// binary is at no well-known location and off PATH.
func TestNativeToolUnavailable(t *testing.T) {
	tool := NewNativeTool(t.TempDir())
	tool.stat = func(string) (os.FileInfo, error) { return nil, os.ErrNotExist }
	tool.lookPath = func(string) (string, error) { return "", errors.New("not found") }
	if tool.Supports(FormatPDF) {
		t.Error("Supports should be false without the binary")
	}
}

// TestNativeToolWellKnownPath verifies an install at a well-known location
// is found even when the binary is not on PATH.
func TestNativeToolWellKnownPath(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "pdftotext")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("write binary: %v", err)
	}

	tool := NewNativeTool(dir)
	tool.candidates = []string{bin}
	tool.lookPath = func(string) (string, error) { return "", errors.New("not on PATH") }

	if !tool.Supports(FormatPDF) {
		t.Error("Supports should be true for a well-known install location")
	}
	resolved, ok := tool.binary()
	if !ok || resolved != bin {
		t.Errorf("binary() = %q, %v, want %q", resolved, ok, bin)
	}
}

// TestNativeToolIgnoresDirectoryCandidate verifies a directory at a
// candidate path does not count as an install.
func TestNativeToolIgnoresDirectoryCandidate(t *testing.T) {
	dir := t.TempDir()

	tool := NewNativeTool(dir)
	tool.candidates = []string{dir}
	tool.lookPath = func(string) (string, error) { return "", errors.New("not on PATH") }

	if tool.Supports(FormatPDF) {
		t.Error("Supports should be false when the candidate is a directory")
	}
}

// TestConverterWellKnownPath verifies the soffice lookup also consults
// well-known locations before PATH.
func TestConverterWellKnownPath(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "soffice")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("write binary: %v", err)
	}

	conv := NewConverter(dir)
	conv.candidates = []string{bin}
	conv.lookPath = func(string) (string, error) { return "", errors.New("not on PATH") }

	if !conv.Supports(FormatDOCX) {
		t.Error("Supports should be true for a well-known install location")
	}
	resolved, ok := conv.binary()
	if !ok || resolved != bin {
		t.Errorf("binary() = %q, %v, want %q", resolved, ok, bin)
	}
}

// TestConverterUnavailable verifies the converter excludes itself when
// soffice cannot be resolved anywhere.
func TestConverterUnavailable(t *testing.T) {
	conv := NewConverter(t.TempDir())
	conv.stat = func(string) (os.FileInfo, error) { return nil, os.ErrNotExist }
	conv.lookPath = func(string) (string, error) { return "", errors.New("not found") }
	if conv.Supports(FormatDOCX) {
		t.Error("Supports should be false without the binary")
	}
}
