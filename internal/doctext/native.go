package doctext

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// nativeToolTimeout bounds a single external tool run.
const nativeToolTimeout = 30 * time.Second

// pdftotextCandidates are well-known install locations checked before PATH.
// Server images often install poppler outside the service's PATH.
var pdftotextCandidates = []string{
	"/usr/bin/pdftotext",
	"/usr/local/bin/pdftotext",
	"/opt/homebrew/bin/pdftotext",
	"/opt/poppler/bin/pdftotext",
}

// NativeTool extracts PDF text with the pdftotext binary when it is
// installed. It yields the best fidelity on scanned layouts, so it sits
// first in the chain; hosts without poppler simply skip it.
type NativeTool struct {
	scratchBase string
	candidates  []string
	stat        func(string) (os.FileInfo, error)
	lookPath    func(string) (string, error)
}

// NewNativeTool creates the strategy with scratch files under baseDir.
func NewNativeTool(baseDir string) *NativeTool {
	return &NativeTool{
		scratchBase: baseDir,
		candidates:  pdftotextCandidates,
		stat:        os.Stat,
		lookPath:    exec.LookPath,
	}
}

func (t *NativeTool) Name() string { return "pdftotext" }

// binary resolves the pdftotext path: well-known locations first, then PATH.
func (t *NativeTool) binary() (string, bool) {
	for _, candidate := range t.candidates {
		if info, err := t.stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
	}
	path, err := t.lookPath("pdftotext")
	if err != nil {
		return "", false
	}
	return path, true
}

// Supports reports true only for PDFs, and only when the binary exists.
func (t *NativeTool) Supports(format Format) bool {
	if format != FormatPDF {
		return false
	}
	_, ok := t.binary()
	return ok
}

// Extract writes the payload to a scratch file and runs pdftotext over it.
func (t *NativeTool) Extract(ctx context.Context, doc Document) (string, error) {
	bin, ok := t.binary()
	if !ok {
		return "", fmt.Errorf("pdftotext binary not found")
	}

	scratch, err := NewScratch(t.scratchBase)
	if err != nil {
		return "", err
	}
	defer scratch.Cleanup()

	src, err := scratch.WriteFile("input.pdf", doc.Data)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, nativeToolTimeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, "-enc", "UTF-8", "-layout", src, "-")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("pdftotext failed: %w (%s)", err, stderr.String())
	}

	return stdout.String(), nil
}
