package doctext

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// converterTimeout bounds a single soffice run; office suites can hang on
// corrupt inputs.
const converterTimeout = 60 * time.Second

// sofficeCandidates are well-known install locations checked before PATH.
// LibreOffice's packaged installs often leave the binary off PATH entirely.
var sofficeCandidates = []string{
	"/usr/bin/soffice",
	"/usr/local/bin/soffice",
	"/opt/libreoffice/program/soffice",
	"/Applications/LibreOffice.app/Contents/MacOS/soffice",
}

// Converter is the catch-all strategy: it shells out to LibreOffice to
// convert legacy and OpenDocument formats to plain text. Slow, so it sits
// last in the chain.
type Converter struct {
	scratchBase string
	candidates  []string
	stat        func(string) (os.FileInfo, error)
	lookPath    func(string) (string, error)
}

// NewConverter creates the strategy with scratch files under baseDir.
func NewConverter(baseDir string) *Converter {
	return &Converter{
		scratchBase: baseDir,
		candidates:  sofficeCandidates,
		stat:        os.Stat,
		lookPath:    exec.LookPath,
	}
}

func (c *Converter) Name() string { return "soffice" }

// binary resolves the soffice path: well-known locations first, then PATH.
func (c *Converter) binary() (string, bool) {
	for _, candidate := range c.candidates {
		if info, err := c.stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
	}
	path, err := c.lookPath("soffice")
	if err != nil {
		return "", false
	}
	return path, true
}

// Supports covers everything soffice can open, but only when the binary is
// installed.
func (c *Converter) Supports(format Format) bool {
	switch format {
	case FormatPDF, FormatDOCX, FormatPPTX, FormatXLSX, FormatODT, FormatODP, FormatODS, FormatDOC, FormatRTF:
	default:
		return false
	}
	_, ok := c.binary()
	return ok
}

// Extract converts the document to text in a scratch directory and reads
// the result back.
func (c *Converter) Extract(ctx context.Context, doc Document) (string, error) {
	bin, ok := c.binary()
	if !ok {
		return "", fmt.Errorf("soffice binary not found")
	}

	scratch, err := NewScratch(c.scratchBase)
	if err != nil {
		return "", err
	}
	defer scratch.Cleanup()

	name := filepath.Base(doc.Filename)
	if name == "" || name == "." {
		name = "input." + string(doc.Format())
	}
	src, err := scratch.WriteFile(name, doc.Data)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, converterTimeout)
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin,
		"--headless", "--norestore",
		"--convert-to", "txt:Text (encoded):UTF8",
		"--outdir", scratch.Dir(), src,
	)
	cmd.Stderr = &stderr
	// Each run gets its own profile so concurrent conversions don't fight
	// over the default lock file.
	cmd.Env = append(os.Environ(), "HOME="+scratch.Dir())
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("soffice failed: %w (%s)", err, stderr.String())
	}

	out := strings.TrimSuffix(src, filepath.Ext(src)) + ".txt"
	data, err := os.ReadFile(out)
	if err != nil {
		return "", fmt.Errorf("soffice produced no output: %w", err)
	}
	return string(data), nil
}
