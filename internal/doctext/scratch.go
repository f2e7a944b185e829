package doctext

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Scratch is a throwaway working directory for strategies that shell out to
// external tools. Cleanup always removes the whole directory, so a crashed
// converter cannot leave partial files behind.
type Scratch struct {
	dir string
}

// NewScratch creates a unique directory under baseDir (os.TempDir() when
// empty).
func NewScratch(baseDir string) (*Scratch, error) {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	dir := filepath.Join(baseDir, "coursemind-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create scratch dir: %w", err)
	}
	return &Scratch{dir: dir}, nil
}

// Dir returns the scratch directory path.
func (s *Scratch) Dir() string {
	return s.dir
}

// WriteFile places a payload inside the scratch directory and returns its
// full path. The name is used as-is; callers pass plain basenames.
func (s *Scratch) WriteFile(name string, data []byte) (string, error) {
	p := filepath.Join(s.dir, filepath.Base(name))
	if err := os.WriteFile(p, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write scratch file: %w", err)
	}
	return p, nil
}

// Cleanup removes the scratch directory and everything in it.
func (s *Scratch) Cleanup() {
	_ = os.RemoveAll(s.dir)
}
