package render

import (
	"fmt"
	"os"
	"path/filepath"
)

// Artifacts stores rendered map images on disk, one PNG per session key.
type Artifacts struct {
	dir string
}

func NewArtifacts(dir string) (*Artifacts, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &Artifacts{dir: dir}, nil
}

func (a *Artifacts) path(sessionID string) string {
	return filepath.Join(a.dir, sessionID+".png")
}

// Save writes the PNG atomically so a concurrent reader never sees a
// half-written image.
func (a *Artifacts) Save(sessionID string, data []byte) error {
	tmp := a.path(sessionID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := os.Rename(tmp, a.path(sessionID)); err != nil {
		return fmt.Errorf("publish artifact: %w", err)
	}
	return nil
}

func (a *Artifacts) Read(sessionID string) ([]byte, error) {
	data, err := os.ReadFile(a.path(sessionID))
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return data, nil
}

func (a *Artifacts) Exists(sessionID string) bool {
	_, err := os.Stat(a.path(sessionID))
	return err == nil
}
