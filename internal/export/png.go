package export

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/banshee-data/gridsim/internal/render"
)

// Renderer draws a scene to a writer.
type Renderer interface {
	Render(w io.Writer, s render.Scene) error
}

// WriteScene renders s with r into path on fsys, creating parent directories.
// The path must pass ValidateOutputPath.
func WriteScene(fsys FileSystem, path string, r Renderer, s render.Scene) error {
	if err := ValidateOutputPath(path); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := fsys.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := r.Render(f, s); err != nil {
		f.Close()
		return fmt.Errorf("render %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
