package output

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmylchreest/cru/internal/model"
)

// WriteBundle writes every installable entry of b into dir, named after
// its destination's base name, and returns the written paths.
func WriteBundle(dir string, b model.ConfigBundle) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	var written []string
	for _, e := range b.Entries {
		name := filepath.Base(e.Destination)
		if e.Destination == "" {
			name = e.Role + ".txt"
		}
		path := filepath.Join(dir, name)
		mode := e.Mode
		if mode == 0 {
			mode = 0o644
		}
		if err := os.WriteFile(path, []byte(e.Content), mode); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}
