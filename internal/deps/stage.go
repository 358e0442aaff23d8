package deps

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Stage writes a resolved file set under root/<library name>, preserving the
// library's relative directory structure so its internal cross-file includes
// resolve unmodified. Paths that would escape the mount root are rejected.
func Stage(root string, lib Library, files FileSet) error {
	mount := filepath.Join(root, lib.Name)
	if err := os.MkdirAll(mount, 0o755); err != nil {
		return fmt.Errorf("creating mount root: %w", err)
	}

	for rel, content := range files {
		clean := filepath.Clean(filepath.FromSlash(rel))
		if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
			return fmt.Errorf("library path escapes mount root: %s", rel)
		}
		dst := filepath.Join(mount, clean)
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", filepath.Dir(dst), err)
		}
		if err := os.WriteFile(dst, content, 0o644); err != nil {
			return fmt.Errorf("staging %s: %w", rel, err)
		}
	}
	return nil
}
