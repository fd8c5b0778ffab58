package infra

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
)

// EnsureDir expands a leading ~ and creates the directory tree.
func EnsureDir(base string, path ...string) (string, error) {
	dir, err := homedir.Expand(filepath.Join(append([]string{base}, path...)...))
	if err != nil {
		return "", fmt.Errorf("expand %q: %w", base, err)
	}
	if err = os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create %q: %w", dir, err)
	}
	return dir, nil
}
