// Package security validates file system paths supplied on the command line.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// canonical resolves path to an absolute path with symlinks evaluated. For a
// path that does not exist yet, the nearest existing ancestor is resolved
// and the rest appended, so a symlinked parent cannot smuggle a new file
// outside its directory.
func canonical(path string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	for dir := filepath.Dir(abs); ; dir = filepath.Dir(dir) {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			rel, err := filepath.Rel(dir, abs)
			if err != nil {
				return "", err
			}
			return filepath.Join(resolved, rel), nil
		}
		if dir == filepath.Dir(dir) {
			return abs, nil
		}
	}
}

// ValidatePathWithinDirectory rejects filePath if, once cleaned and
// resolved, it lies outside safeDir.
func ValidatePathWithinDirectory(filePath, safeDir string) error {
	path, err := canonical(filePath)
	if err != nil {
		return err
	}
	dir, err := canonical(safeDir)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return fmt.Errorf("path is outside safe directory: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("path traversal detected: %s escapes %s", filePath, safeDir)
	}
	return nil
}

// ValidateExportPath accepts paths under the temp directory or the working
// directory.
func ValidateExportPath(filePath string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	for _, dir := range []string{os.TempDir(), cwd} {
		if ValidatePathWithinDirectory(filePath, dir) == nil {
			return nil
		}
	}
	return fmt.Errorf("export path %s must be within %s or %s", filePath, os.TempDir(), cwd)
}

// ValidateImportDir checks that dir exists and is a directory.
func ValidateImportDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("import directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("import path %s is not a directory", dir)
	}
	return nil
}
