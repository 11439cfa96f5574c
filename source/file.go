package source

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CopyUpload copies an uploaded vocabulary file into the destination
// directory and returns the new path. The source file is left in place.
func CopyUpload(srcPath, destDir string) (string, error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create destination directory: %w", err)
	}

	destPath := filepath.Join(destDir, filepath.Base(srcPath))
	dest, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("create destination file: %w", err)
	}
	defer dest.Close()

	if _, err := io.Copy(dest, src); err != nil {
		return "", fmt.Errorf("copy upload: %w", err)
	}
	return destPath, nil
}
