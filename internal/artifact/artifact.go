// Package artifact writes screenshots to disk and describes them.
package artifact

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"image/png"
	"os"
	"path/filepath"

	"golang.org/x/crypto/sha3"

	"github.com/nao1215/uiprobe/internal/model"
)

// ErrEmptyImage is returned when a screenshot has no bytes.
var ErrEmptyImage = errors.New("screenshot is empty")

// Write stores data at path, creating parent directories and truncating any
// existing file, then returns a description of what was written.
// Running twice with the same path overwrites the same file.
func Write(name, path string, data []byte) (model.Artifact, error) {
	if len(data) == 0 {
		return model.Artifact{}, fmt.Errorf("%s: %w", path, ErrEmptyImage)
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return model.Artifact{}, fmt.Errorf("failed to create artifact directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return model.Artifact{}, fmt.Errorf("failed to write artifact: %w", err)
	}

	return Describe(name, path, data)
}

// Inspect reads the file at path and describes it.
func Inspect(name, path string) (model.Artifact, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path comes from configuration
	if err != nil {
		return model.Artifact{}, fmt.Errorf("failed to read artifact: %w", err)
	}
	if len(data) == 0 {
		return model.Artifact{}, fmt.Errorf("%s: %w", path, ErrEmptyImage)
	}
	return Describe(name, path, data)
}

// Describe computes the size, PNG dimensions and digest of data.
func Describe(name, path string, data []byte) (model.Artifact, error) {
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return model.Artifact{}, fmt.Errorf("%s is not a valid PNG: %w", path, err)
	}

	return model.Artifact{
		Name:   name,
		Path:   path,
		Size:   int64(len(data)),
		Width:  cfg.Width,
		Height: cfg.Height,
		Digest: Digest(data),
	}, nil
}

// Digest returns the hex SHA3-256 of data.
func Digest(data []byte) string {
	sum := sha3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Remove deletes the file at path if it exists.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
