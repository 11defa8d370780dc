/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package sources

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// FilesystemStore serves source files from a local root directory.
type FilesystemStore struct {
	rootDir string
	logger  zerolog.Logger
}

// NewFilesystemStore creates a filesystem-backed source store.
func NewFilesystemStore(rootDir string, logger zerolog.Logger) *FilesystemStore {
	return &FilesystemStore{
		rootDir: rootDir,
		logger:  logger.With().Str("component", "sources_fs").Logger(),
	}
}

// ReadFile returns the contents of a file under the root directory.
func (s *FilesystemStore) ReadFile(ctx context.Context, path string) ([]byte, error) {
	full := filepath.Join(s.rootDir, path)
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("read source file %s: %w", path, err)
	}
	return data, nil
}

// List returns the regular files directly under dir, relative to the root.
func (s *FilesystemStore) List(ctx context.Context, dir string) ([]string, error) {
	full := filepath.Join(s.rootDir, dir)
	entries, err := os.ReadDir(full)
	if err != nil {
		return nil, fmt.Errorf("list source dir %s: %w", dir, err)
	}

	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	s.logger.Debug().Str("dir", dir).Int("files", len(out)).Msg("listed source directory")
	return out, nil
}

// CheckAccess verifies the root directory exists and is a directory.
func (s *FilesystemStore) CheckAccess(ctx context.Context) error {
	info, err := os.Stat(s.rootDir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("source root does not exist: %s", s.rootDir)
		}
		return fmt.Errorf("cannot access source root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("source root is not a directory: %s", s.rootDir)
	}
	return nil
}
