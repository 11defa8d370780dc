/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package sources reads programme source material: playlist seed files and
// jingle directories, from local disk or an S3-compatible bucket.
package sources

import (
	"bufio"
	"bytes"
	"context"
	"strings"
)

// Store fetches playlist files and lists jingle directories.
type Store interface {
	// ReadFile returns the raw contents of a source file.
	ReadFile(ctx context.Context, path string) ([]byte, error)

	// List returns the file paths directly under dir.
	List(ctx context.Context, dir string) ([]string, error)
}

// Playlist reads and parses a playlist seed file.
func Playlist(ctx context.Context, s Store, path string) ([]string, error) {
	data, err := s.ReadFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return ParseLines(data), nil
}

// Jingles lists the playable files of a jingle directory.
func Jingles(ctx context.Context, s Store, dir string) ([]string, error) {
	return s.List(ctx, dir)
}

// ParseLines splits a playlist file into entries. Blank lines and lines
// starting with '#' are skipped.
func ParseLines(data []byte) []string {
	var out []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}
