/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Programme is an immutable descriptor of a time-scheduled content profile.
// A programme may own several weekly windows.
type Programme struct {
	Title       string     `yaml:"title"`
	Description string     `yaml:"description"`
	PlayTimes   []PlayTime `yaml:"play_times"`
	Playlist    string     `yaml:"playlist"`
	JingleDir   string     `yaml:"jingles"`
}

// Catalog is the ordered programme declaration, read once at startup and
// never mutated. When two programmes' windows overlap, the first one
// declared wins.
type Catalog struct {
	Programmes []Programme `yaml:"programmes"`
}

// Load reads and validates a YAML programme catalog.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates catalog YAML.
func Parse(data []byte) (*Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	for i, prog := range cat.Programmes {
		if prog.Title == "" {
			return nil, fmt.Errorf("programme %d: title is required", i)
		}
		if prog.Playlist == "" {
			return nil, fmt.Errorf("programme %q: playlist is required", prog.Title)
		}
		if len(prog.PlayTimes) == 0 {
			return nil, fmt.Errorf("programme %q: at least one play time is required", prog.Title)
		}
	}

	return &cat, nil
}
