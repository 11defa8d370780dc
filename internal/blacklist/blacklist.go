/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package blacklist holds the listener ids excluded from stats tracking.
package blacklist

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// List is a mute list of listener ids, loaded from a JSON string array.
type List struct {
	path   string
	logger zerolog.Logger

	mu    sync.RWMutex
	users map[string]struct{}
}

// Load reads the blacklist file. A missing file yields an empty list.
func Load(path string, logger zerolog.Logger) (*List, error) {
	l := &List{
		path:   path,
		logger: logger.With().Str("component", "blacklist").Logger(),
		users:  make(map[string]struct{}),
	}

	if path == "" {
		return l, nil
	}

	if err := l.Reload(); err != nil {
		if os.IsNotExist(err) {
			l.logger.Warn().Str("path", path).Msg("blacklist file not found, starting empty")
			return l, nil
		}
		return nil, err
	}
	return l, nil
}

// Reload re-reads the blacklist file, replacing the in-memory set.
func (l *List) Reload() error {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return err
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return fmt.Errorf("parse blacklist %s: %w", l.path, err)
	}

	users := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		users[id] = struct{}{}
	}

	l.mu.Lock()
	l.users = users
	l.mu.Unlock()

	l.logger.Info().Int("entries", len(users)).Msg("blacklist loaded")
	return nil
}

// Contains reports whether the listener is blacklisted.
func (l *List) Contains(userID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.users[userID]
	return ok
}

// Len returns the number of blacklisted listeners.
func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.users)
}
