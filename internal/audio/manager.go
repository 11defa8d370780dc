/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package audio

import (
	"sort"
	"sync"
)

// Manager owns the per-guild player records.
type Manager struct {
	mu        sync.RWMutex
	players   map[string]*PlayerState
	transport Transport
}

// NewManager creates a player manager backed by the given transport.
func NewManager(transport Transport) *Manager {
	return &Manager{
		players:   make(map[string]*PlayerState),
		transport: transport,
	}
}

// GetOrCreate returns the player for a guild, creating it on first use.
func (m *Manager) GetOrCreate(guildID string) *PlayerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.players[guildID]; ok {
		return p
	}
	p := newPlayerState(guildID, m.transport)
	m.players[guildID] = p
	return p
}

// Get returns the player for a guild, or nil.
func (m *Manager) Get(guildID string) *PlayerState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.players[guildID]
}

// Players returns all players in stable guild order.
func (m *Manager) Players() []*PlayerState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*PlayerState, 0, len(m.players))
	for _, p := range m.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].guildID < out[j].guildID })
	return out
}

// Remove drops a player record after an explicit disconnect.
func (m *Manager) Remove(guildID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.players, guildID)
}
