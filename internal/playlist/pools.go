/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package playlist maintains the auto-queue track pools and their paced
// background loading.
package playlist

import (
	"sync"
	"sync/atomic"

	"github.com/friendsincode/skald_radio/internal/audio"
)

// Tier identifies one of the fallback pools or the programme pool.
type Tier string

const (
	TierHigh      Tier = "high"
	TierMedium    Tier = "medium"
	TierLow       Tier = "low"
	TierProgramme Tier = "programme"
)

// Pools holds the selectable track pools. Each pool carries a generation
// counter, bumped on every clear, so stale async loads can be discarded.
type Pools struct {
	mu             sync.RWMutex
	tracks         map[Tier][]audio.Track
	gen            map[Tier]uint64
	programmeTitle string

	loading atomic.Bool
}

// NewPools creates empty pools.
func NewPools() *Pools {
	return &Pools{
		tracks: make(map[Tier][]audio.Track),
		gen:    make(map[Tier]uint64),
	}
}

// Snapshot returns the pool contents and the generation they belong to.
func (p *Pools) Snapshot(tier Tier) ([]audio.Track, uint64) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]audio.Track, len(p.tracks[tier]))
	copy(out, p.tracks[tier])
	return out, p.gen[tier]
}

// Generation returns the current generation of a pool.
func (p *Pools) Generation(tier Tier) uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.gen[tier]
}

// Append adds tracks to a pool if its generation is still gen. Returns false
// when the pool was cleared since the load started and the tracks were
// discarded.
func (p *Pools) Append(tier Tier, gen uint64, tracks ...audio.Track) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gen[tier] != gen {
		return false
	}
	p.tracks[tier] = append(p.tracks[tier], tracks...)
	return true
}

// Clear empties a pool and bumps its generation.
func (p *Pools) Clear(tier Tier) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clearLocked(tier)
}

func (p *Pools) clearLocked(tier Tier) {
	p.tracks[tier] = nil
	p.gen[tier]++
	if tier == TierProgramme {
		p.programmeTitle = ""
	}
}

// ClearAll empties every pool.
func (p *Pools) ClearAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, tier := range []Tier{TierHigh, TierMedium, TierLow, TierProgramme} {
		p.clearLocked(tier)
	}
}

// Size returns the number of tracks in a pool.
func (p *Pools) Size(tier Tier) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.tracks[tier])
}

// TiersEmpty reports whether all three fallback tiers are empty.
func (p *Pools) TiersEmpty() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.tracks[TierHigh]) == 0 &&
		len(p.tracks[TierMedium]) == 0 &&
		len(p.tracks[TierLow]) == 0
}

// ProgrammeTitle returns which programme the programme pool was loaded for.
func (p *Pools) ProgrammeTitle() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.programmeTitle
}

// SetProgrammeTitle records the owner of the programme pool.
func (p *Pools) SetProgrammeTitle(title string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.programmeTitle = title
}

// TryBeginLoad claims the single loading slot. Returns false when a load is
// already running.
func (p *Pools) TryBeginLoad() bool {
	return p.loading.CompareAndSwap(false, true)
}

// EndLoad releases the loading slot.
func (p *Pools) EndLoad() {
	p.loading.Store(false)
}

// Loading reports whether a background load is in flight.
func (p *Pools) Loading() bool {
	return p.loading.Load()
}
