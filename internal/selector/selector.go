/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package selector draws the next auto-queue track from the playlist pools.
package selector

import (
	"math/rand"
	"time"

	"github.com/friendsincode/skald_radio/internal/audio"
	"github.com/friendsincode/skald_radio/internal/playlist"
	"github.com/rs/zerolog"
)

// Tier weights: high wins 60% of draws, medium 70% of the remainder (28%
// overall), low takes the rest (12% overall).
const (
	highChance   = 0.60
	mediumChance = 0.70

	// maxDraws caps rejection sampling; past it the tick goes without a
	// track rather than spinning on a pool full of streams.
	maxDraws = 32
)

// Selector picks tracks from the pools with weighted tier sampling.
type Selector struct {
	pools       *playlist.Pools
	maxDuration time.Duration
	logger      zerolog.Logger
}

// New creates a selector. Tracks longer than maxDuration, and live streams,
// are never auto-queued.
func New(pools *playlist.Pools, maxDuration time.Duration, logger zerolog.Logger) *Selector {
	return &Selector{
		pools:       pools,
		maxDuration: maxDuration,
		logger:      logger.With().Str("component", "selector").Logger(),
	}
}

// Pick draws a playable track. During an active programme the draw is
// uniform from the programme pool and only from it; while that pool is empty
// the caller waits for the loader. Outside programme hours the weighted tier
// draw applies. Returns false when no eligible track was found within the
// draw cap.
func (s *Selector) Pick(programmeActive bool) (audio.Track, bool) {
	if programmeActive && s.pools.Size(playlist.TierProgramme) == 0 {
		// Tier tracks never play during a show.
		return audio.Track{}, false
	}

	for i := 0; i < maxDraws; i++ {
		var pool playlist.Tier
		if programmeActive {
			pool = playlist.TierProgramme
		} else {
			pool = s.drawTier()
		}

		tracks, _ := s.pools.Snapshot(pool)
		if len(tracks) == 0 {
			continue
		}

		track := tracks[rand.Intn(len(tracks))]
		if s.eligible(track) {
			return track, true
		}
	}

	s.logger.Debug().Msg("no eligible track within draw cap")
	return audio.Track{}, false
}

func (s *Selector) drawTier() playlist.Tier {
	r := rand.Float64()
	switch {
	case r < highChance:
		return playlist.TierHigh
	case rand.Float64() < mediumChance:
		return playlist.TierMedium
	default:
		return playlist.TierLow
	}
}

func (s *Selector) eligible(track audio.Track) bool {
	if track.IsStream {
		return false
	}
	if s.maxDuration > 0 && track.Duration > s.maxDuration {
		return false
	}
	return true
}
