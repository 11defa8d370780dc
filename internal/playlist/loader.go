/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playlist

import (
	"context"
	"math/rand"
	"time"

	"github.com/friendsincode/skald_radio/internal/audio"
	"github.com/friendsincode/skald_radio/internal/catalog"
	"github.com/friendsincode/skald_radio/internal/events"
	"github.com/friendsincode/skald_radio/internal/sources"
	"github.com/friendsincode/skald_radio/internal/telemetry"
	"github.com/rs/zerolog"
)

// LoaderConfig names the tier seed files and paces resolution.
type LoaderConfig struct {
	HighFile   string
	MediumFile string
	LowFile    string

	// Delay between consecutive track resolutions, uniform in [Min, Max].
	DelayMin time.Duration
	DelayMax time.Duration
}

// Loader fills pools from seed files, resolving entries one by one through
// the audio backend. Loads run in the background; at most one at a time.
type Loader struct {
	pools  *Pools
	store  sources.Store
	search audio.SearchClient
	bus    events.Broker
	cfg    LoaderConfig
	logger zerolog.Logger
}

// NewLoader creates a pool loader.
func NewLoader(pools *Pools, store sources.Store, search audio.SearchClient, bus events.Broker, cfg LoaderConfig, logger zerolog.Logger) *Loader {
	return &Loader{
		pools:  pools,
		store:  store,
		search: search,
		bus:    bus,
		cfg:    cfg,
		logger: logger.With().Str("component", "playlist_loader").Logger(),
	}
}

// EnsureTierPools starts a background load of the three fallback tiers when
// they are all empty and no load is running.
func (l *Loader) EnsureTierPools(ctx context.Context) {
	if !l.pools.TiersEmpty() {
		return
	}
	if !l.pools.TryBeginLoad() {
		return
	}

	go func() {
		defer l.pools.EndLoad()

		l.loadTier(ctx, TierHigh, l.cfg.HighFile)
		l.loadTier(ctx, TierMedium, l.cfg.MediumFile)
		l.loadTier(ctx, TierLow, l.cfg.LowFile)

		l.bus.Publish(events.EventPlaylistsLoaded, events.Payload{
			"high":   l.pools.Size(TierHigh),
			"medium": l.pools.Size(TierMedium),
			"low":    l.pools.Size(TierLow),
		})
	}()
}

// EnsureProgrammePool starts a background load of the active programme's
// playlist when the pool is empty or belongs to a different programme.
func (l *Loader) EnsureProgrammePool(ctx context.Context, prog *catalog.Programme) {
	if prog == nil {
		return
	}
	if l.pools.ProgrammeTitle() == prog.Title && l.pools.Size(TierProgramme) > 0 {
		return
	}
	if !l.pools.TryBeginLoad() {
		return
	}

	l.pools.Clear(TierProgramme)
	l.pools.SetProgrammeTitle(prog.Title)

	go func() {
		defer l.pools.EndLoad()
		l.loadTierFrom(ctx, TierProgramme, prog.Playlist)
	}()
}

func (l *Loader) loadTier(ctx context.Context, tier Tier, file string) {
	if file == "" {
		return
	}
	l.loadTierFrom(ctx, tier, file)
}

// loadTierFrom resolves every seed entry of a file into the pool. Individual
// failures are logged and skipped so one dead link cannot starve a tier.
func (l *Loader) loadTierFrom(ctx context.Context, tier Tier, file string) {
	gen := l.pools.Generation(tier)

	entries, err := sources.Playlist(ctx, l.store, file)
	if err != nil {
		l.logger.Error().Err(err).Str("file", file).Msg("failed to read playlist file")
		telemetry.PlaylistLoadsTotal.WithLabelValues(string(tier), "read_error").Inc()
		return
	}

	loaded := 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}

		result, err := l.search.Resolve(ctx, entry)
		if err != nil || result.Empty() {
			l.logger.Warn().Err(err).Str("entry", entry).Msg("skipping unresolvable playlist entry")
			continue
		}

		// A playlist-link entry contributes every track it resolved to.
		if !l.pools.Append(tier, gen, result.Tracks...) {
			// Pool was cleared mid-load, the remaining entries are stale.
			l.logger.Debug().Str("pool", string(tier)).Msg("pool generation changed, discarding load")
			telemetry.PlaylistLoadsTotal.WithLabelValues(string(tier), "stale").Inc()
			return
		}
		loaded += len(result.Tracks)

		l.pause(ctx)
	}

	l.logger.Info().Str("pool", string(tier)).Int("tracks", loaded).Msg("pool loaded")
	telemetry.PlaylistLoadsTotal.WithLabelValues(string(tier), "ok").Inc()
}

// pause sleeps a random interval between resolutions so the backend is not
// hammered during startup.
func (l *Loader) pause(ctx context.Context) {
	min, max := l.cfg.DelayMin, l.cfg.DelayMax
	if max <= min {
		max = min
	}
	delay := min
	if span := max - min; span > 0 {
		delay += time.Duration(rand.Int63n(int64(span)))
	}
	if delay <= 0 {
		return
	}

	select {
	case <-ctx.Done():
	case <-time.After(delay):
	}
}
