/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package stats

import (
	"context"
	"time"

	"github.com/friendsincode/skald_radio/internal/audio"
	"github.com/friendsincode/skald_radio/internal/blacklist"
	"github.com/friendsincode/skald_radio/internal/db"
	"github.com/friendsincode/skald_radio/internal/telemetry"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Aggregator credits listening minutes on a fixed interval. Every tick it
// walks the connected players and credits one interval's worth of minutes to
// each eligible listener in the bound channel. A stalled player still counts;
// being tuned in is what earns credit, not the playback state.
type Aggregator struct {
	manager   *audio.Manager
	gateway   audio.Gateway
	store     *Store
	blacklist *blacklist.List
	database  *gorm.DB
	interval  time.Duration
	logger    zerolog.Logger
}

// NewAggregator creates the stats aggregation service.
func NewAggregator(manager *audio.Manager, gateway audio.Gateway, store *Store, bl *blacklist.List, database *gorm.DB, interval time.Duration, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		manager:   manager,
		gateway:   gateway,
		store:     store,
		blacklist: bl,
		database:  database,
		interval:  interval,
		logger:    logger.With().Str("component", "stats").Logger(),
	}
}

// Run flushes listener credit until ctx is cancelled.
func (a *Aggregator) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	a.logger.Info().Dur("interval", a.interval).Msg("stats aggregator started")

	for {
		select {
		case <-ctx.Done():
			a.logger.Info().Msg("stats aggregator stopped")
			return ctx.Err()
		case <-ticker.C:
			a.tick(ctx)
		}
	}
}

func (a *Aggregator) tick(ctx context.Context) {
	start := time.Now()
	defer func() {
		telemetry.StatsFlushDuration.Observe(time.Since(start).Seconds())
	}()

	minutes := int64(a.interval / time.Minute)
	if minutes < 1 {
		minutes = 1
	}

	batch := a.collect(ctx, minutes)
	if err := a.store.AddListeningMinutes(ctx, batch); err != nil {
		a.logger.Error().Err(err).Msg("failed to flush listening minutes")
	}

	db.UpdateConnectionMetrics(a.database)
}

// collect builds the credit batch for one tick. Bots, deafened members and
// blacklisted listeners earn nothing.
func (a *Aggregator) collect(ctx context.Context, minutes int64) map[string]int64 {
	batch := make(map[string]int64)
	connected := 0

	for _, player := range a.manager.Players() {
		if !player.Connected() {
			continue
		}
		connected++

		channelID := player.BoundChannel()
		if channelID == "" {
			continue
		}

		members, err := a.gateway.Members(ctx, channelID)
		if err != nil {
			a.logger.Warn().Err(err).Str("guild_id", player.GuildID()).Msg("listener roster unavailable")
			continue
		}

		for _, m := range members {
			if m.Bot || m.Deaf || m.SelfDeaf {
				continue
			}
			if a.blacklist.Contains(m.ID) {
				continue
			}
			batch[m.ID] += minutes
		}
	}

	telemetry.PlayersConnected.Set(float64(connected))
	return batch
}
