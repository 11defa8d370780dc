/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package jingle injects station jingles between tracks at random intervals.
package jingle

import (
	"context"
	"math/rand"

	"github.com/friendsincode/skald_radio/internal/audio"
	"github.com/friendsincode/skald_radio/internal/events"
	"github.com/friendsincode/skald_radio/internal/sources"
	"github.com/friendsincode/skald_radio/internal/telemetry"
	"github.com/rs/zerolog"
)

// Injector owns the per-player jingle countdown. A player starts at -1 so
// the very first track end injects a jingle; afterwards the countdown resets
// to a random value in [MinInterval, MaxInterval].
type Injector struct {
	store  sources.Store
	search audio.SearchClient
	bus    events.Broker

	minInterval int
	maxInterval int
	logger      zerolog.Logger
}

// New creates a jingle injector.
func New(store sources.Store, search audio.SearchClient, bus events.Broker, minInterval, maxInterval int, logger zerolog.Logger) *Injector {
	return &Injector{
		store:       store,
		search:      search,
		bus:         bus,
		minInterval: minInterval,
		maxInterval: maxInterval,
		logger:      logger.With().Str("component", "jingle").Logger(),
	}
}

// OnTrackEnd advances the countdown for a natural track end. When the
// countdown is spent, a random jingle from dir is resolved and pushed to the
// front of the queue. The countdown resets even when resolution fails, a
// broken jingle directory must not stall the cadence. Returns true when a
// jingle was queued.
func (j *Injector) OnTrackEnd(ctx context.Context, player *audio.PlayerState, dir string) bool {
	countdown := player.JingleCountdown()
	if countdown > 1 {
		player.SetJingleCountdown(countdown - 1)
		return false
	}

	player.SetJingleCountdown(j.nextInterval())

	if dir == "" {
		return false
	}

	track, ok := j.pick(ctx, dir)
	if !ok {
		return false
	}

	track.Origin = audio.OriginJingle
	player.AddFront(track)
	telemetry.JinglesInjectedTotal.Inc()
	j.bus.Publish(events.EventJingleInjected, events.Payload{
		"guild_id": player.GuildID(),
		"title":    track.Title,
	})
	j.logger.Debug().Str("guild_id", player.GuildID()).Str("title", track.Title).Msg("jingle queued")
	return true
}

func (j *Injector) nextInterval() int {
	span := j.maxInterval - j.minInterval
	if span <= 0 {
		return j.minInterval
	}
	return j.minInterval + rand.Intn(span+1)
}

// pick resolves one random playable file from the jingle directory.
func (j *Injector) pick(ctx context.Context, dir string) (audio.Track, bool) {
	files, err := sources.Jingles(ctx, j.store, dir)
	if err != nil || len(files) == 0 {
		j.logger.Warn().Err(err).Str("dir", dir).Msg("no jingles available")
		return audio.Track{}, false
	}

	file := files[rand.Intn(len(files))]
	result, err := j.search.Resolve(ctx, file)
	if err != nil || result.Empty() {
		j.logger.Warn().Err(err).Str("file", file).Msg("jingle failed to resolve")
		return audio.Track{}, false
	}
	return result.Tracks[0], true
}
