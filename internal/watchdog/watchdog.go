/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package watchdog self-heals player sessions: rejoin after disconnects,
// resume after stalls, advance past dead tracks.
package watchdog

import (
	"context"

	"github.com/friendsincode/skald_radio/internal/audio"
	"github.com/friendsincode/skald_radio/internal/telemetry"
	"github.com/rs/zerolog"
)

// Watchdog repairs a player's session state. Each check is independent, a
// failed repair never blocks the others.
type Watchdog struct {
	gateway audio.Gateway
	logger  zerolog.Logger
}

// New creates a playback watchdog.
func New(gateway audio.Gateway, logger zerolog.Logger) *Watchdog {
	return &Watchdog{
		gateway: gateway,
		logger:  logger.With().Str("component", "watchdog").Logger(),
	}
}

// Check inspects one player and applies any needed repairs.
func (w *Watchdog) Check(ctx context.Context, player *audio.PlayerState) {
	w.checkConnection(ctx, player)
	w.checkStalled(ctx, player)
	w.checkDeadTrack(ctx, player)
}

// checkConnection rejoins the bound voice channel after a disconnect.
func (w *Watchdog) checkConnection(ctx context.Context, player *audio.PlayerState) {
	if player.Connected() {
		return
	}
	channelID := player.BoundChannel()
	if channelID == "" {
		return
	}

	if !w.channelExists(ctx, player.GuildID(), channelID) {
		w.logger.Warn().
			Str("guild_id", player.GuildID()).
			Str("channel_id", channelID).
			Msg("bound channel no longer exists")
		return
	}

	if err := w.gateway.JoinChannel(ctx, player.GuildID(), channelID); err != nil {
		w.logger.Error().Err(err).Str("guild_id", player.GuildID()).Msg("rejoin failed")
		return
	}

	telemetry.WatchdogRepairsTotal.WithLabelValues("rejoin").Inc()
	w.logger.Info().Str("guild_id", player.GuildID()).Str("channel_id", channelID).Msg("rejoined voice channel")
}

// channelExists resolves the channel by id, falling back to the full channel
// list when the by-id lookup misses.
func (w *Watchdog) channelExists(ctx context.Context, guildID, channelID string) bool {
	if _, err := w.gateway.ChannelByID(ctx, guildID, channelID); err == nil {
		return true
	}

	channels, err := w.gateway.Channels(ctx, guildID)
	if err != nil {
		w.logger.Warn().Err(err).Str("guild_id", guildID).Msg("channel list unavailable")
		return false
	}
	for _, ch := range channels {
		if ch.ID == channelID {
			return true
		}
	}
	return false
}

// checkStalled restarts playback when the player is connected with material
// to play but neither playing nor paused.
func (w *Watchdog) checkStalled(ctx context.Context, player *audio.PlayerState) {
	if !player.Connected() || player.Playing() || player.Paused() {
		return
	}
	if player.Current() == nil && player.QueueLen() == 0 {
		return
	}

	if err := player.Play(ctx); err != nil {
		w.logger.Error().Err(err).Str("guild_id", player.GuildID()).Msg("resume failed")
		return
	}

	telemetry.WatchdogRepairsTotal.WithLabelValues("resume").Inc()
	w.logger.Info().Str("guild_id", player.GuildID()).Msg("playback resumed")
}

// checkDeadTrack repairs a desynced session where playback is reported with
// no current track. Skip starts the next queued track or stops the session
// when nothing is queued. A player that is simply idle (not playing, empty
// queue) is the engine tick's job to refill, not a repair case.
func (w *Watchdog) checkDeadTrack(ctx context.Context, player *audio.PlayerState) {
	if !player.Connected() || !player.Playing() || player.Current() != nil {
		return
	}

	if err := player.Skip(ctx); err != nil {
		w.logger.Error().Err(err).Str("guild_id", player.GuildID()).Msg("dead-track skip failed")
		return
	}

	telemetry.WatchdogRepairsTotal.WithLabelValues("skip").Inc()
	w.logger.Info().Str("guild_id", player.GuildID()).Msg("advanced past dead track")
}
