/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package engine runs the per-tick playback loop and exposes the listener
// facing operations: requests, search, queue inspection, vote skips.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/friendsincode/skald_radio/internal/audio"
	"github.com/friendsincode/skald_radio/internal/clock"
	"github.com/friendsincode/skald_radio/internal/events"
	"github.com/friendsincode/skald_radio/internal/jingle"
	"github.com/friendsincode/skald_radio/internal/models"
	"github.com/friendsincode/skald_radio/internal/playlist"
	"github.com/friendsincode/skald_radio/internal/scheduler"
	"github.com/friendsincode/skald_radio/internal/selector"
	"github.com/friendsincode/skald_radio/internal/stats"
	"github.com/friendsincode/skald_radio/internal/telemetry"
	"github.com/friendsincode/skald_radio/internal/votes"
	"github.com/friendsincode/skald_radio/internal/watchdog"
	"github.com/rs/zerolog"
)

// Request rejection reasons.
var (
	ErrNoPlayer   = errors.New("no active player for guild")
	ErrNoMatches  = errors.New("no matches for query")
	ErrLoadFailed = errors.New("track failed to load")
	ErrTooLong    = errors.New("track exceeds the request duration limit")
	ErrQueueLimit = errors.New("request queue limit reached")
	ErrNoRequest  = errors.New("no request to remove")
)

const queuePageSize = 10

// Config tunes the engine loop and the request limits.
type Config struct {
	TickInterval       time.Duration
	OwnerID            string
	UserQueueLimit     int
	MaxRequestDuration time.Duration
	DefaultJingleDir   string
}

// Deps are the engine's collaborators.
type Deps struct {
	Manager   *audio.Manager
	Gateway   audio.Gateway
	Search    audio.SearchClient
	Scheduler *scheduler.Service
	Pools     *playlist.Pools
	Loader    *playlist.Loader
	Selector  *selector.Selector
	Jingles   *jingle.Injector
	Votes     *votes.Arbiter
	Watchdog  *watchdog.Watchdog
	Stats     *stats.Store
	Bus       events.Broker
	Clock     clock.Clock
}

// Engine keeps every player playing. All playback decisions happen on the
// tick goroutine; event callbacks only adjust state and poke the next tick.
type Engine struct {
	cfg    Config
	d      Deps
	logger zerolog.Logger

	poke chan struct{}
}

// New creates the playback engine.
func New(cfg Config, d Deps, logger zerolog.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		d:      d,
		logger: logger.With().Str("component", "engine").Logger(),
		poke:   make(chan struct{}, 1),
	}
}

// Run drives the playback loop until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	trackEnd := e.d.Bus.Subscribe(events.EventTrackEnd)
	trackStart := e.d.Bus.Subscribe(events.EventTrackStart)
	trackStuck := e.d.Bus.Subscribe(events.EventTrackStuck)
	queueEnd := e.d.Bus.Subscribe(events.EventQueueEnd)
	nodeDown := e.d.Bus.Subscribe(events.EventNodeDisconnected)
	defer e.d.Bus.Unsubscribe(events.EventTrackEnd, trackEnd)
	defer e.d.Bus.Unsubscribe(events.EventTrackStart, trackStart)
	defer e.d.Bus.Unsubscribe(events.EventTrackStuck, trackStuck)
	defer e.d.Bus.Unsubscribe(events.EventQueueEnd, queueEnd)
	defer e.d.Bus.Unsubscribe(events.EventNodeDisconnected, nodeDown)

	e.logger.Info().Dur("tick", e.cfg.TickInterval).Msg("engine started")

	for {
		select {
		case <-ctx.Done():
			e.logger.Info().Msg("engine stopped")
			return ctx.Err()

		case <-ticker.C:
			e.tick(ctx)

		case <-e.poke:
			e.tick(ctx)

		case payload, ok := <-trackEnd:
			if ok {
				e.onTrackEnd(ctx, payload)
			}

		case payload, ok := <-trackStart:
			if ok {
				e.onTrackStart(ctx, payload)
			}

		case payload, ok := <-trackStuck:
			if ok {
				e.onTrackStuck(ctx, payload)
			}

		case _, ok := <-queueEnd:
			if ok {
				e.wake()
			}

		case payload, ok := <-nodeDown:
			if ok {
				e.logger.Error().Interface("payload", payload).Msg("audio node disconnected")
			}
		}
	}
}

// wake schedules an immediate tick without blocking.
func (e *Engine) wake() {
	select {
	case e.poke <- struct{}{}:
	default:
	}
}

// tick is one self-healing pass: refresh the schedule, keep the pools warm,
// keep every player playing.
func (e *Engine) tick(ctx context.Context) {
	telemetry.EngineTicksTotal.Inc()

	now := e.d.Clock.Now()
	transition := e.d.Scheduler.Refresh(now)
	if transition.Ended != nil {
		// The programme pool belongs to the show that just ended.
		e.d.Pools.Clear(playlist.TierProgramme)
	}

	// The load source follows the schedule: a show fills only its own pool,
	// the tier playlists are warmed only outside programme hours.
	snap := e.d.Scheduler.Snapshot()
	if snap.Active != nil {
		e.d.Loader.EnsureProgrammePool(ctx, snap.Active)
	} else {
		e.d.Loader.EnsureTierPools(ctx)
	}

	for _, player := range e.d.Manager.Players() {
		e.d.Watchdog.Check(ctx, player)

		if !player.Connected() {
			continue
		}
		if player.Current() != nil || player.QueueLen() > 0 {
			continue
		}

		track, ok := e.d.Selector.Pick(snap.Active != nil)
		if !ok {
			continue
		}
		track.Origin = audio.OriginPool

		player.Add(track)
		if err := player.Play(ctx); err != nil {
			e.logger.Error().Err(err).Str("guild_id", player.GuildID()).Msg("auto-play failed")
			continue
		}
	}
}

// onTrackEnd runs jingle bookkeeping for natural ends and pokes the loop so
// the next track starts without waiting out the tick.
func (e *Engine) onTrackEnd(ctx context.Context, payload events.Payload) {
	guildID, _ := payload["guild_id"].(string)
	reason, _ := payload["reason"].(string)

	player := e.d.Manager.Get(guildID)
	if player == nil {
		return
	}

	if reason == "finished" || reason == "FINISHED" {
		e.d.Jingles.OnTrackEnd(ctx, player, e.jingleDir())
	}

	if player.QueueLen() > 0 {
		if err := player.Play(ctx); err != nil {
			e.logger.Error().Err(err).Str("guild_id", guildID).Msg("advance failed")
		}
	}
	e.wake()
}

// onTrackStart records history and republishes a now-playing snapshot.
func (e *Engine) onTrackStart(ctx context.Context, payload events.Payload) {
	guildID, _ := payload["guild_id"].(string)

	player := e.d.Manager.Get(guildID)
	if player == nil {
		return
	}
	current := player.Current()
	if current == nil {
		return
	}

	origin := current.Origin
	if origin == "" {
		origin = audio.OriginPool
	}
	telemetry.TracksStartedTotal.WithLabelValues(origin).Inc()

	programme := ""
	if snap := e.d.Scheduler.Snapshot(); snap.Active != nil {
		programme = snap.Active.Title
	}

	if err := e.d.Stats.RecordPlay(ctx, models.PlayHistory{
		GuildID:   guildID,
		Title:     current.Title,
		Author:    current.Author,
		URI:       current.URI,
		Requester: current.Requester,
		Programme: programme,
		Jingle:    origin == audio.OriginJingle,
		StartedAt: e.d.Clock.Now(),
	}); err != nil {
		e.logger.Warn().Err(err).Msg("failed to record play history")
	}

	e.d.Bus.Publish(events.EventNowPlaying, events.Payload{
		"guild_id":  guildID,
		"title":     current.Title,
		"author":    current.Author,
		"uri":       current.URI,
		"duration":  current.Duration.Milliseconds(),
		"stream":    current.IsStream,
		"requester": current.Requester,
		"programme": programme,
	})
}

// onTrackStuck abandons the stuck track.
func (e *Engine) onTrackStuck(ctx context.Context, payload events.Payload) {
	guildID, _ := payload["guild_id"].(string)

	player := e.d.Manager.Get(guildID)
	if player == nil {
		return
	}

	e.logger.Warn().Str("guild_id", guildID).Msg("track stuck, skipping")
	if err := player.Skip(ctx); err != nil {
		e.logger.Error().Err(err).Str("guild_id", guildID).Msg("stuck-track skip failed")
		return
	}
	telemetry.SkipsTotal.WithLabelValues("stuck").Inc()
}

func (e *Engine) jingleDir() string {
	if snap := e.d.Scheduler.Snapshot(); snap.Active != nil && snap.Active.JingleDir != "" {
		return snap.Active.JingleDir
	}
	return e.cfg.DefaultJingleDir
}

// Join binds a player to a voice channel and connects it.
func (e *Engine) Join(ctx context.Context, guildID, channelID string) error {
	player := e.d.Manager.GetOrCreate(guildID)
	player.SetBoundChannel(channelID)

	if err := e.d.Gateway.JoinChannel(ctx, guildID, channelID); err != nil {
		return fmt.Errorf("join channel: %w", err)
	}
	e.wake()
	return nil
}

// Leave disconnects and discards a player.
func (e *Engine) Leave(ctx context.Context, guildID string) error {
	player := e.d.Manager.Get(guildID)
	if player == nil {
		return ErrNoPlayer
	}

	if err := player.Stop(ctx); err != nil {
		e.logger.Warn().Err(err).Str("guild_id", guildID).Msg("stop before leave failed")
	}
	player.ClearQueue()

	if err := e.d.Gateway.LeaveChannel(ctx, guildID); err != nil {
		return fmt.Errorf("leave channel: %w", err)
	}
	e.d.Manager.Remove(guildID)
	return nil
}

// Request resolves a query and queues the result for a listener. Playlist
// links enqueue every contained track; everything else enqueues the first
// match. The owner bypasses the queue depth and duration limits.
func (e *Engine) Request(ctx context.Context, guildID, userID, query string) (audio.Track, error) {
	player := e.d.Manager.Get(guildID)
	if player == nil {
		return audio.Track{}, ErrNoPlayer
	}

	owner := userID == e.cfg.OwnerID
	if !owner && player.CountQueuedBy(userID) >= e.cfg.UserQueueLimit {
		return audio.Track{}, ErrQueueLimit
	}

	result, err := e.d.Search.Resolve(ctx, query)
	if err != nil {
		return audio.Track{}, fmt.Errorf("resolve request: %w", err)
	}

	switch result.Type {
	case audio.LoadTypeNone:
		return audio.Track{}, ErrNoMatches
	case audio.LoadTypeFailed:
		return audio.Track{}, ErrLoadFailed
	}
	if len(result.Tracks) == 0 {
		return audio.Track{}, ErrNoMatches
	}

	var queued []audio.Track
	if result.Type == audio.LoadTypePlaylist {
		queued = result.Tracks
	} else {
		queued = result.Tracks[:1]
	}

	accepted := 0
	var first audio.Track
	for _, track := range queued {
		if !owner && e.tooLong(track) {
			continue
		}
		track.Requester = userID
		track.Origin = audio.OriginRequest
		player.Add(track)
		if accepted == 0 {
			first = track
		}
		accepted++
	}

	if accepted == 0 {
		return audio.Track{}, ErrTooLong
	}

	if err := e.d.Stats.AddSongRequests(ctx, userID, 1); err != nil {
		e.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to count request")
	}

	e.logger.Info().
		Str("guild_id", guildID).
		Str("user_id", userID).
		Str("title", first.Title).
		Int("tracks", accepted).
		Msg("request queued")

	e.wake()
	return first, nil
}

func (e *Engine) tooLong(track audio.Track) bool {
	if track.IsStream {
		return true
	}
	return e.cfg.MaxRequestDuration > 0 && track.Duration > e.cfg.MaxRequestDuration
}

// RemoveLastRequest withdraws the caller's most recent queued request.
func (e *Engine) RemoveLastRequest(ctx context.Context, guildID, userID string) (audio.Track, error) {
	player := e.d.Manager.Get(guildID)
	if player == nil {
		return audio.Track{}, ErrNoPlayer
	}

	removed, ok := player.RemoveLastBy(userID)
	if !ok {
		return audio.Track{}, ErrNoRequest
	}

	if err := e.d.Stats.AddSongRequests(ctx, userID, -1); err != nil {
		e.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to uncount request")
	}
	return removed, nil
}

// Find returns up to ten search results for a query.
func (e *Engine) Find(ctx context.Context, query string) ([]audio.Track, error) {
	result, err := e.d.Search.Resolve(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	if result.Empty() {
		return nil, ErrNoMatches
	}

	tracks := result.Tracks
	if len(tracks) > 10 {
		tracks = tracks[:10]
	}
	return tracks, nil
}

// NowPlaying returns the current track of a player, nil when idle.
func (e *Engine) NowPlaying(guildID string) *audio.Track {
	player := e.d.Manager.Get(guildID)
	if player == nil {
		return nil
	}
	return player.Current()
}

// QueuePage returns one page of the queue plus the page count.
func (e *Engine) QueuePage(guildID string, page int) ([]audio.Track, int) {
	player := e.d.Manager.Get(guildID)
	if player == nil {
		return nil, 0
	}

	queue := player.Queue()
	pages := (len(queue) + queuePageSize - 1) / queuePageSize
	if page < 1 || page > pages {
		return nil, pages
	}

	start := (page - 1) * queuePageSize
	end := start + queuePageSize
	if end > len(queue) {
		end = len(queue)
	}
	return queue[start:end], pages
}

// VoteSkip runs the vote arbiter for a listener.
func (e *Engine) VoteSkip(ctx context.Context, guildID, userID string) (votes.Outcome, error) {
	player := e.d.Manager.Get(guildID)
	if player == nil {
		return votes.Outcome{}, ErrNoPlayer
	}
	return e.d.Votes.Vote(ctx, player, userID)
}

// ReloadPlaylists clears every pool and starts a fresh load from whichever
// source the schedule currently selects.
func (e *Engine) ReloadPlaylists(ctx context.Context) {
	e.d.Pools.ClearAll()
	if snap := e.d.Scheduler.Snapshot(); snap.Active != nil {
		e.d.Loader.EnsureProgrammePool(ctx, snap.Active)
	} else {
		e.d.Loader.EnsureTierPools(ctx)
	}
	e.logger.Info().Msg("playlists reload requested")
}
