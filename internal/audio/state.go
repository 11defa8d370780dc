/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package audio

import (
	"context"
	"sync"
	"time"
)

// PlayerState is the typed per-player record for one voice session: connection
// status, current track, FIFO queue, jingle countdown, vote set, and the bound
// voice channel. Connection and position fields are written by the backend
// adapter; everything else is mutated on the owning player's tick or its own
// event callbacks.
type PlayerState struct {
	guildID   string
	transport Transport

	mu              sync.Mutex
	connected       bool
	playing         bool
	paused          bool
	volume          int
	position        time.Duration
	current         *Track
	queue           []Track
	jingleCountdown int
	boundChannel    string
	skipVotes       map[string]struct{}
}

func newPlayerState(guildID string, transport Transport) *PlayerState {
	return &PlayerState{
		guildID:   guildID,
		transport: transport,
		volume:    100,
		// -1 means "inject a jingle on the very first track end"
		jingleCountdown: -1,
		skipVotes:       make(map[string]struct{}),
	}
}

// GuildID returns the owning guild/session id.
func (p *PlayerState) GuildID() string { return p.guildID }

// Connected reports whether the voice session is up.
func (p *PlayerState) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Playing reports whether a track is actively being played.
func (p *PlayerState) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// Paused reports whether playback is paused.
func (p *PlayerState) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// Position returns the playback position within the current track.
func (p *PlayerState) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position
}

// Current returns a copy of the currently playing track, or nil.
func (p *PlayerState) Current() *Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil
	}
	cur := *p.current
	return &cur
}

// Queue returns a snapshot of the FIFO play queue.
func (p *PlayerState) Queue() []Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Track, len(p.queue))
	copy(out, p.queue)
	return out
}

// QueueLen returns the number of queued tracks.
func (p *PlayerState) QueueLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Add appends a track to the queue.
func (p *PlayerState) Add(track Track) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue = append(p.queue, track)
}

// AddFront inserts a track at the head of the queue so it plays next.
func (p *PlayerState) AddFront(track Track) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue = append([]Track{track}, p.queue...)
}

// CountQueuedBy returns how many queued tracks were requested by userID.
func (p *PlayerState) CountQueuedBy(userID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, t := range p.queue {
		if t.Requester == userID {
			n++
		}
	}
	return n
}

// RemoveLastBy removes the most recently queued track requested by userID.
func (p *PlayerState) RemoveLastBy(userID string) (Track, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.queue) - 1; i >= 0; i-- {
		if p.queue[i].Requester == userID {
			removed := p.queue[i]
			p.queue = append(p.queue[:i], p.queue[i+1:]...)
			return removed, true
		}
	}
	return Track{}, false
}

// ClearQueue drops all queued tracks.
func (p *PlayerState) ClearQueue() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue = nil
}

// Play resumes paused playback, restarts the current track, or starts the
// next queued track. A no-op when nothing is available to play.
func (p *PlayerState) Play(ctx context.Context) error {
	p.mu.Lock()
	if p.current != nil {
		if p.paused {
			p.paused = false
			p.mu.Unlock()
			return p.transport.Pause(ctx, p.guildID, false)
		}
		if p.playing {
			p.mu.Unlock()
			return nil
		}
		track := *p.current
		p.playing = true
		p.mu.Unlock()
		return p.transport.Play(ctx, p.guildID, track)
	}

	if len(p.queue) == 0 {
		p.mu.Unlock()
		return nil
	}

	next := p.queue[0]
	p.queue = p.queue[1:]
	p.current = &next
	p.playing = true
	p.paused = false
	p.mu.Unlock()
	return p.transport.Play(ctx, p.guildID, next)
}

// Stop halts playback and clears the current track.
func (p *PlayerState) Stop(ctx context.Context) error {
	p.mu.Lock()
	p.current = nil
	p.playing = false
	p.paused = false
	p.mu.Unlock()
	return p.transport.Stop(ctx, p.guildID)
}

// Skip advances past the current track: the next queued track starts, or
// playback stops when the queue is empty.
func (p *PlayerState) Skip(ctx context.Context) error {
	p.mu.Lock()
	if len(p.queue) == 0 {
		p.current = nil
		p.playing = false
		p.mu.Unlock()
		return p.transport.Stop(ctx, p.guildID)
	}
	next := p.queue[0]
	p.queue = p.queue[1:]
	p.current = &next
	p.playing = true
	p.paused = false
	p.mu.Unlock()
	return p.transport.Play(ctx, p.guildID, next)
}

// Pause toggles the paused flag on the backend.
func (p *PlayerState) Pause(ctx context.Context, paused bool) error {
	p.mu.Lock()
	p.paused = paused
	p.mu.Unlock()
	return p.transport.Pause(ctx, p.guildID, paused)
}

// Seek moves the playback position within the current track.
func (p *PlayerState) Seek(ctx context.Context, position time.Duration) error {
	return p.transport.Seek(ctx, p.guildID, position)
}

// SetVolume adjusts playback volume in percent.
func (p *PlayerState) SetVolume(ctx context.Context, pct int) error {
	p.mu.Lock()
	p.volume = pct
	p.mu.Unlock()
	return p.transport.SetVolume(ctx, p.guildID, pct)
}

// Volume returns the last requested volume in percent.
func (p *PlayerState) Volume() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// HandleTrackEnd records a natural track end: the current track and the
// skip vote set are cleared.
func (p *PlayerState) HandleTrackEnd() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = nil
	p.playing = false
	p.position = 0
	p.skipVotes = make(map[string]struct{})
}

// JingleCountdown returns the remaining track-end events before the next
// jingle injection.
func (p *PlayerState) JingleCountdown() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.jingleCountdown
}

// SetJingleCountdown stores the jingle countdown.
func (p *PlayerState) SetJingleCountdown(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.jingleCountdown = n
}

// BoundChannel returns the voice channel this player should live in.
func (p *PlayerState) BoundChannel() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.boundChannel
}

// SetBoundChannel records the voice channel for reconnects.
func (p *PlayerState) SetBoundChannel(channelID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.boundChannel = channelID
}

// AddSkipVote records a distinct vote and returns the vote count.
func (p *PlayerState) AddSkipVote(userID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.skipVotes[userID] = struct{}{}
	return len(p.skipVotes)
}

// SkipVotes returns the current distinct vote count.
func (p *PlayerState) SkipVotes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.skipVotes)
}

// ClearSkipVotes resets the vote set.
func (p *PlayerState) ClearSkipVotes() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.skipVotes = make(map[string]struct{})
}

// SetConnected is written by the backend adapter on voice state changes.
func (p *PlayerState) SetConnected(connected bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = connected
	if !connected {
		p.playing = false
	}
}

// ApplyPlayerUpdate ingests a periodic backend state frame.
func (p *PlayerState) ApplyPlayerUpdate(connected bool, position time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = connected
	p.position = position
}
