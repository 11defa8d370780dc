/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package votes arbitrates community skip votes.
package votes

import (
	"context"
	"fmt"
	"math"

	"github.com/friendsincode/skald_radio/internal/audio"
	"github.com/friendsincode/skald_radio/internal/events"
	"github.com/friendsincode/skald_radio/internal/telemetry"
	"github.com/rs/zerolog"
)

// quorumDivisor sets the threshold: ceil(listeners / 2.5) votes skip the
// track. Bots and deafened members do not count as listeners.
const quorumDivisor = 2.5

// Outcome describes the result of one vote.
type Outcome struct {
	Skipped  bool
	Votes    int
	Required int
	Reason   string
}

// Arbiter counts skip votes per player. The station owner and the track's
// requester bypass voting.
type Arbiter struct {
	gateway audio.Gateway
	bus     events.Broker
	ownerID string
	logger  zerolog.Logger
}

// New creates a vote arbiter.
func New(gateway audio.Gateway, bus events.Broker, ownerID string, logger zerolog.Logger) *Arbiter {
	return &Arbiter{
		gateway: gateway,
		bus:     bus,
		ownerID: ownerID,
		logger:  logger.With().Str("component", "votes").Logger(),
	}
}

// Vote registers a skip vote and executes the skip when the quorum is met.
// Voting with nothing playing succeeds without effect.
func (a *Arbiter) Vote(ctx context.Context, player *audio.PlayerState, userID string) (Outcome, error) {
	current := player.Current()
	if current == nil {
		return Outcome{Reason: "nothing playing"}, nil
	}

	if userID == a.ownerID || (current.Requester != "" && userID == current.Requester) {
		if err := a.skip(ctx, player, current, "privileged"); err != nil {
			return Outcome{}, err
		}
		return Outcome{Skipped: true, Reason: "privileged"}, nil
	}

	required, err := a.required(ctx, player)
	if err != nil {
		return Outcome{}, err
	}

	count := player.AddSkipVote(userID)
	if count < required {
		a.logger.Debug().
			Str("guild_id", player.GuildID()).
			Int("votes", count).
			Int("required", required).
			Msg("skip vote registered")
		return Outcome{Votes: count, Required: required, Reason: "vote registered"}, nil
	}

	if err := a.skip(ctx, player, current, "vote"); err != nil {
		return Outcome{Votes: count, Required: required}, err
	}
	return Outcome{Skipped: true, Votes: count, Required: required, Reason: "quorum met"}, nil
}

// required computes the quorum from the live listener roster.
func (a *Arbiter) required(ctx context.Context, player *audio.PlayerState) (int, error) {
	channelID := player.BoundChannel()
	if channelID == "" {
		return 1, nil
	}

	members, err := a.gateway.Members(ctx, channelID)
	if err != nil {
		return 0, fmt.Errorf("fetch listeners: %w", err)
	}

	listeners := 0
	for _, m := range members {
		if m.Bot || m.Deaf || m.SelfDeaf {
			continue
		}
		listeners++
	}

	required := int(math.Ceil(float64(listeners) / quorumDivisor))
	if required < 1 {
		required = 1
	}
	return required, nil
}

func (a *Arbiter) skip(ctx context.Context, player *audio.PlayerState, current *audio.Track, reason string) error {
	player.ClearSkipVotes()
	if err := player.Skip(ctx); err != nil {
		return fmt.Errorf("skip: %w", err)
	}

	telemetry.SkipsTotal.WithLabelValues(reason).Inc()
	a.bus.Publish(events.EventTrackSkipped, events.Payload{
		"guild_id": player.GuildID(),
		"title":    current.Title,
		"reason":   reason,
	})
	a.logger.Info().
		Str("guild_id", player.GuildID()).
		Str("title", current.Title).
		Str("reason", reason).
		Msg("track skipped")
	return nil
}
