/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package audio

import "context"

// Member is a voice channel occupant as reported by the chat platform.
type Member struct {
	ID       string
	Bot      bool
	Deaf     bool // server-deafened
	SelfDeaf bool
}

// Channel is a voice channel descriptor.
type Channel struct {
	ID   string
	Name string
}

// Gateway is the chat-platform collaborator: listener roster queries and
// voice channel control. Implemented outside this module by the bot layer.
type Gateway interface {
	// Members returns the current occupants of a voice channel.
	Members(ctx context.Context, channelID string) ([]Member, error)

	// ChannelByID resolves a single channel. Implementations may serve this
	// from cache; callers fall back to Channels on a miss.
	ChannelByID(ctx context.Context, guildID, channelID string) (Channel, error)

	// Channels fetches the full channel list for a guild.
	Channels(ctx context.Context, guildID string) ([]Channel, error)

	// JoinChannel moves the bot's voice session into the channel.
	JoinChannel(ctx context.Context, guildID, channelID string) error

	// LeaveChannel disconnects the bot's voice session.
	LeaveChannel(ctx context.Context, guildID string) error
}

// NopGateway is the standalone-server fallback: empty rosters, no-op voice
// control. Deployments embed the module behind a real bot gateway.
type NopGateway struct{}

func (NopGateway) Members(ctx context.Context, channelID string) ([]Member, error) {
	return nil, nil
}

func (NopGateway) ChannelByID(ctx context.Context, guildID, channelID string) (Channel, error) {
	return Channel{ID: channelID}, nil
}

func (NopGateway) Channels(ctx context.Context, guildID string) ([]Channel, error) {
	return nil, nil
}

func (NopGateway) JoinChannel(ctx context.Context, guildID, channelID string) error { return nil }

func (NopGateway) LeaveChannel(ctx context.Context, guildID string) error { return nil }
