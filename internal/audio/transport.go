/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package audio

import (
	"context"
	"time"
)

// Transport issues playback commands to the audio backend. Implementations
// are expected to be safe for concurrent use across players.
type Transport interface {
	Play(ctx context.Context, guildID string, track Track) error
	Stop(ctx context.Context, guildID string) error
	Pause(ctx context.Context, guildID string, paused bool) error
	Seek(ctx context.Context, guildID string, position time.Duration) error
	SetVolume(ctx context.Context, guildID string, pct int) error
}
