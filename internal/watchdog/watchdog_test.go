/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package watchdog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/skald_radio/internal/audio"
)

type fakeTransport struct {
	played []string
	stops  int
}

func (f *fakeTransport) Play(ctx context.Context, guildID string, track audio.Track) error {
	f.played = append(f.played, track.Title)
	return nil
}
func (f *fakeTransport) Stop(ctx context.Context, guildID string) error {
	f.stops++
	return nil
}
func (f *fakeTransport) Pause(ctx context.Context, guildID string, paused bool) error { return nil }
func (f *fakeTransport) Seek(ctx context.Context, guildID string, position time.Duration) error {
	return nil
}
func (f *fakeTransport) SetVolume(ctx context.Context, guildID string, pct int) error { return nil }

type fakeGateway struct {
	audio.NopGateway
	channels  []audio.Channel
	byIDErr   error
	joined    []string
	joinErr   error
	listErr   error
	listCalls int
}

func (f *fakeGateway) ChannelByID(ctx context.Context, guildID, channelID string) (audio.Channel, error) {
	if f.byIDErr != nil {
		return audio.Channel{}, f.byIDErr
	}
	return audio.Channel{ID: channelID}, nil
}

func (f *fakeGateway) Channels(ctx context.Context, guildID string) ([]audio.Channel, error) {
	f.listCalls++
	return f.channels, f.listErr
}

func (f *fakeGateway) JoinChannel(ctx context.Context, guildID, channelID string) error {
	if f.joinErr != nil {
		return f.joinErr
	}
	f.joined = append(f.joined, channelID)
	return nil
}

func TestRejoinAfterDisconnect(t *testing.T) {
	gateway := &fakeGateway{}
	dog := New(gateway, zerolog.Nop())
	player := audio.NewManager(&fakeTransport{}).GetOrCreate("guild-1")
	player.SetBoundChannel("voice-1")

	dog.Check(context.Background(), player)

	if len(gateway.joined) != 1 || gateway.joined[0] != "voice-1" {
		t.Fatalf("expected rejoin of voice-1, got %v", gateway.joined)
	}
}

func TestNoRejoinWithoutBoundChannel(t *testing.T) {
	gateway := &fakeGateway{}
	dog := New(gateway, zerolog.Nop())
	player := audio.NewManager(&fakeTransport{}).GetOrCreate("guild-1")

	dog.Check(context.Background(), player)

	if len(gateway.joined) != 0 {
		t.Fatalf("unexpected join: %v", gateway.joined)
	}
}

func TestNoRejoinWhenChannelGone(t *testing.T) {
	gateway := &fakeGateway{
		byIDErr:  errors.New("unknown channel"),
		channels: []audio.Channel{{ID: "other"}},
	}
	dog := New(gateway, zerolog.Nop())
	player := audio.NewManager(&fakeTransport{}).GetOrCreate("guild-1")
	player.SetBoundChannel("voice-1")

	dog.Check(context.Background(), player)

	if len(gateway.joined) != 0 {
		t.Fatalf("must not join a deleted channel: %v", gateway.joined)
	}
	if gateway.listCalls != 1 {
		t.Fatalf("expected channel list fallback, calls=%d", gateway.listCalls)
	}
}

func TestRejoinViaChannelListFallback(t *testing.T) {
	gateway := &fakeGateway{
		byIDErr:  errors.New("cache miss"),
		channels: []audio.Channel{{ID: "voice-1"}},
	}
	dog := New(gateway, zerolog.Nop())
	player := audio.NewManager(&fakeTransport{}).GetOrCreate("guild-1")
	player.SetBoundChannel("voice-1")

	dog.Check(context.Background(), player)

	if len(gateway.joined) != 1 {
		t.Fatalf("fallback lookup should allow the rejoin, got %v", gateway.joined)
	}
}

func TestResumeStalledPlayer(t *testing.T) {
	transport := &fakeTransport{}
	dog := New(&fakeGateway{}, zerolog.Nop())
	player := audio.NewManager(transport).GetOrCreate("guild-1")
	player.SetConnected(true)
	player.Add(audio.Track{Title: "queued", Encoded: "x"})

	dog.Check(context.Background(), player)

	if len(transport.played) != 1 || transport.played[0] != "queued" {
		t.Fatalf("stalled player should resume the queue, played=%v", transport.played)
	}
	if !player.Playing() {
		t.Fatal("player should report playing after the repair")
	}
}

func TestHealthyPlayerUntouched(t *testing.T) {
	transport := &fakeTransport{}
	gateway := &fakeGateway{}
	dog := New(gateway, zerolog.Nop())
	player := audio.NewManager(transport).GetOrCreate("guild-1")
	player.SetConnected(true)
	player.Add(audio.Track{Title: "song", Encoded: "x"})
	if err := player.Play(context.Background()); err != nil {
		t.Fatal(err)
	}
	playsBefore := len(transport.played)

	dog.Check(context.Background(), player)

	if len(transport.played) != playsBefore {
		t.Fatalf("healthy player must not be restarted, played=%v", transport.played)
	}
	if len(gateway.joined) != 0 {
		t.Fatalf("healthy player must not rejoin, joined=%v", gateway.joined)
	}
}

func TestIdleEmptyPlayerLeftAlone(t *testing.T) {
	transport := &fakeTransport{}
	dog := New(&fakeGateway{}, zerolog.Nop())
	player := audio.NewManager(transport).GetOrCreate("guild-1")
	player.SetConnected(true)

	// Connected with nothing playing and nothing queued: refilling is the
	// playback loop's job, no repair applies.
	dog.Check(context.Background(), player)

	if len(transport.played) != 0 || transport.stops != 0 {
		t.Fatalf("idle player repaired: played=%v stops=%d", transport.played, transport.stops)
	}
}

func TestPausedPlayerNotResumed(t *testing.T) {
	transport := &fakeTransport{}
	dog := New(&fakeGateway{}, zerolog.Nop())
	player := audio.NewManager(transport).GetOrCreate("guild-1")
	player.SetConnected(true)
	player.Add(audio.Track{Title: "song", Encoded: "x"})
	if err := player.Play(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := player.Pause(context.Background(), true); err != nil {
		t.Fatal(err)
	}
	playsBefore := len(transport.played)

	dog.Check(context.Background(), player)

	if len(transport.played) != playsBefore {
		t.Fatal("an intentionally paused player must stay paused")
	}
}
