/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package jingle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/skald_radio/internal/audio"
	"github.com/friendsincode/skald_radio/internal/events"
)

type fakeTransport struct{}

func (fakeTransport) Play(ctx context.Context, guildID string, track audio.Track) error { return nil }
func (fakeTransport) Stop(ctx context.Context, guildID string) error                    { return nil }
func (fakeTransport) Pause(ctx context.Context, guildID string, paused bool) error      { return nil }
func (fakeTransport) Seek(ctx context.Context, guildID string, position time.Duration) error {
	return nil
}
func (fakeTransport) SetVolume(ctx context.Context, guildID string, pct int) error { return nil }

type fakeStore struct {
	jingles []string
	err     error
}

func (f fakeStore) ReadFile(ctx context.Context, path string) ([]byte, error) {
	return nil, errors.New("not used")
}

func (f fakeStore) List(ctx context.Context, dir string) ([]string, error) {
	return f.jingles, f.err
}

type fakeSearch struct {
	fail bool
}

func (f fakeSearch) Resolve(ctx context.Context, query string) (audio.LoadResult, error) {
	if f.fail {
		return audio.LoadResult{Type: audio.LoadTypeFailed}, nil
	}
	return audio.LoadResult{
		Type:   audio.LoadTypeTrack,
		Tracks: []audio.Track{{Title: query, Encoded: query, Duration: 20 * time.Second}},
	}, nil
}

func newTestPlayer() *audio.PlayerState {
	return audio.NewManager(fakeTransport{}).GetOrCreate("guild-1")
}

func TestFirstTrackEndInjectsJingle(t *testing.T) {
	bus := events.NewBus()
	injected := bus.Subscribe(events.EventJingleInjected)
	inj := New(fakeStore{jingles: []string{"jingles/station-id.mp3"}}, fakeSearch{}, bus, 2, 3, zerolog.Nop())
	player := newTestPlayer()

	if player.JingleCountdown() != -1 {
		t.Fatalf("fresh player countdown = %d, want -1", player.JingleCountdown())
	}

	if !inj.OnTrackEnd(context.Background(), player, "jingles") {
		t.Fatal("first track end should inject a jingle")
	}

	queue := player.Queue()
	if len(queue) != 1 || queue[0].Origin != audio.OriginJingle {
		t.Fatalf("unexpected queue after injection: %+v", queue)
	}
	if cd := player.JingleCountdown(); cd < 2 || cd > 3 {
		t.Fatalf("countdown reset out of bounds: %d", cd)
	}

	select {
	case payload := <-injected:
		if payload["guild_id"] != "guild-1" {
			t.Fatalf("unexpected event payload: %v", payload)
		}
	default:
		t.Fatal("expected jingle injected event")
	}
}

func TestCountdownDecrementsBetweenJingles(t *testing.T) {
	inj := New(fakeStore{jingles: []string{"jingles/a.mp3"}}, fakeSearch{}, events.NewBus(), 2, 3, zerolog.Nop())
	player := newTestPlayer()
	player.SetJingleCountdown(3)

	if inj.OnTrackEnd(context.Background(), player, "jingles") {
		t.Fatal("countdown 3 should not inject")
	}
	if player.JingleCountdown() != 2 {
		t.Fatalf("countdown = %d, want 2", player.JingleCountdown())
	}
	if inj.OnTrackEnd(context.Background(), player, "jingles") {
		t.Fatal("countdown 2 should not inject")
	}

	// Countdown 1 is spent, the next end injects.
	if !inj.OnTrackEnd(context.Background(), player, "jingles") {
		t.Fatal("spent countdown should inject")
	}
}

func TestCountdownResetsEvenOnFailure(t *testing.T) {
	tests := []struct {
		name   string
		store  fakeStore
		search fakeSearch
		dir    string
	}{
		{name: "empty jingle dir", store: fakeStore{}, dir: "jingles"},
		{name: "list error", store: fakeStore{err: errors.New("bucket down")}, dir: "jingles"},
		{name: "resolve failure", store: fakeStore{jingles: []string{"a.mp3"}}, search: fakeSearch{fail: true}, dir: "jingles"},
		{name: "no jingle dir configured", store: fakeStore{jingles: []string{"a.mp3"}}, dir: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inj := New(tt.store, tt.search, events.NewBus(), 2, 3, zerolog.Nop())
			player := newTestPlayer()

			if inj.OnTrackEnd(context.Background(), player, tt.dir) {
				t.Fatal("failed injection must report false")
			}
			// A broken jingle source must not stall the cadence.
			if cd := player.JingleCountdown(); cd < 2 || cd > 3 {
				t.Fatalf("countdown not reset on failure: %d", cd)
			}
			if player.QueueLen() != 0 {
				t.Fatal("nothing should be queued on failure")
			}
		})
	}
}

func TestFixedIntervalBounds(t *testing.T) {
	inj := New(fakeStore{jingles: []string{"a.mp3"}}, fakeSearch{}, events.NewBus(), 4, 4, zerolog.Nop())
	player := newTestPlayer()

	inj.OnTrackEnd(context.Background(), player, "jingles")
	if player.JingleCountdown() != 4 {
		t.Fatalf("equal bounds must reset to exactly 4, got %d", player.JingleCountdown())
	}
}
