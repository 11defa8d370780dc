/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playlist

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/skald_radio/internal/audio"
	"github.com/friendsincode/skald_radio/internal/catalog"
	"github.com/friendsincode/skald_radio/internal/events"
)

type fakeStore struct {
	files map[string]string
}

func (f fakeStore) ReadFile(ctx context.Context, path string) ([]byte, error) {
	data, ok := f.files[path]
	if !ok {
		return nil, errors.New("file not found")
	}
	return []byte(data), nil
}

func (f fakeStore) List(ctx context.Context, dir string) ([]string, error) {
	return nil, nil
}

type fakeSearch struct {
	fail      map[string]bool
	playlists map[string][]audio.Track
	onResolve func(query string)
}

func (f *fakeSearch) Resolve(ctx context.Context, query string) (audio.LoadResult, error) {
	if f.onResolve != nil {
		f.onResolve(query)
	}
	if f.fail[query] {
		return audio.LoadResult{Type: audio.LoadTypeFailed}, nil
	}
	if tracks, ok := f.playlists[query]; ok {
		return audio.LoadResult{Type: audio.LoadTypePlaylist, Tracks: tracks}, nil
	}
	return audio.LoadResult{
		Type:   audio.LoadTypeTrack,
		Tracks: []audio.Track{{Title: query, Encoded: query, Duration: 3 * time.Minute}},
	}, nil
}

func newTestLoader(pools *Pools, store fakeStore, search *fakeSearch, bus events.Broker) *Loader {
	return NewLoader(pools, store, search, bus, LoaderConfig{
		HighFile:   "high.txt",
		MediumFile: "medium.txt",
		LowFile:    "low.txt",
	}, zerolog.Nop())
}

func TestLoadTierSkipsUnresolvableEntries(t *testing.T) {
	pools := NewPools()
	store := fakeStore{files: map[string]string{
		"high.txt": "track-a\ntrack-b\ntrack-c\n",
	}}
	search := &fakeSearch{fail: map[string]bool{"track-b": true}}
	loader := newTestLoader(pools, store, search, events.NewBus())

	loader.loadTierFrom(context.Background(), TierHigh, "high.txt")

	tracks, _ := pools.Snapshot(TierHigh)
	if len(tracks) != 2 {
		t.Fatalf("got %d tracks, want 2 (one dead link skipped)", len(tracks))
	}
	if tracks[0].Title != "track-a" || tracks[1].Title != "track-c" {
		t.Fatalf("unexpected pool contents: %+v", tracks)
	}
}

func TestLoadTierKeepsAllPlaylistTracks(t *testing.T) {
	pools := NewPools()
	store := fakeStore{files: map[string]string{
		"high.txt": "mix-link\nsingle\n",
	}}
	// One seed line resolving to a playlist contributes its whole track list.
	search := &fakeSearch{playlists: map[string][]audio.Track{
		"mix-link": {
			{Title: "mix-1", Encoded: "m1", Duration: 3 * time.Minute},
			{Title: "mix-2", Encoded: "m2", Duration: 3 * time.Minute},
			{Title: "mix-3", Encoded: "m3", Duration: 3 * time.Minute},
		},
	}}
	loader := newTestLoader(pools, store, search, events.NewBus())

	loader.loadTierFrom(context.Background(), TierHigh, "high.txt")

	tracks, _ := pools.Snapshot(TierHigh)
	if len(tracks) != 4 {
		t.Fatalf("got %d tracks, want 4 (3 from the playlist link plus 1 single)", len(tracks))
	}
	if tracks[0].Title != "mix-1" || tracks[2].Title != "mix-3" || tracks[3].Title != "single" {
		t.Fatalf("unexpected pool contents: %+v", tracks)
	}
}

func TestLoadTierDiscardsStaleGeneration(t *testing.T) {
	pools := NewPools()
	store := fakeStore{files: map[string]string{
		"high.txt": "track-a\ntrack-b\n",
	}}
	search := &fakeSearch{}
	// Clearing the pool mid-load invalidates the captured generation.
	search.onResolve = func(query string) {
		pools.Clear(TierHigh)
	}
	loader := newTestLoader(pools, store, search, events.NewBus())

	loader.loadTierFrom(context.Background(), TierHigh, "high.txt")

	if size := pools.Size(TierHigh); size != 0 {
		t.Fatalf("stale load landed %d tracks, want 0", size)
	}
}

func TestLoadTierMissingFile(t *testing.T) {
	pools := NewPools()
	loader := newTestLoader(pools, fakeStore{}, &fakeSearch{}, events.NewBus())

	loader.loadTierFrom(context.Background(), TierHigh, "high.txt")
	if size := pools.Size(TierHigh); size != 0 {
		t.Fatalf("missing file loaded %d tracks, want 0", size)
	}
}

func TestEnsureTierPoolsLoadsAllTiers(t *testing.T) {
	pools := NewPools()
	store := fakeStore{files: map[string]string{
		"high.txt":   "h1\nh2\n",
		"medium.txt": "m1\n",
		"low.txt":    "l1\n",
	}}
	bus := events.NewBus()
	loaded := bus.Subscribe(events.EventPlaylistsLoaded)
	loader := newTestLoader(pools, store, &fakeSearch{}, bus)

	loader.EnsureTierPools(context.Background())

	select {
	case payload := <-loaded:
		if payload["high"] != 2 || payload["medium"] != 1 || payload["low"] != 1 {
			t.Fatalf("unexpected load payload: %v", payload)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for pools to load")
	}

	if pools.Size(TierHigh) != 2 || pools.Size(TierMedium) != 1 || pools.Size(TierLow) != 1 {
		t.Fatalf("unexpected pool sizes: high=%d medium=%d low=%d",
			pools.Size(TierHigh), pools.Size(TierMedium), pools.Size(TierLow))
	}
}

func TestEnsureTierPoolsNoopWhenWarm(t *testing.T) {
	pools := NewPools()
	pools.Append(TierHigh, pools.Generation(TierHigh), audio.Track{Title: "warm"})
	loader := newTestLoader(pools, fakeStore{}, &fakeSearch{}, events.NewBus())

	loader.EnsureTierPools(context.Background())
	if pools.Loading() {
		t.Fatal("warm pools must not start a load")
	}
}

func TestEnsureProgrammePoolReloadsOnProgrammeChange(t *testing.T) {
	pools := NewPools()
	store := fakeStore{files: map[string]string{
		"night.txt": "n1\nn2\n",
		"day.txt":   "d1\n",
	}}
	loader := newTestLoader(pools, store, &fakeSearch{}, events.NewBus())

	night := &catalog.Programme{Title: "Night", Playlist: "night.txt"}
	loader.EnsureProgrammePool(context.Background(), night)
	waitForLoad(t, pools)
	if pools.Size(TierProgramme) != 2 || pools.ProgrammeTitle() != "Night" {
		t.Fatalf("unexpected programme pool: size=%d title=%q", pools.Size(TierProgramme), pools.ProgrammeTitle())
	}

	// Same programme, warm pool: nothing to do.
	loader.EnsureProgrammePool(context.Background(), night)
	if pools.Loading() {
		t.Fatal("warm programme pool must not reload")
	}

	day := &catalog.Programme{Title: "Day", Playlist: "day.txt"}
	loader.EnsureProgrammePool(context.Background(), day)
	waitForLoad(t, pools)
	if pools.Size(TierProgramme) != 1 || pools.ProgrammeTitle() != "Day" {
		t.Fatalf("programme switch did not reload: size=%d title=%q", pools.Size(TierProgramme), pools.ProgrammeTitle())
	}
}

func waitForLoad(t *testing.T, pools *Pools) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for pools.Loading() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for load to finish")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
