/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package selector

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/skald_radio/internal/audio"
	"github.com/friendsincode/skald_radio/internal/playlist"
)

func fill(t *testing.T, pools *playlist.Pools, tier playlist.Tier, tracks ...audio.Track) {
	t.Helper()
	if !pools.Append(tier, pools.Generation(tier), tracks...) {
		t.Fatalf("failed to fill %s pool", tier)
	}
}

func TestPickPrefersProgrammePoolWhenActive(t *testing.T) {
	pools := playlist.NewPools()
	fill(t, pools, playlist.TierHigh, audio.Track{Title: "fallback", Duration: 3 * time.Minute})
	fill(t, pools, playlist.TierProgramme, audio.Track{Title: "show-track", Duration: 3 * time.Minute})

	sel := New(pools, 10*time.Minute, zerolog.Nop())

	for i := 0; i < 50; i++ {
		track, ok := sel.Pick(true)
		if !ok {
			t.Fatal("expected a pick from the programme pool")
		}
		if track.Title != "show-track" {
			t.Fatalf("active programme must draw from the programme pool, got %q", track.Title)
		}
	}
}

func TestPickWaitsForEmptyProgrammePool(t *testing.T) {
	pools := playlist.NewPools()
	fill(t, pools, playlist.TierHigh, audio.Track{Title: "fallback", Duration: 3 * time.Minute})

	sel := New(pools, 10*time.Minute, zerolog.Nop())

	// A show whose pool has not loaded yet gets silence, never tier tracks.
	if track, ok := sel.Pick(true); ok {
		t.Fatalf("unloaded programme pool fell back to %q", track.Title)
	}
}

func TestPickFallsBackToTiersWithoutProgramme(t *testing.T) {
	pools := playlist.NewPools()
	fill(t, pools, playlist.TierHigh, audio.Track{Title: "high", Duration: 3 * time.Minute})
	fill(t, pools, playlist.TierLow, audio.Track{Title: "low", Duration: 3 * time.Minute})

	sel := New(pools, 10*time.Minute, zerolog.Nop())

	counts := map[string]int{}
	for i := 0; i < 2000; i++ {
		track, ok := sel.Pick(false)
		if !ok {
			continue
		}
		counts[track.Title]++
	}

	if counts["high"] == 0 || counts["low"] == 0 {
		t.Fatalf("both tiers should be drawn from: %v", counts)
	}
	// High priority carries the dominant weight.
	if counts["high"] <= counts["low"] {
		t.Fatalf("high tier should dominate the draw: %v", counts)
	}
}

func TestPickTierWeightDistribution(t *testing.T) {
	pools := playlist.NewPools()
	fill(t, pools, playlist.TierHigh, audio.Track{Title: "high", Duration: 3 * time.Minute})
	fill(t, pools, playlist.TierMedium, audio.Track{Title: "medium", Duration: 3 * time.Minute})
	fill(t, pools, playlist.TierLow, audio.Track{Title: "low", Duration: 3 * time.Minute})

	sel := New(pools, 10*time.Minute, zerolog.Nop())

	const draws = 100000
	counts := map[string]int{}
	for i := 0; i < draws; i++ {
		track, ok := sel.Pick(false)
		if !ok {
			t.Fatal("pick failed with loaded pools")
		}
		counts[track.Title]++
	}

	check := func(title string, want float64) {
		t.Helper()
		got := float64(counts[title]) / draws
		if got < want-0.02 || got > want+0.02 {
			t.Fatalf("%s share = %.3f, want %.2f within 0.02", title, got, want)
		}
	}
	check("high", 0.60)
	check("medium", 0.28)
	check("low", 0.12)
}

func TestPickRejectsStreamsAndOverlongTracks(t *testing.T) {
	pools := playlist.NewPools()
	fill(t, pools, playlist.TierHigh,
		audio.Track{Title: "live", IsStream: true},
		audio.Track{Title: "epic", Duration: 45 * time.Minute},
	)
	fill(t, pools, playlist.TierMedium, audio.Track{Title: "live2", IsStream: true})
	fill(t, pools, playlist.TierLow, audio.Track{Title: "live3", IsStream: true})

	sel := New(pools, 10*time.Minute, zerolog.Nop())

	if _, ok := sel.Pick(false); ok {
		t.Fatal("pools with only ineligible tracks must yield no pick")
	}
}

func TestPickEmptyPools(t *testing.T) {
	sel := New(playlist.NewPools(), 10*time.Minute, zerolog.Nop())
	if _, ok := sel.Pick(false); ok {
		t.Fatal("empty pools must yield no pick")
	}
	if _, ok := sel.Pick(true); ok {
		t.Fatal("empty programme pool must yield no pick")
	}
}

func TestPickNoDurationCap(t *testing.T) {
	pools := playlist.NewPools()
	fill(t, pools, playlist.TierHigh, audio.Track{Title: "long", Duration: 2 * time.Hour})

	sel := New(pools, 0, zerolog.Nop())
	track, ok := sel.Pick(false)
	if !ok || track.Title != "long" {
		t.Fatalf("zero cap should accept any duration, got ok=%v track=%+v", ok, track)
	}
}
