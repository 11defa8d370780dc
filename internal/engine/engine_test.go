/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/friendsincode/skald_radio/internal/audio"
	"github.com/friendsincode/skald_radio/internal/catalog"
	"github.com/friendsincode/skald_radio/internal/clock"
	"github.com/friendsincode/skald_radio/internal/events"
	"github.com/friendsincode/skald_radio/internal/jingle"
	"github.com/friendsincode/skald_radio/internal/models"
	"github.com/friendsincode/skald_radio/internal/playlist"
	"github.com/friendsincode/skald_radio/internal/scheduler"
	"github.com/friendsincode/skald_radio/internal/selector"
	"github.com/friendsincode/skald_radio/internal/sources"
	"github.com/friendsincode/skald_radio/internal/stats"
	"github.com/friendsincode/skald_radio/internal/votes"
	"github.com/friendsincode/skald_radio/internal/watchdog"
)

type fakeTransport struct{}

func (fakeTransport) Play(ctx context.Context, guildID string, track audio.Track) error { return nil }
func (fakeTransport) Stop(ctx context.Context, guildID string) error                    { return nil }
func (fakeTransport) Pause(ctx context.Context, guildID string, paused bool) error      { return nil }
func (fakeTransport) Seek(ctx context.Context, guildID string, position time.Duration) error {
	return nil
}
func (fakeTransport) SetVolume(ctx context.Context, guildID string, pct int) error { return nil }

type fakeStore struct{}

func (fakeStore) ReadFile(ctx context.Context, path string) ([]byte, error) {
	return nil, errors.New("not used")
}
func (fakeStore) List(ctx context.Context, dir string) ([]string, error) { return nil, nil }

type mapStore struct {
	files map[string]string
}

func (m mapStore) ReadFile(ctx context.Context, path string) ([]byte, error) {
	data, ok := m.files[path]
	if !ok {
		return nil, errors.New("file not found")
	}
	return []byte(data), nil
}
func (m mapStore) List(ctx context.Context, dir string) ([]string, error) { return nil, nil }

type fakeSearch struct {
	results map[string]audio.LoadResult
}

func (f *fakeSearch) Resolve(ctx context.Context, query string) (audio.LoadResult, error) {
	if result, ok := f.results[query]; ok {
		return result, nil
	}
	return audio.LoadResult{Type: audio.LoadTypeNone}, nil
}

func trackResult(title string, duration time.Duration) audio.LoadResult {
	return audio.LoadResult{
		Type:   audio.LoadTypeTrack,
		Tracks: []audio.Track{{Title: title, Encoded: title, Duration: duration}},
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.ListeningStat{}, &models.PlayHistory{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

type testEnv struct {
	engine  *Engine
	manager *audio.Manager
	pools   *playlist.Pools
	stats   *stats.Store
}

func newTestEngine(t *testing.T, cfg Config, search audio.SearchClient) testEnv {
	t.Helper()
	return newTestEngineWith(t, cfg, search, &catalog.Catalog{}, fakeStore{}, playlist.LoaderConfig{})
}

func newTestEngineWith(t *testing.T, cfg Config, search audio.SearchClient, cat *catalog.Catalog, store sources.Store, loaderCfg playlist.LoaderConfig) testEnv {
	t.Helper()
	logger := zerolog.Nop()
	bus := events.NewBus()
	manager := audio.NewManager(fakeTransport{})
	gateway := audio.NopGateway{}
	sched := scheduler.New(cat, bus, logger)
	pools := playlist.NewPools()
	loader := playlist.NewLoader(pools, store, search, bus, loaderCfg, logger)
	sel := selector.New(pools, cfg.MaxRequestDuration, logger)
	jingles := jingle.New(fakeStore{}, search, bus, 2, 3, logger)
	arbiter := votes.New(gateway, bus, cfg.OwnerID, logger)
	dog := watchdog.New(gateway, logger)
	statsStore := stats.NewStore(newTestDB(t), logger)

	eng := New(cfg, Deps{
		Manager:   manager,
		Gateway:   gateway,
		Search:    search,
		Scheduler: sched,
		Pools:     pools,
		Loader:    loader,
		Selector:  sel,
		Jingles:   jingles,
		Votes:     arbiter,
		Watchdog:  dog,
		Stats:     statsStore,
		Bus:       bus,
		Clock:     clock.Fixed{T: time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)},
	}, logger)

	return testEnv{engine: eng, manager: manager, pools: pools, stats: statsStore}
}

func defaultConfig() Config {
	return Config{
		TickInterval:       time.Second,
		OwnerID:            "owner",
		UserQueueLimit:     2,
		MaxRequestDuration: 10 * time.Minute,
	}
}

func TestRequestWithoutPlayer(t *testing.T) {
	env := newTestEngine(t, defaultConfig(), &fakeSearch{})

	if _, err := env.engine.Request(context.Background(), "ghost", "u1", "song"); !errors.Is(err, ErrNoPlayer) {
		t.Fatalf("err = %v, want ErrNoPlayer", err)
	}
}

func TestRequestQueuesResolvedTrack(t *testing.T) {
	search := &fakeSearch{results: map[string]audio.LoadResult{
		"song": trackResult("Song", 3 * time.Minute),
	}}
	env := newTestEngine(t, defaultConfig(), search)
	player := env.manager.GetOrCreate("guild-1")

	track, err := env.engine.Request(context.Background(), "guild-1", "u1", "song")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if track.Title != "Song" || track.Requester != "u1" || track.Origin != audio.OriginRequest {
		t.Fatalf("unexpected track: %+v", track)
	}
	if player.QueueLen() != 1 {
		t.Fatalf("queue len = %d, want 1", player.QueueLen())
	}

	row, err := env.stats.Row(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if row == nil || row.SongRequests != 1 {
		t.Fatalf("request not counted: %+v", row)
	}
}

func TestRequestQueueLimit(t *testing.T) {
	search := &fakeSearch{results: map[string]audio.LoadResult{}}
	for i := 0; i < 3; i++ {
		search.results[fmt.Sprintf("song-%d", i)] = trackResult(fmt.Sprintf("Song %d", i), 3*time.Minute)
	}
	env := newTestEngine(t, defaultConfig(), search)
	env.manager.GetOrCreate("guild-1")

	for i := 0; i < 2; i++ {
		if _, err := env.engine.Request(context.Background(), "guild-1", "u1", fmt.Sprintf("song-%d", i)); err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
	}

	if _, err := env.engine.Request(context.Background(), "guild-1", "u1", "song-2"); !errors.Is(err, ErrQueueLimit) {
		t.Fatalf("err = %v, want ErrQueueLimit", err)
	}

	// The owner is not limited.
	if _, err := env.engine.Request(context.Background(), "guild-1", "owner", "song-2"); err != nil {
		t.Fatalf("owner request: %v", err)
	}
}

func TestRequestDurationLimit(t *testing.T) {
	search := &fakeSearch{results: map[string]audio.LoadResult{
		"epic": trackResult("Epic", time.Hour),
		"live": {Type: audio.LoadTypeTrack, Tracks: []audio.Track{{Title: "Live", IsStream: true}}},
	}}
	env := newTestEngine(t, defaultConfig(), search)
	env.manager.GetOrCreate("guild-1")

	if _, err := env.engine.Request(context.Background(), "guild-1", "u1", "epic"); !errors.Is(err, ErrTooLong) {
		t.Fatalf("err = %v, want ErrTooLong", err)
	}
	if _, err := env.engine.Request(context.Background(), "guild-1", "u1", "live"); !errors.Is(err, ErrTooLong) {
		t.Fatalf("stream err = %v, want ErrTooLong", err)
	}

	// The owner bypasses the duration cap.
	if _, err := env.engine.Request(context.Background(), "guild-1", "owner", "epic"); err != nil {
		t.Fatalf("owner request: %v", err)
	}
}

func TestRequestPlaylistQueuesAllTracks(t *testing.T) {
	search := &fakeSearch{results: map[string]audio.LoadResult{
		"https://example.com/mix": {
			Type: audio.LoadTypePlaylist,
			Tracks: []audio.Track{
				{Title: "One", Encoded: "1", Duration: 3 * time.Minute},
				{Title: "Two", Encoded: "2", Duration: time.Hour},
				{Title: "Three", Encoded: "3", Duration: 4 * time.Minute},
			},
		},
	}}
	env := newTestEngine(t, defaultConfig(), search)
	player := env.manager.GetOrCreate("guild-1")

	first, err := env.engine.Request(context.Background(), "guild-1", "u1", "https://example.com/mix")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if first.Title != "One" {
		t.Fatalf("first track = %q, want One", first.Title)
	}
	// The overlong middle track is filtered, the rest queue up.
	if player.QueueLen() != 2 {
		t.Fatalf("queue len = %d, want 2", player.QueueLen())
	}
}

func TestRequestResolutionFailures(t *testing.T) {
	search := &fakeSearch{results: map[string]audio.LoadResult{
		"broken": {Type: audio.LoadTypeFailed},
	}}
	env := newTestEngine(t, defaultConfig(), search)
	env.manager.GetOrCreate("guild-1")

	if _, err := env.engine.Request(context.Background(), "guild-1", "u1", "nothing"); !errors.Is(err, ErrNoMatches) {
		t.Fatalf("err = %v, want ErrNoMatches", err)
	}
	if _, err := env.engine.Request(context.Background(), "guild-1", "u1", "broken"); !errors.Is(err, ErrLoadFailed) {
		t.Fatalf("err = %v, want ErrLoadFailed", err)
	}
}

func TestRemoveLastRequest(t *testing.T) {
	search := &fakeSearch{results: map[string]audio.LoadResult{
		"song": trackResult("Song", 3 * time.Minute),
	}}
	env := newTestEngine(t, defaultConfig(), search)
	player := env.manager.GetOrCreate("guild-1")

	if _, err := env.engine.Request(context.Background(), "guild-1", "u1", "song"); err != nil {
		t.Fatal(err)
	}

	removed, err := env.engine.RemoveLastRequest(context.Background(), "guild-1", "u1")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if removed.Title != "Song" || player.QueueLen() != 0 {
		t.Fatalf("unexpected removal: %+v queue=%d", removed, player.QueueLen())
	}

	// The withdrawn request is uncounted.
	row, err := env.stats.Row(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if row == nil || row.SongRequests != 0 {
		t.Fatalf("request not rolled back: %+v", row)
	}

	if _, err := env.engine.RemoveLastRequest(context.Background(), "guild-1", "u1"); !errors.Is(err, ErrNoRequest) {
		t.Fatalf("err = %v, want ErrNoRequest", err)
	}
}

func TestFindCapsResults(t *testing.T) {
	tracks := make([]audio.Track, 12)
	for i := range tracks {
		tracks[i] = audio.Track{Title: fmt.Sprintf("Result %d", i)}
	}
	search := &fakeSearch{results: map[string]audio.LoadResult{
		"query": {Type: audio.LoadTypeSearch, Tracks: tracks},
	}}
	env := newTestEngine(t, defaultConfig(), search)

	found, err := env.engine.Find(context.Background(), "query")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(found) != 10 {
		t.Fatalf("got %d results, want 10", len(found))
	}
}

func TestQueuePage(t *testing.T) {
	env := newTestEngine(t, defaultConfig(), &fakeSearch{})
	player := env.manager.GetOrCreate("guild-1")
	for i := 0; i < 25; i++ {
		player.Add(audio.Track{Title: fmt.Sprintf("t%d", i)})
	}

	page, pages := env.engine.QueuePage("guild-1", 1)
	if pages != 3 || len(page) != 10 {
		t.Fatalf("page 1: len=%d pages=%d", len(page), pages)
	}
	if page[0].Title != "t0" {
		t.Fatalf("page 1 head = %q", page[0].Title)
	}

	page, _ = env.engine.QueuePage("guild-1", 3)
	if len(page) != 5 || page[0].Title != "t20" {
		t.Fatalf("page 3: len=%d head=%q", len(page), page[0].Title)
	}

	if page, pages := env.engine.QueuePage("guild-1", 4); page != nil || pages != 3 {
		t.Fatalf("page past the end: %v %d", page, pages)
	}
	if page, pages := env.engine.QueuePage("ghost", 1); page != nil || pages != 0 {
		t.Fatalf("unknown guild: %v %d", page, pages)
	}
}

func TestTickAutoQueuesIdleConnectedPlayers(t *testing.T) {
	env := newTestEngine(t, defaultConfig(), &fakeSearch{})
	env.pools.Append(playlist.TierHigh, env.pools.Generation(playlist.TierHigh),
		audio.Track{Title: "Pool Track", Encoded: "p", Duration: 3 * time.Minute})

	connected := env.manager.GetOrCreate("guild-1")
	connected.SetConnected(true)
	env.manager.GetOrCreate("guild-2")

	env.engine.tick(context.Background())

	current := connected.Current()
	if current == nil || current.Title != "Pool Track" {
		t.Fatalf("idle player not fed from pool: %+v", current)
	}
	if current.Origin != audio.OriginPool {
		t.Fatalf("origin = %q, want pool", current.Origin)
	}
	if env.manager.Get("guild-2").Current() != nil {
		t.Fatal("disconnected player must not be fed")
	}

	// A busy player is left alone.
	before := *current
	env.engine.tick(context.Background())
	after := connected.Current()
	if after == nil || after.Title != before.Title {
		t.Fatalf("busy player was disturbed: %+v", after)
	}
}

func TestTickProgrammeLoadsOnlyProgrammePool(t *testing.T) {
	// The fixed test clock sits inside this window (Monday noon).
	cat := &catalog.Catalog{Programmes: []catalog.Programme{{
		Title:    "Lunch Show",
		Playlist: "lunch.txt",
		PlayTimes: []catalog.PlayTime{{
			Start: catalog.ClockTime{Weekday: time.Monday, Minute: 8 * 60},
			End:   catalog.ClockTime{Weekday: time.Monday, Minute: 14 * 60},
		}},
	}}}
	store := mapStore{files: map[string]string{
		"lunch.txt":  "show-1\nshow-2\n",
		"high.txt":   "h1\n",
		"medium.txt": "m1\n",
		"low.txt":    "l1\n",
	}}
	search := &fakeSearch{results: map[string]audio.LoadResult{
		"show-1": trackResult("Show 1", 3 * time.Minute),
		"show-2": trackResult("Show 2", 3 * time.Minute),
		"h1":     trackResult("High 1", 3 * time.Minute),
		"m1":     trackResult("Medium 1", 3 * time.Minute),
		"l1":     trackResult("Low 1", 3 * time.Minute),
	}}
	env := newTestEngineWith(t, defaultConfig(), search, cat, store, playlist.LoaderConfig{
		HighFile:   "high.txt",
		MediumFile: "medium.txt",
		LowFile:    "low.txt",
	})

	env.engine.tick(context.Background())
	waitForPools(t, env.pools)

	if got := env.pools.Size(playlist.TierProgramme); got != 2 {
		t.Fatalf("programme pool size = %d, want 2", got)
	}
	if env.pools.ProgrammeTitle() != "Lunch Show" {
		t.Fatalf("programme pool owner = %q", env.pools.ProgrammeTitle())
	}
	for _, tier := range []playlist.Tier{playlist.TierHigh, playlist.TierMedium, playlist.TierLow} {
		if got := env.pools.Size(tier); got != 0 {
			t.Fatalf("%s pool loaded %d tracks during a programme, want 0", tier, got)
		}
	}
}

func waitForPools(t *testing.T, pools *playlist.Pools) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for pools.Loading() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for pool load")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestReloadPlaylistsClearsPools(t *testing.T) {
	env := newTestEngine(t, defaultConfig(), &fakeSearch{})
	env.pools.Append(playlist.TierHigh, env.pools.Generation(playlist.TierHigh), audio.Track{Title: "old"})
	env.pools.SetProgrammeTitle("Old Show")

	env.engine.ReloadPlaylists(context.Background())

	if env.pools.Size(playlist.TierHigh) != 0 {
		t.Fatal("reload should clear the pools")
	}
	if env.pools.ProgrammeTitle() != "" {
		t.Fatal("reload should clear the programme pool owner")
	}
}
