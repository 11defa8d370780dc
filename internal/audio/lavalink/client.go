/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package lavalink implements the audio backend client: track resolution and
// player transport over the Lavalink v4 REST API, plus the event websocket.
package lavalink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/friendsincode/skald_radio/internal/audio"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Client talks to a Lavalink node over REST. It implements both
// audio.SearchClient and audio.Transport. Player commands require a session
// id, which the websocket assigns after the ready frame.
type Client struct {
	baseURL    string
	password   string
	httpClient *http.Client
	logger     zerolog.Logger

	mu        sync.RWMutex
	sessionID string
}

// NewClient creates a Lavalink REST client.
func NewClient(baseURL, password string, logger zerolog.Logger) *Client {
	return &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		password: password,
		httpClient: &http.Client{
			Timeout:   15 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger.With().Str("component", "lavalink").Logger(),
	}
}

// SetSessionID stores the session assigned by the node. Called by the socket
// on every ready frame.
func (c *Client) SetSessionID(id string) {
	c.mu.Lock()
	c.sessionID = id
	c.mu.Unlock()
}

// SessionID returns the current node session id, empty before ready.
func (c *Client) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

// NormalizeQuery turns free text into a search expression. Direct URLs and
// explicit `scheme:text` searches pass through untouched.
func NormalizeQuery(query string) string {
	if strings.HasPrefix(query, "http://") || strings.HasPrefix(query, "https://") {
		return query
	}
	if strings.HasPrefix(query, "ytsearch:") || strings.HasPrefix(query, "scsearch:") {
		return query
	}
	return "ytsearch:" + query
}

type trackInfoJSON struct {
	Identifier string `json:"identifier"`
	Author     string `json:"author"`
	Length     int64  `json:"length"`
	IsStream   bool   `json:"isStream"`
	Title      string `json:"title"`
	URI        string `json:"uri"`
	SourceName string `json:"sourceName"`
}

type trackJSON struct {
	Encoded string        `json:"encoded"`
	Info    trackInfoJSON `json:"info"`
}

func (t trackJSON) toTrack() audio.Track {
	return audio.Track{
		Encoded:    t.Encoded,
		Identifier: t.Info.Identifier,
		Title:      t.Info.Title,
		Author:     t.Info.Author,
		URI:        t.Info.URI,
		Duration:   time.Duration(t.Info.Length) * time.Millisecond,
		IsStream:   t.Info.IsStream,
	}
}

type loadResultJSON struct {
	LoadType string          `json:"loadType"`
	Data     json.RawMessage `json:"data"`
}

type playlistDataJSON struct {
	Info struct {
		Name string `json:"name"`
	} `json:"info"`
	Tracks []trackJSON `json:"tracks"`
}

// Resolve loads tracks for a URL or search expression.
func (c *Client) Resolve(ctx context.Context, query string) (audio.LoadResult, error) {
	query = NormalizeQuery(query)

	endpoint := fmt.Sprintf("%s/v4/loadtracks?identifier=%s", c.baseURL, url.QueryEscape(query))
	body, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return audio.LoadResult{}, fmt.Errorf("loadtracks: %w", err)
	}

	var raw loadResultJSON
	if err := json.Unmarshal(body, &raw); err != nil {
		return audio.LoadResult{}, fmt.Errorf("decode load result: %w", err)
	}

	switch raw.LoadType {
	case "track":
		var t trackJSON
		if err := json.Unmarshal(raw.Data, &t); err != nil {
			return audio.LoadResult{}, fmt.Errorf("decode track: %w", err)
		}
		return audio.LoadResult{Type: audio.LoadTypeTrack, Tracks: []audio.Track{t.toTrack()}}, nil

	case "playlist":
		var pl playlistDataJSON
		if err := json.Unmarshal(raw.Data, &pl); err != nil {
			return audio.LoadResult{}, fmt.Errorf("decode playlist: %w", err)
		}
		tracks := make([]audio.Track, 0, len(pl.Tracks))
		for _, t := range pl.Tracks {
			tracks = append(tracks, t.toTrack())
		}
		return audio.LoadResult{Type: audio.LoadTypePlaylist, Tracks: tracks}, nil

	case "search":
		var ts []trackJSON
		if err := json.Unmarshal(raw.Data, &ts); err != nil {
			return audio.LoadResult{}, fmt.Errorf("decode search results: %w", err)
		}
		tracks := make([]audio.Track, 0, len(ts))
		for _, t := range ts {
			tracks = append(tracks, t.toTrack())
		}
		return audio.LoadResult{Type: audio.LoadTypeSearch, Tracks: tracks}, nil

	case "empty":
		return audio.LoadResult{Type: audio.LoadTypeNone}, nil

	case "error":
		c.logger.Warn().Str("query", query).RawJSON("data", raw.Data).Msg("load failed on node")
		return audio.LoadResult{Type: audio.LoadTypeFailed}, nil

	default:
		return audio.LoadResult{}, fmt.Errorf("unknown loadType %q", raw.LoadType)
	}
}

type playerUpdateBody struct {
	Track    *playerTrackBody `json:"track,omitempty"`
	Paused   *bool            `json:"paused,omitempty"`
	Position *int64           `json:"position,omitempty"`
	Volume   *int             `json:"volume,omitempty"`
}

type playerTrackBody struct {
	Encoded *string `json:"encoded"`
}

// Play starts the given track on a guild's player.
func (c *Client) Play(ctx context.Context, guildID string, track audio.Track) error {
	encoded := track.Encoded
	return c.updatePlayer(ctx, guildID, playerUpdateBody{
		Track: &playerTrackBody{Encoded: &encoded},
	})
}

// Stop halts playback on a guild's player.
func (c *Client) Stop(ctx context.Context, guildID string) error {
	return c.updatePlayer(ctx, guildID, playerUpdateBody{
		Track: &playerTrackBody{Encoded: nil},
	})
}

// Pause toggles the paused state.
func (c *Client) Pause(ctx context.Context, guildID string, paused bool) error {
	return c.updatePlayer(ctx, guildID, playerUpdateBody{Paused: &paused})
}

// Seek moves the playback position.
func (c *Client) Seek(ctx context.Context, guildID string, position time.Duration) error {
	ms := position.Milliseconds()
	return c.updatePlayer(ctx, guildID, playerUpdateBody{Position: &ms})
}

// SetVolume adjusts player volume in percent.
func (c *Client) SetVolume(ctx context.Context, guildID string, pct int) error {
	return c.updatePlayer(ctx, guildID, playerUpdateBody{Volume: &pct})
}

func (c *Client) updatePlayer(ctx context.Context, guildID string, body playerUpdateBody) error {
	session := c.SessionID()
	if session == "" {
		return fmt.Errorf("no lavalink session, node not ready")
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal player update: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v4/sessions/%s/players/%s?noReplace=false",
		c.baseURL, url.PathEscape(session), url.PathEscape(guildID))

	if _, err := c.do(ctx, http.MethodPatch, endpoint, payload); err != nil {
		return fmt.Errorf("update player %s: %w", guildID, err)
	}
	return nil
}

// DestroyPlayer removes the node-side player after a disconnect.
func (c *Client) DestroyPlayer(ctx context.Context, guildID string) error {
	session := c.SessionID()
	if session == "" {
		return nil
	}

	endpoint := fmt.Sprintf("%s/v4/sessions/%s/players/%s",
		c.baseURL, url.PathEscape(session), url.PathEscape(guildID))

	if _, err := c.do(ctx, http.MethodDelete, endpoint, nil); err != nil {
		return fmt.Errorf("destroy player %s: %w", guildID, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", c.password)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("node returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return data, nil
}
