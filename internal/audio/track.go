/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package audio

import (
	"context"
	"time"
)

// Track is an opaque playable handle. Identity and the Encoded payload are
// assigned by the audio backend; the core never interprets them beyond the
// metadata below.
type Track struct {
	Encoded    string // backend wire payload, passed back verbatim on play
	Identifier string
	Title      string
	Author     string
	URI        string
	Duration   time.Duration
	IsStream   bool
	Requester  string // listener id; empty for auto-queued tracks
	Origin     string // how the track entered the queue: request, pool, jingle
}

// Track origins.
const (
	OriginRequest = "request"
	OriginPool    = "pool"
	OriginJingle  = "jingle"
)

// LoadType classifies a resolution result.
type LoadType string

const (
	LoadTypeTrack    LoadType = "TRACK_LOADED"
	LoadTypePlaylist LoadType = "PLAYLIST_LOADED"
	LoadTypeSearch   LoadType = "SEARCH_RESULT"
	LoadTypeNone     LoadType = "NO_MATCHES"
	LoadTypeFailed   LoadType = "LOAD_FAILED"
)

// LoadResult is the outcome of resolving a query against the backend.
type LoadResult struct {
	Type   LoadType
	Tracks []Track
}

// Empty reports whether the result carries no usable tracks.
func (r LoadResult) Empty() bool {
	return len(r.Tracks) == 0 || r.Type == LoadTypeNone || r.Type == LoadTypeFailed
}

// SearchClient resolves a direct URL or a `scheme:text` search expression
// (e.g. ytsearch:, scsearch:) into tracks.
type SearchClient interface {
	Resolve(ctx context.Context, query string) (LoadResult, error)
}
