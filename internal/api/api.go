/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package api exposes the admin/status HTTP surface.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	ws "nhooyr.io/websocket"

	"github.com/friendsincode/skald_radio/internal/audio"
	"github.com/friendsincode/skald_radio/internal/auth"
	"github.com/friendsincode/skald_radio/internal/engine"
	"github.com/friendsincode/skald_radio/internal/events"
	"github.com/friendsincode/skald_radio/internal/logbuffer"
	"github.com/friendsincode/skald_radio/internal/scheduler"
	"github.com/friendsincode/skald_radio/internal/stats"
)

const topLimit = 8

// API exposes HTTP handlers.
type API struct {
	engine    *engine.Engine
	scheduler *scheduler.Service
	manager   *audio.Manager
	stats     *stats.Store
	bus       events.Broker
	logBuf    *logbuffer.Buffer
	jwtSecret []byte
	logger    zerolog.Logger
}

// New creates the API handler set.
func New(eng *engine.Engine, sched *scheduler.Service, manager *audio.Manager, statsStore *stats.Store, bus events.Broker, logBuf *logbuffer.Buffer, jwtSecret []byte, logger zerolog.Logger) *API {
	return &API{
		engine:    eng,
		scheduler: sched,
		manager:   manager,
		stats:     statsStore,
		bus:       bus,
		logBuf:    logBuf,
		jwtSecret: jwtSecret,
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

// Routes mounts API routes on the provided router.
func (a *API) Routes(r chi.Router) {
	r.Get("/healthz", a.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		// Public status endpoints
		r.Get("/status", a.handleStatus)
		r.Get("/players", a.handlePlayers)
		r.Get("/players/{guildID}/queue", a.handleQueue)
		r.Get("/stats/top", a.handleStatsTop)
		r.Get("/stats/{userID}", a.handleStatsRow)

		r.Group(func(pr chi.Router) {
			pr.Use(auth.Middleware(a.jwtSecret))

			pr.Post("/players/{guildID}/skip", a.handleSkip)
			pr.With(auth.RequireRole("admin")).Post("/playlists/reload", a.handleReload)
			pr.With(auth.RequireRole("admin")).Get("/logs", a.handleLogs)
			pr.Get("/now/ws", a.handleNowPlayingWS)
		})
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := a.scheduler.Snapshot()

	resp := map[string]any{
		"active":    nil,
		"upcoming":  nil,
		"programme": false,
	}
	if snap.Active != nil {
		resp["programme"] = true
		resp["active"] = map[string]any{
			"title":       snap.Active.Title,
			"description": snap.Active.Description,
			"window":      snap.ActiveWindow.Start.String() + " - " + snap.ActiveWindow.End.String(),
		}
	}
	if snap.Upcoming != nil {
		resp["upcoming"] = map[string]any{
			"title":      snap.Upcoming.Title,
			"starts_in":  snap.UpcomingIn,
			"starts_fmt": (time.Duration(snap.UpcomingIn) * time.Minute).String(),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handlePlayers(w http.ResponseWriter, r *http.Request) {
	players := a.manager.Players()
	out := make([]map[string]any, 0, len(players))
	for _, p := range players {
		entry := map[string]any{
			"guild_id":   p.GuildID(),
			"connected":  p.Connected(),
			"playing":    p.Playing(),
			"paused":     p.Paused(),
			"queue_size": p.QueueLen(),
		}
		if current := p.Current(); current != nil {
			entry["current"] = trackJSON(*current)
			entry["position_ms"] = p.Position().Milliseconds()
		}
		out = append(out, entry)
	}
	writeJSON(w, http.StatusOK, map[string]any{"players": out})
}

func (a *API) handleQueue(w http.ResponseWriter, r *http.Request) {
	guildID := chi.URLParam(r, "guildID")

	page := 1
	if v := r.URL.Query().Get("page"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "invalid_page")
			return
		}
		page = parsed
	}

	tracks, pages := a.engine.QueuePage(guildID, page)
	out := make([]map[string]any, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, trackJSON(t))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"queue": out,
		"page":  page,
		"pages": pages,
	})
}

type skipRequest struct {
	UserID string `json:"user_id"`
}

func (a *API) handleSkip(w http.ResponseWriter, r *http.Request) {
	guildID := chi.URLParam(r, "guildID")

	var req skipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	outcome, err := a.engine.VoteSkip(r.Context(), guildID, req.UserID)
	if err != nil {
		if errors.Is(err, engine.ErrNoPlayer) {
			writeError(w, http.StatusNotFound, "no_player")
			return
		}
		a.logger.Error().Err(err).Str("guild_id", guildID).Msg("vote skip failed")
		writeError(w, http.StatusInternalServerError, "skip_failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"skipped":  outcome.Skipped,
		"votes":    outcome.Votes,
		"required": outcome.Required,
		"reason":   outcome.Reason,
	})
}

func (a *API) handleReload(w http.ResponseWriter, r *http.Request) {
	a.engine.ReloadPlaylists(r.Context())
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "reload_queued"})
}

func (a *API) handleLogs(w http.ResponseWriter, r *http.Request) {
	if a.logBuf == nil {
		writeError(w, http.StatusNotFound, "logs_unavailable")
		return
	}

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > 1000 {
			writeError(w, http.StatusBadRequest, "invalid_limit")
			return
		}
		limit = parsed
	}

	entries := a.logBuf.Recent(limit, r.URL.Query().Get("level"), r.URL.Query().Get("component"))
	writeJSON(w, http.StatusOK, map[string]any{
		"logs":  entries,
		"count": len(entries),
	})
}

func (a *API) handleStatsTop(w http.ResponseWriter, r *http.Request) {
	byMinutes, err := a.stats.TopByMinutes(r.Context(), topLimit)
	if err != nil {
		a.logger.Error().Err(err).Msg("top listeners query failed")
		writeError(w, http.StatusInternalServerError, "stats_unavailable")
		return
	}
	byRequests, err := a.stats.TopByRequests(r.Context(), topLimit)
	if err != nil {
		a.logger.Error().Err(err).Msg("top requesters query failed")
		writeError(w, http.StatusInternalServerError, "stats_unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"by_minutes":  byMinutes,
		"by_requests": byRequests,
	})
}

func (a *API) handleStatsRow(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	row, err := a.stats.Row(r.Context(), userID)
	if err != nil {
		a.logger.Error().Err(err).Str("user_id", userID).Msg("stats row query failed")
		writeError(w, http.StatusInternalServerError, "stats_unavailable")
		return
	}
	if row == nil {
		writeError(w, http.StatusNotFound, "no_stats")
		return
	}

	writeJSON(w, http.StatusOK, row)
}

// handleNowPlayingWS streams now-playing events over a websocket.
func (a *API) handleNowPlayingWS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conn, err := ws.Accept(w, r, &ws.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		a.logger.Error().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.Close(ws.StatusInternalError, "server error")

	sub := a.bus.Subscribe(events.EventNowPlaying)
	defer a.bus.Unsubscribe(events.EventNowPlaying, sub)

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(ws.StatusNormalClosure, "context cancelled")
			return

		case <-ticker.C:
			if err := conn.Write(ctx, ws.MessageText, []byte(`{"type":"ping"}`)); err != nil {
				a.logger.Error().Err(err).Msg("websocket ping failed")
				return
			}

		case payload, ok := <-sub:
			if !ok {
				conn.Close(ws.StatusNormalClosure, "bus closed")
				return
			}
			if err := a.writeEvent(ctx, conn, events.EventNowPlaying, payload); err != nil {
				a.logger.Error().Err(err).Msg("websocket write failed")
				return
			}
		}
	}
}

func (a *API) writeEvent(ctx context.Context, conn *ws.Conn, eventType events.EventType, payload events.Payload) error {
	data, err := json.Marshal(map[string]any{
		"type":    eventType,
		"payload": payload,
	})
	if err != nil {
		return err
	}
	return conn.Write(ctx, ws.MessageText, data)
}

func trackJSON(t audio.Track) map[string]any {
	return map[string]any{
		"title":       t.Title,
		"author":      t.Author,
		"uri":         t.URI,
		"duration_ms": t.Duration.Milliseconds(),
		"stream":      t.IsStream,
		"requester":   t.Requester,
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
