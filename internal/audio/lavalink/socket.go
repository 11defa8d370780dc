/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package lavalink

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/friendsincode/skald_radio/internal/audio"
	"github.com/friendsincode/skald_radio/internal/events"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

// Socket maintains the Lavalink event websocket. It feeds backend events
// into the bus and applies player state frames to the manager.
type Socket struct {
	client  *Client
	manager *audio.Manager
	bus     events.Broker
	userID  string
	logger  zerolog.Logger
}

// NewSocket creates the node event socket.
func NewSocket(client *Client, manager *audio.Manager, bus events.Broker, userID string, logger zerolog.Logger) *Socket {
	return &Socket{
		client:  client,
		manager: manager,
		bus:     bus,
		userID:  userID,
		logger:  logger.With().Str("component", "lavalink_socket").Logger(),
	}
}

// Run connects to the node and reconnects with backoff until ctx is
// cancelled.
func (s *Socket) Run(ctx context.Context) error {
	backoff := time.Second

	for {
		if err := s.connect(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			s.logger.Error().Err(err).Dur("retry_in", backoff).Msg("node socket lost")
			s.bus.Publish(events.EventNodeDisconnected, events.Payload{"error": err.Error()})

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}

			backoff *= 2
			if backoff > 30*time.Second {
				backoff = 30 * time.Second
			}
			continue
		}

		backoff = time.Second
	}
}

func (s *Socket) connect(ctx context.Context) error {
	wsURL := strings.Replace(s.client.baseURL, "http", "ws", 1) + "/v4/websocket"

	header := http.Header{}
	header.Set("Authorization", s.client.password)
	header.Set("User-Id", s.userID)
	header.Set("Client-Name", "skald_radio/1.0")

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return fmt.Errorf("dial node: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "shutting down")

	conn.SetReadLimit(1 << 20)

	s.logger.Info().Str("url", wsURL).Msg("node socket connected")

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("read node frame: %w", err)
		}
		s.handleFrame(data)
	}
}

type nodeFrame struct {
	Op        string `json:"op"`
	SessionID string `json:"sessionId"`
	Resumed   bool   `json:"resumed"`
	GuildID   string `json:"guildId"`

	// playerUpdate
	State struct {
		Time      int64 `json:"time"`
		Position  int64 `json:"position"`
		Connected bool  `json:"connected"`
		Ping      int64 `json:"ping"`
	} `json:"state"`

	// event
	Type        string    `json:"type"`
	Track       trackJSON `json:"track"`
	Reason      string    `json:"reason"`
	ThresholdMs int64     `json:"thresholdMs"`
	Code        int       `json:"code"`
	Exception   struct {
		Message  string `json:"message"`
		Severity string `json:"severity"`
		Cause    string `json:"cause"`
	} `json:"exception"`
}

func (s *Socket) handleFrame(data []byte) {
	var frame nodeFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		s.logger.Error().Err(err).Msg("bad node frame")
		return
	}

	switch frame.Op {
	case "ready":
		s.client.SetSessionID(frame.SessionID)
		s.logger.Info().Str("session_id", frame.SessionID).Bool("resumed", frame.Resumed).Msg("node ready")

	case "playerUpdate":
		if player := s.manager.Get(frame.GuildID); player != nil {
			player.ApplyPlayerUpdate(frame.State.Connected, time.Duration(frame.State.Position)*time.Millisecond)
		}

	case "event":
		s.handleEvent(frame)

	case "stats":
		// Node load stats, not used.

	default:
		s.logger.Debug().Str("op", frame.Op).Msg("unhandled node op")
	}
}

func (s *Socket) handleEvent(frame nodeFrame) {
	track := frame.Track.toTrack()

	switch frame.Type {
	case "TrackStartEvent":
		s.bus.Publish(events.EventTrackStart, events.Payload{
			"guild_id": frame.GuildID,
			"title":    track.Title,
			"author":   track.Author,
			"uri":      track.URI,
		})

	case "TrackEndEvent":
		natural := naturalEndReason(frame.Reason)
		player := s.manager.Get(frame.GuildID)
		if natural && player != nil {
			player.HandleTrackEnd()
		}
		s.bus.Publish(events.EventTrackEnd, events.Payload{
			"guild_id": frame.GuildID,
			"reason":   frame.Reason,
			"title":    track.Title,
		})
		// A natural end leaves the queue responsible for the next track;
		// an empty queue is reported separately.
		if natural && player != nil && player.QueueLen() == 0 {
			s.bus.Publish(events.EventQueueEnd, events.Payload{"guild_id": frame.GuildID})
		}

	case "TrackStuckEvent":
		s.bus.Publish(events.EventTrackStuck, events.Payload{
			"guild_id":     frame.GuildID,
			"threshold_ms": frame.ThresholdMs,
			"title":        track.Title,
		})

	case "TrackExceptionEvent":
		s.bus.Publish(events.EventTrackException, events.Payload{
			"guild_id": frame.GuildID,
			"message":  frame.Exception.Message,
			"severity": frame.Exception.Severity,
		})

	case "WebSocketClosedEvent":
		if player := s.manager.Get(frame.GuildID); player != nil {
			player.SetConnected(false)
		}
		s.logger.Warn().Str("guild_id", frame.GuildID).Int("code", frame.Code).Msg("voice websocket closed")

	default:
		s.logger.Debug().Str("type", frame.Type).Msg("unhandled node event")
	}
}

// naturalEndReason reports whether the node ended the track on its own. A
// "replaced" end follows every skip and a "cleanup" end follows session
// teardown; for both the player state has already moved on and must not be
// cleared.
func naturalEndReason(reason string) bool {
	switch strings.ToLower(reason) {
	case "finished", "loadfailed", "stopped":
		return true
	}
	return false
}
