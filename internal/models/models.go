/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// ListeningStat accumulates per-listener totals. Rows are upsert-accumulated
// by the stats aggregator and never cached in the core.
type ListeningStat struct {
	UserID           string `gorm:"primaryKey;type:varchar(32)" json:"user_id"`
	ListeningMinutes int64  `gorm:"not null;default:0" json:"listening_minutes"`
	SongRequests     int64  `gorm:"not null;default:0" json:"song_requests"`
}

// TableName returns the table name for GORM.
func (ListeningStat) TableName() string {
	return "radio_stats"
}

// PlayHistory records every track the engine started, one row per play.
type PlayHistory struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	GuildID   string `gorm:"index;type:varchar(32)" json:"guild_id"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	URI       string `json:"uri"`
	Requester string `gorm:"type:varchar(32)" json:"requester,omitempty"`
	Programme string `json:"programme,omitempty"`
	Jingle    bool   `json:"jingle"`
	StartedAt time.Time `gorm:"index" json:"started_at"`
}

// TableName returns the table name for GORM.
func (PlayHistory) TableName() string {
	return "play_history"
}
