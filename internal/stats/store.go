/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package stats accumulates listener statistics: minutes heard and tracks
// requested.
package stats

import (
	"context"
	"fmt"

	"github.com/friendsincode/skald_radio/internal/models"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store persists listener statistics through upsert-accumulation. Totals
// live only in the database, never in memory.
type Store struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewStore creates a stats store.
func NewStore(db *gorm.DB, logger zerolog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.With().Str("component", "stats_store").Logger(),
	}
}

// AddListeningMinutes accumulates minutes for a batch of listeners in one
// transaction.
func (s *Store) AddListeningMinutes(ctx context.Context, batch map[string]int64) error {
	if len(batch) == 0 {
		return nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for userID, minutes := range batch {
			row := models.ListeningStat{UserID: userID, ListeningMinutes: minutes}
			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "user_id"}},
				DoUpdates: clause.Assignments(map[string]interface{}{
					"listening_minutes": gorm.Expr("radio_stats.listening_minutes + ?", minutes),
				}),
			}).Create(&row).Error; err != nil {
				return fmt.Errorf("upsert minutes for %s: %w", userID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug().Int("listeners", len(batch)).Msg("listening minutes flushed")
	return nil
}

// AddSongRequests accumulates the request counter for one listener. Negative
// deltas roll back withdrawn requests.
func (s *Store) AddSongRequests(ctx context.Context, userID string, delta int64) error {
	row := models.ListeningStat{UserID: userID, SongRequests: delta}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"song_requests": gorm.Expr("radio_stats.song_requests + ?", delta),
		}),
	}).Create(&row).Error; err != nil {
		return fmt.Errorf("upsert requests for %s: %w", userID, err)
	}
	return nil
}

// Row returns one listener's totals, nil when the listener has no row.
func (s *Store) Row(ctx context.Context, userID string) (*models.ListeningStat, error) {
	var row models.ListeningStat
	err := s.db.WithContext(ctx).First(&row, "user_id = ?", userID).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load stats for %s: %w", userID, err)
	}
	return &row, nil
}

// TopByMinutes returns the heaviest listeners.
func (s *Store) TopByMinutes(ctx context.Context, limit int) ([]models.ListeningStat, error) {
	var rows []models.ListeningStat
	err := s.db.WithContext(ctx).
		Order("listening_minutes DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("top listeners: %w", err)
	}
	return rows, nil
}

// TopByRequests returns the most active requesters.
func (s *Store) TopByRequests(ctx context.Context, limit int) ([]models.ListeningStat, error) {
	var rows []models.ListeningStat
	err := s.db.WithContext(ctx).
		Order("song_requests DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("top requesters: %w", err)
	}
	return rows, nil
}

// RecordPlay appends one play history row.
func (s *Store) RecordPlay(ctx context.Context, row models.PlayHistory) error {
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("record play: %w", err)
	}
	return nil
}
