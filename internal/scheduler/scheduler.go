/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package scheduler resolves which programme owns the current wall-clock
// minute and what comes up next.
package scheduler

import (
	"sync"
	"time"

	"github.com/friendsincode/skald_radio/internal/catalog"
	"github.com/friendsincode/skald_radio/internal/events"
	"github.com/rs/zerolog"
)

// Snapshot is the scheduler's published view. Fields are copies; mutating a
// snapshot never touches scheduler state.
type Snapshot struct {
	Active       *catalog.Programme
	ActiveWindow catalog.PlayTime

	Upcoming   *catalog.Programme
	UpcomingIn int // minutes until the upcoming window starts
}

// Transition reports programme boundary crossings observed by a Refresh.
type Transition struct {
	Started *catalog.Programme
	Ended   *catalog.Programme
}

// Service owns programme resolution. State is mutated only by Refresh.
type Service struct {
	catalog *catalog.Catalog
	bus     events.Broker
	logger  zerolog.Logger

	mu    sync.RWMutex
	state Snapshot
}

// New creates a scheduler over an immutable catalog.
func New(cat *catalog.Catalog, bus events.Broker, logger zerolog.Logger) *Service {
	return &Service{
		catalog: cat,
		bus:     bus,
		logger:  logger.With().Str("component", "scheduler").Logger(),
	}
}

// Refresh recomputes the active and upcoming programme for the given time
// and publishes boundary events. Declaration order breaks overlap ties, the
// first matching programme wins.
func (s *Service) Refresh(now time.Time) Transition {
	var (
		active       *catalog.Programme
		activeWindow catalog.PlayTime
	)

	for i := range s.catalog.Programmes {
		p := &s.catalog.Programmes[i]
		for _, w := range p.PlayTimes {
			if w.ActiveAt(now) {
				active = p
				activeWindow = w
				break
			}
		}
		if active != nil {
			break
		}
	}

	upcoming, upcomingIn := s.nextStart(now)

	s.mu.Lock()
	prev := s.state.Active
	s.state = Snapshot{
		Active:       active,
		ActiveWindow: activeWindow,
		Upcoming:     upcoming,
		UpcomingIn:   upcomingIn,
	}
	s.mu.Unlock()

	var tr Transition
	if !sameProgramme(prev, active) {
		if prev != nil {
			tr.Ended = prev
			s.logger.Info().Str("programme", prev.Title).Msg("programme ended")
			s.bus.Publish(events.EventProgrammeEnd, events.Payload{"programme": prev.Title})
		}
		if active != nil {
			tr.Started = active
			s.logger.Info().Str("programme", active.Title).Msg("programme started")
			s.bus.Publish(events.EventProgrammeStart, events.Payload{"programme": active.Title})
		}
	}
	return tr
}

// nextStart finds the window that starts soonest after now, across the whole
// catalog. Windows that are active right now are excluded so "up next" is
// always a future start; an active show's later window can still qualify.
// Declaration order breaks ties.
func (s *Service) nextStart(now time.Time) (*catalog.Programme, int) {
	var (
		best    *catalog.Programme
		bestMin = -1
	)

	for i := range s.catalog.Programmes {
		p := &s.catalog.Programmes[i]
		for _, w := range p.PlayTimes {
			if w.ActiveAt(now) {
				continue
			}
			mins := w.MinutesUntilStart(now)
			if bestMin < 0 || mins < bestMin {
				best = p
				bestMin = mins
			}
		}
	}

	return best, bestMin
}

// Snapshot returns the last refreshed state.
func (s *Service) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func sameProgramme(a, b *catalog.Programme) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Title == b.Title
}
