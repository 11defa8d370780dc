/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package logbuffer provides an in-memory ring buffer for recent log lines,
// served through the admin API.
package logbuffer

import (
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// Entry is one captured log line.
type Entry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Component string         `json:"component,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Buffer is a thread-safe ring buffer of log entries. It implements
// io.Writer so it can sit behind zerolog as a secondary sink.
type Buffer struct {
	mu       sync.RWMutex
	entries  []Entry
	capacity int
	head     int
	count    int
}

// New creates a log buffer with the given capacity.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 10000
	}
	return &Buffer{
		entries:  make([]Entry, capacity),
		capacity: capacity,
	}
}

// Write parses one JSON log line and stores it. Unparseable lines are kept
// with the raw text as the message.
func (b *Buffer) Write(p []byte) (int, error) {
	entry := Entry{Timestamp: time.Now()}

	var fields map[string]any
	if err := json.Unmarshal(p, &fields); err == nil {
		if v, ok := fields["level"].(string); ok {
			entry.Level = v
			delete(fields, "level")
		}
		if v, ok := fields["message"].(string); ok {
			entry.Message = v
			delete(fields, "message")
		}
		if v, ok := fields["component"].(string); ok {
			entry.Component = v
			delete(fields, "component")
		}
		if v, ok := fields["time"].(string); ok {
			if ts, err := time.Parse(time.RFC3339, v); err == nil {
				entry.Timestamp = ts
			}
			delete(fields, "time")
		}
		if len(fields) > 0 {
			entry.Fields = fields
		}
	} else {
		entry.Message = strings.TrimSpace(string(p))
	}

	b.Add(entry)
	return len(p), nil
}

// Add stores one entry, evicting the oldest when full.
func (b *Buffer) Add(entry Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[b.head] = entry
	b.head = (b.head + 1) % b.capacity
	if b.count < b.capacity {
		b.count++
	}
}

// All returns the buffered entries in chronological order.
func (b *Buffer) All() []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := make([]Entry, b.count)
	if b.count == 0 {
		return result
	}

	start := 0
	if b.count == b.capacity {
		start = b.head
	}
	for i := 0; i < b.count; i++ {
		result[i] = b.entries[(start+i)%b.capacity]
	}
	return result
}

// Recent returns up to limit entries, newest first, optionally filtered by
// level and component.
func (b *Buffer) Recent(limit int, level, component string) []Entry {
	all := b.All()

	var filtered []Entry
	for i := len(all) - 1; i >= 0; i-- {
		entry := all[i]
		if level != "" && entry.Level != level {
			continue
		}
		if component != "" && entry.Component != component {
			continue
		}
		filtered = append(filtered, entry)
		if limit > 0 && len(filtered) >= limit {
			break
		}
	}
	return filtered
}

// Len returns the number of buffered entries.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}
