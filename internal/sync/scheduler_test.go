// Multiplex - Dual-Server Plex Viewing Statistics
// Copyright 2026 Multiplex contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/multiplexstats/multiplex

package sync

import (
	"testing"
	"time"
)

func TestNextRunTime(t *testing.T) {
	loc := time.UTC
	tests := []struct {
		name string
		now  time.Time
		hour int
		want time.Time
	}{
		{
			name: "before the hour fires today",
			now:  time.Date(2026, 3, 10, 0, 30, 0, 0, loc),
			hour: 1,
			want: time.Date(2026, 3, 10, 1, 0, 0, 0, loc),
		},
		{
			name: "after the hour fires tomorrow",
			now:  time.Date(2026, 3, 10, 2, 0, 0, 0, loc),
			hour: 1,
			want: time.Date(2026, 3, 11, 1, 0, 0, 0, loc),
		},
		{
			name: "exactly on the hour fires tomorrow",
			now:  time.Date(2026, 3, 10, 1, 0, 0, 0, loc),
			hour: 1,
			want: time.Date(2026, 3, 11, 1, 0, 0, 0, loc),
		},
		{
			name: "midnight hour",
			now:  time.Date(2026, 3, 10, 23, 59, 0, 0, loc),
			hour: 0,
			want: time.Date(2026, 3, 11, 0, 0, 0, 0, loc),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := nextRunTime(tt.now, tt.hour); !got.Equal(tt.want) {
				t.Errorf("nextRunTime = %v, want %v", got, tt.want)
			}
		})
	}
}
