package models_test

import (
	"testing"
	"time"

	"github.com/ignatij/taskflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int, hour int) time.Time {
	return time.Date(2024, 3, d, hour, 0, 0, 0, time.UTC)
}

func TestRecordCompletion(t *testing.T) {
	tests := []struct {
		name        string
		completions []time.Time
		current     int
		longest     int
	}{
		{"first completion", []time.Time{day(4, 9)}, 1, 1},
		{"same day keeps the streak", []time.Time{day(4, 9), day(4, 17)}, 1, 1},
		{"consecutive days", []time.Time{day(4, 9), day(5, 9), day(6, 23)}, 3, 3},
		{"gap resets", []time.Time{day(4, 9), day(5, 9), day(8, 9)}, 1, 2},
		{"older completion keeps the streak", []time.Time{day(4, 9), day(5, 9), day(1, 9)}, 2, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s models.UserStats
			for _, at := range tt.completions {
				s.RecordCompletion(at)
			}
			assert.Equal(t, len(tt.completions), s.TasksCompleted)
			assert.Equal(t, tt.current, s.CurrentStreak)
			assert.Equal(t, tt.longest, s.LongestStreak)
			require.NotNil(t, s.LastTaskCompletedDate)
		})
	}

	t.Run("last completion date never moves backwards", func(t *testing.T) {
		var s models.UserStats
		s.RecordCompletion(day(5, 9))
		s.RecordCompletion(day(3, 9))
		assert.True(t, s.LastTaskCompletedDate.Equal(day(5, 9)))
	})

	t.Run("days are UTC calendar days", func(t *testing.T) {
		tz := time.FixedZone("UTC+10", 10*3600)
		var s models.UserStats
		s.RecordCompletion(time.Date(2024, 3, 5, 8, 0, 0, 0, tz)) // March 4th 22:00 UTC
		s.RecordCompletion(day(4, 9))
		assert.Equal(t, 1, s.CurrentStreak)
	})
}
