package models

import "time"

type Role string

const (
	CEORole        Role = "CEO"
	PMRole         Role = "PM"
	LeadRole       Role = "Lead"
	EmployeeRole   Role = "Employee"
	InternRole     Role = "Intern"
	ContractorRole Role = "Contractor"
)

// User is the directory view of a person: identity, placement in the
// hierarchy and completion statistics.
type User struct {
	ID         string     `json:"id" db:"id"`
	Name       string     `json:"name" db:"name"`
	Role       Role       `json:"role" db:"role"`
	Department Department `json:"department" db:"department"`
	Groups     []string   `json:"groups,omitempty" db:"-"`
	UserStats
}

// UserStats tracks completed-task counters and streaks.
type UserStats struct {
	TasksCompleted        int        `json:"tasksCompleted" db:"tasks_completed"`
	CurrentStreak         int        `json:"currentStreak" db:"current_streak"`
	LongestStreak         int        `json:"longestStreak" db:"longest_streak"`
	LastTaskCompletedDate *time.Time `json:"lastTaskCompletedDate,omitempty" db:"last_task_completed_date"`
}

// RecordCompletion updates the statistics for a task completed at the given time.
// Streaks count consecutive UTC calendar days with at least one completion.
func (s *UserStats) RecordCompletion(at time.Time) {
	day := truncateDay(at)
	s.TasksCompleted++
	switch {
	case s.LastTaskCompletedDate == nil:
		s.CurrentStreak = 1
	default:
		last := truncateDay(*s.LastTaskCompletedDate)
		switch {
		case day.Equal(last):
			if s.CurrentStreak == 0 {
				s.CurrentStreak = 1
			}
		case day.Equal(last.AddDate(0, 0, 1)):
			s.CurrentStreak++
		case day.Before(last):
			// late recording of an older completion keeps the current streak
		default:
			s.CurrentStreak = 1
		}
	}
	if s.CurrentStreak > s.LongestStreak {
		s.LongestStreak = s.CurrentStreak
	}
	if s.LastTaskCompletedDate == nil || at.After(*s.LastTaskCompletedDate) {
		t := at.UTC()
		s.LastTaskCompletedDate = &t
	}
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Group is a named set of users that tasks can be assigned to.
type Group struct {
	ID      string   `json:"id" db:"id"`
	Name    string   `json:"name" db:"name"`
	Members []string `json:"members" db:"-"`
}

// UserFilter narrows directory listings.
type UserFilter struct {
	Department Department
	IDs        []string
}
