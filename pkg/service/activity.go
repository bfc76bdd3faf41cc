package service

import (
	"context"
	"slices"
	"sort"

	"github.com/ignatij/taskflow/pkg/models"
)

// appendActivity records one audit entry on the task. Entries are never
// edited or removed afterwards.
func (s *TaskService) appendActivity(t *models.Task, typ models.ActivityType, actorID, description string, metadata map[string]any) {
	t.ActivityLog = append(t.ActivityLog, models.ActivityEntry{
		Type:        typ,
		User:        actorID,
		Description: description,
		Metadata:    metadata,
		Timestamp:   s.now(),
	})
}

// ActivityLog returns the task's audit trail, newest first. Entries sharing a
// timestamp keep reverse append order.
func (s *TaskService) ActivityLog(ctx context.Context, taskID string) ([]models.ActivityEntry, error) {
	t, err := s.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	entries := slices.Clone(t.ActivityLog)
	slices.Reverse(entries)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	return entries, nil
}
