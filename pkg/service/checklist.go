package service

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/ignatij/taskflow/pkg/models"
	"github.com/ignatij/taskflow/pkg/storage"
)

// checklistMutation runs fn on the task's checklist, recomputes the task's own
// progress and then propagates to its ancestors.
func (s *TaskService) checklistMutation(ctx context.Context, taskID, actorID string, fn func(t *models.Task) error) (models.Task, error) {
	if _, err := s.resolveUser(ctx, actorID); err != nil {
		return models.Task{}, err
	}
	t, err := s.mutate(ctx, taskID, func(tx storage.Store, t *models.Task) error {
		if err := fn(t); err != nil {
			return err
		}
		return recomputeProgress(ctx, tx, t)
	})
	if err != nil {
		return models.Task{}, err
	}
	if t.HasParent() {
		s.PropagateProgressUpward(ctx, t.ParentTask)
	}
	return t, nil
}

func findItem(t *models.Task, itemID string) (int, error) {
	i := slices.IndexFunc(t.Checklist, func(item models.ChecklistItem) bool { return item.ID == itemID })
	if i < 0 {
		return -1, notFound("checklist item", itemID)
	}
	return i, nil
}

// AddChecklistItem appends an open item to the task's checklist.
func (s *TaskService) AddChecklistItem(ctx context.Context, taskID, actorID, text string) (models.Task, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Task{}, invalidf("checklist item text is required")
	}
	return s.checklistMutation(ctx, taskID, actorID, func(t *models.Task) error {
		item := models.ChecklistItem{ID: uuid.NewString(), Text: text}
		t.Checklist = append(t.Checklist, item)
		s.appendActivity(t, models.ChecklistAddedActivity, actorID, fmt.Sprintf("added checklist item %q", text),
			map[string]any{"item": item.ID})
		return nil
	})
}

// ToggleChecklistItem flips the completion state of one item.
func (s *TaskService) ToggleChecklistItem(ctx context.Context, taskID, itemID, actorID string) (models.Task, error) {
	return s.checklistMutation(ctx, taskID, actorID, func(t *models.Task) error {
		i, err := findItem(t, itemID)
		if err != nil {
			return err
		}
		item := &t.Checklist[i]
		item.IsCompleted = !item.IsCompleted
		if item.IsCompleted {
			now := s.now()
			item.CompletedAt = &now
			item.CompletedBy = actorID
			s.appendActivity(t, models.ChecklistCompletedActivity, actorID,
				fmt.Sprintf("completed checklist item %q", item.Text), map[string]any{"item": item.ID})
		} else {
			item.CompletedAt = nil
			item.CompletedBy = ""
			s.appendActivity(t, models.ChecklistUncompletedActivity, actorID,
				fmt.Sprintf("reopened checklist item %q", item.Text), map[string]any{"item": item.ID})
		}
		return nil
	})
}

// DeleteChecklistItem removes one item from the checklist.
func (s *TaskService) DeleteChecklistItem(ctx context.Context, taskID, itemID, actorID string) (models.Task, error) {
	return s.checklistMutation(ctx, taskID, actorID, func(t *models.Task) error {
		i, err := findItem(t, itemID)
		if err != nil {
			return err
		}
		item := t.Checklist[i]
		t.Checklist = slices.Delete(t.Checklist, i, i+1)
		s.appendActivity(t, models.ChecklistDeletedActivity, actorID,
			fmt.Sprintf("deleted checklist item %q", item.Text), map[string]any{"item": item.ID})
		return nil
	})
}
