package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ignatij/taskflow/pkg/models"
	"github.com/ignatij/taskflow/pkg/storage"
	"github.com/pkg/errors"
)

const dateLayout = "2006-01-02"

// NewTask carries the fields accepted when creating a task.
type NewTask struct {
	Title           string                 `json:"title"`
	Description     string                 `json:"description"`
	Priority        models.Priority        `json:"priority"`
	Status          models.TaskStatus      `json:"status"`
	Department      models.Department      `json:"department"`
	Tags            []string               `json:"tags"`
	Color           string                 `json:"color"`
	AssignedTo      []string               `json:"assignedTo"`
	AssignedGroups  []string               `json:"assignedGroups"`
	StartDate       *time.Time             `json:"startDate"`
	DueDate         time.Time              `json:"dueDate"`
	Checklist       []models.ChecklistItem `json:"checklist"`
	IsOpenForClaims bool                   `json:"isOpenForClaims"`
}

// TaskPatch is a partial update; nil fields are left untouched.
type TaskPatch struct {
	Title              *string            `json:"title"`
	Description        *string            `json:"description"`
	Status             *models.TaskStatus `json:"status"`
	Priority           *models.Priority   `json:"priority"`
	Color              *string            `json:"color"`
	DueDate            *time.Time         `json:"dueDate"`
	ProgressPercentage *int               `json:"progressPercentage"`
	Tags               *[]string          `json:"tags"`
}

func (n *NewTask) validate() error {
	n.Title = strings.TrimSpace(n.Title)
	if n.Title == "" {
		return invalidf("title is required")
	}
	if n.DueDate.IsZero() {
		return invalidf("due date is required")
	}
	if n.Priority == "" {
		n.Priority = models.MediumPriority
	}
	if !n.Priority.Valid() {
		return invalidf("unknown priority %q", n.Priority)
	}
	if n.Status == "" {
		n.Status = models.OpenTaskStatus
	}
	if n.Status != models.OpenTaskStatus && n.Status != models.PendingTaskStatus {
		return invalidf("a new task must start Open or Pending, got %q", n.Status)
	}
	if n.Department == "" {
		n.Department = models.GeneralDepartment
	}
	if !n.Department.Valid() {
		return invalidf("unknown department %q", n.Department)
	}
	for _, item := range n.Checklist {
		if strings.TrimSpace(item.Text) == "" {
			return invalidf("checklist item text is required")
		}
	}
	return nil
}

// CreateTask validates and stores a new top-level task. A checklist given at
// creation seeds the progress percentage.
func (s *TaskService) CreateTask(ctx context.Context, actorID string, in NewTask) (models.Task, error) {
	if err := in.validate(); err != nil {
		return models.Task{}, err
	}
	if _, err := s.resolveUser(ctx, actorID); err != nil {
		return models.Task{}, err
	}
	assignees := uniqueNonEmpty(in.AssignedTo)
	for _, id := range assignees {
		if _, err := s.resolveUser(ctx, id); err != nil {
			return models.Task{}, err
		}
	}
	groups := uniqueNonEmpty(in.AssignedGroups)
	for _, id := range groups {
		if _, err := s.dir.GetGroup(ctx, id); err != nil {
			return models.Task{}, lookupErr(err, "group", id)
		}
	}

	now := s.now()
	t := models.Task{
		ID:              uuid.NewString(),
		Title:           in.Title,
		Description:     in.Description,
		Priority:        in.Priority,
		Status:          in.Status,
		Department:      in.Department,
		Tags:            uniqueNonEmpty(in.Tags),
		Color:           in.Color,
		CreatedBy:       actorID,
		AssignedTo:      assignees,
		AssignedGroups:  groups,
		StartDate:       in.StartDate,
		DueDate:         in.DueDate,
		CreatedAt:       now,
		UpdatedAt:       now,
		Subtasks:        []string{},
		IsOpenForClaims: in.IsOpenForClaims,
	}
	for _, item := range in.Checklist {
		item.ID = uuid.NewString()
		item.Text = strings.TrimSpace(item.Text)
		if item.IsCompleted {
			if item.CompletedAt == nil {
				item.CompletedAt = &now
			}
			if item.CompletedBy == "" {
				item.CompletedBy = actorID
			}
		} else {
			item.CompletedAt = nil
			item.CompletedBy = ""
		}
		t.Checklist = append(t.Checklist, item)
	}
	t.ProgressPercentage = ComputeProgress(t.Checklist, nil)
	s.appendActivity(&t, models.CreatedActivity, actorID, fmt.Sprintf("created task %q", t.Title), nil)

	err := s.inTx(ctx, []string{t.ID}, func(tx storage.Store) error {
		return tx.SaveTask(ctx, t)
	})
	if err != nil {
		return models.Task{}, errors.Wrap(err, "failed to save task")
	}
	s.logger.Infof("Created task '%s' with ID %s", t.Title, t.ID)

	for _, id := range t.AssignedTo {
		s.notify(ctx, id, actorID, models.TaskAssignedNotification, t.ID,
			fmt.Sprintf("You have been assigned to %q", t.Title))
	}
	return t, nil
}

// UpdateTask applies a partial patch and records one activity entry per
// changed tracked field. Any status may follow any other status.
func (s *TaskService) UpdateTask(ctx context.Context, taskID, actorID string, patch TaskPatch) (models.Task, error) {
	if _, err := s.resolveUser(ctx, actorID); err != nil {
		return models.Task{}, err
	}
	var completed, progressChanged bool
	t, err := s.mutate(ctx, taskID, func(_ storage.Store, t *models.Task) error {
		before := t.ProgressPercentage
		var err error
		completed, err = s.applyUpdate(t, patch, actorID)
		progressChanged = t.ProgressPercentage != before
		return err
	})
	if err != nil {
		return models.Task{}, err
	}
	s.logger.Infof("Updated task %s", taskID)

	if completed {
		s.recordCompletion(ctx, t)
	}
	if progressChanged && t.HasParent() {
		s.PropagateProgressUpward(ctx, t.ParentTask)
	}
	return t, nil
}

// applyUpdate mutates t according to patch. It reports whether the task
// transitioned into Completed.
func (s *TaskService) applyUpdate(t *models.Task, p TaskPatch, actorID string) (bool, error) {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return false, invalidf("title cannot be empty")
	}
	if p.Status != nil && !p.Status.Valid() {
		return false, invalidf("unknown status %q", *p.Status)
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return false, invalidf("unknown priority %q", *p.Priority)
	}
	if p.DueDate != nil && p.DueDate.IsZero() {
		return false, invalidf("due date cannot be cleared")
	}
	if p.ProgressPercentage != nil && (*p.ProgressPercentage < 0 || *p.ProgressPercentage > 100) {
		return false, invalidf("progress percentage must be within 0..100, got %d", *p.ProgressPercentage)
	}

	completed := false
	if p.Status != nil && *p.Status != t.Status {
		from, to := t.Status, *p.Status
		t.Status = to
		switch {
		case to == models.CompletedTaskStatus:
			now := s.now()
			t.CompletedDate = &now
			completed = true
		case from == models.CompletedTaskStatus:
			t.CompletedDate = nil
		}
		s.appendActivity(t, models.StatusChangedActivity, actorID,
			fmt.Sprintf("changed status from %s to %s", from, to),
			map[string]any{"from": string(from), "to": string(to)})
	}
	if p.Priority != nil && *p.Priority != t.Priority {
		from, to := t.Priority, *p.Priority
		t.Priority = to
		s.appendActivity(t, models.PriorityChangedActivity, actorID,
			fmt.Sprintf("changed priority from %s to %s", from, to),
			map[string]any{"from": string(from), "to": string(to)})
	}
	if p.Title != nil {
		to := strings.TrimSpace(*p.Title)
		if to != t.Title {
			from := t.Title
			t.Title = to
			s.appendActivity(t, models.TitleChangedActivity, actorID,
				fmt.Sprintf("changed title from %q to %q", from, to),
				map[string]any{"from": from, "to": to})
		}
	}
	if p.Description != nil && *p.Description != t.Description {
		from := t.Description
		t.Description = *p.Description
		s.appendActivity(t, models.DescriptionChangedActivity, actorID, "updated the description",
			map[string]any{"from": from, "to": t.Description})
	}
	if p.DueDate != nil && !p.DueDate.Equal(t.DueDate) {
		from := t.DueDate
		t.DueDate = *p.DueDate
		s.appendActivity(t, models.DueDateChangedActivity, actorID,
			fmt.Sprintf("changed due date from %s to %s", from.Format(dateLayout), t.DueDate.Format(dateLayout)),
			map[string]any{"from": from.Format(time.RFC3339), "to": t.DueDate.Format(time.RFC3339)})
	}
	if p.Color != nil {
		t.Color = *p.Color
	}
	if p.Tags != nil {
		next := uniqueNonEmpty(*p.Tags)
		for _, tag := range next {
			if !slices.Contains(t.Tags, tag) {
				s.appendActivity(t, models.TagAddedActivity, actorID, fmt.Sprintf("added tag %q", tag),
					map[string]any{"tag": tag})
			}
		}
		for _, tag := range t.Tags {
			if !slices.Contains(next, tag) {
				s.appendActivity(t, models.TagRemovedActivity, actorID, fmt.Sprintf("removed tag %q", tag),
					map[string]any{"tag": tag})
			}
		}
		t.Tags = next
	}
	if p.ProgressPercentage != nil {
		t.ProgressPercentage = *p.ProgressPercentage
	}
	return completed, nil
}

// recordCompletion updates completion statistics of every assignee. Failures
// are logged; the status change itself is already committed.
func (s *TaskService) recordCompletion(ctx context.Context, t models.Task) {
	at := s.now()
	if t.CompletedDate != nil {
		at = *t.CompletedDate
	}
	for _, userID := range t.AssignedTo {
		if err := s.dir.RecordTaskCompletion(ctx, userID, at); err != nil {
			s.logger.Errorf("Failed to record completion of task %s for user %s: %v", t.ID, userID, err)
		}
	}
}

// ArchiveTask hides a task from listings without touching its history.
func (s *TaskService) ArchiveTask(ctx context.Context, taskID string) (models.Task, error) {
	return s.setArchived(ctx, taskID, true)
}

func (s *TaskService) UnarchiveTask(ctx context.Context, taskID string) (models.Task, error) {
	return s.setArchived(ctx, taskID, false)
}

func (s *TaskService) setArchived(ctx context.Context, taskID string, archived bool) (models.Task, error) {
	t, err := s.mutate(ctx, taskID, func(_ storage.Store, t *models.Task) error {
		t.IsArchived = archived
		return nil
	})
	if err != nil {
		return models.Task{}, err
	}
	s.logger.Infof("Set archived=%t on task %s", archived, taskID)
	return t, nil
}

// DeleteTask removes a task with its whole subtask subtree and their comments.
// A deleted subtask is also detached from its parent, which logs the removal.
func (s *TaskService) DeleteTask(ctx context.Context, taskID, actorID string) error {
	if _, err := s.resolveUser(ctx, actorID); err != nil {
		return err
	}
	root, err := s.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	ids, err := collectSubtree(ctx, s.store, root)
	if err != nil {
		return err
	}
	lockIDs := slices.Clone(ids)
	if root.HasParent() {
		lockIDs = append(lockIDs, root.ParentTask)
	}

	var parentID string
	err = s.inTx(ctx, lockIDs, func(tx storage.Store) error {
		root, err := tx.GetTaskForUpdate(ctx, taskID)
		if err != nil {
			return lookupErr(err, "task", taskID)
		}
		ids, err := collectSubtree(ctx, tx, root)
		if err != nil {
			return err
		}
		if root.HasParent() {
			parent, err := tx.GetTaskForUpdate(ctx, root.ParentTask)
			switch {
			case errors.Is(err, storage.ErrNotFound):
				// dangling back-reference; nothing to detach from
			case err != nil:
				return errors.Wrapf(err, "failed to load parent %s", root.ParentTask)
			default:
				parent.Subtasks = slices.DeleteFunc(parent.Subtasks, func(id string) bool { return id == taskID })
				s.appendActivity(&parent, models.SubtaskUnlinkedActivity, actorID,
					fmt.Sprintf("deleted subtask %q", root.Title), map[string]any{"subtask": taskID, "deleted": true})
				parent.UpdatedAt = s.now()
				if err := tx.UpdateTask(ctx, parent); err != nil {
					return errors.Wrapf(err, "failed to detach task %s from %s", taskID, parent.ID)
				}
				parentID = parent.ID
			}
		}
		if err := tx.DeleteTasks(ctx, ids); err != nil {
			return errors.Wrapf(err, "failed to delete task %s", taskID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Infof("Deleted task %s with %d subtasks", taskID, len(ids)-1)
	if parentID != "" {
		s.PropagateProgressUpward(ctx, parentID)
	}
	return nil
}

func uniqueNonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v != "" && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}
