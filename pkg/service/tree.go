package service

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/ignatij/taskflow/pkg/models"
	"github.com/ignatij/taskflow/pkg/storage"
	"github.com/pkg/errors"
)

// maxTreeDepth bounds every walk over the subtask tree.
const maxTreeDepth = 64

// taskReader is the read side shared by Store and its transactions.
type taskReader interface {
	GetTasks(ctx context.Context, ids []string) ([]models.Task, error)
}

// collectSubtree returns root's id followed by every descendant id, breadth first.
func collectSubtree(ctx context.Context, r taskReader, root models.Task) ([]string, error) {
	ids := []string{root.ID}
	seen := map[string]bool{root.ID: true}
	frontier := []models.Task{root}
	for depth := 0; len(frontier) > 0; depth++ {
		if depth > maxTreeDepth {
			return nil, errors.Errorf("subtask tree under %s exceeds depth %d", root.ID, maxTreeDepth)
		}
		var childIDs []string
		for _, t := range frontier {
			for _, id := range t.Subtasks {
				if !seen[id] {
					seen[id] = true
					childIDs = append(childIDs, id)
				}
			}
		}
		if len(childIDs) == 0 {
			break
		}
		children, err := r.GetTasks(ctx, childIDs)
		if err != nil {
			return nil, errors.Wrap(err, "failed to load subtasks")
		}
		for _, c := range children {
			ids = append(ids, c.ID)
		}
		frontier = children
	}
	return ids, nil
}

// recomputeProgress sets t's derived progress from its checklist and the
// stored progress of its subtasks. Missing subtasks are ignored.
func recomputeProgress(ctx context.Context, r taskReader, t *models.Task) error {
	var subtaskProgress []int
	if len(t.Subtasks) > 0 {
		subs, err := r.GetTasks(ctx, t.Subtasks)
		if err != nil {
			return errors.Wrapf(err, "failed to load subtasks of %s", t.ID)
		}
		for _, sub := range subs {
			subtaskProgress = append(subtaskProgress, sub.ProgressPercentage)
		}
	}
	t.ProgressPercentage = ComputeProgress(t.Checklist, subtaskProgress)
	return nil
}

// PropagateProgressUpward recomputes taskID and then each ancestor in turn.
// Every step is its own locked read-modify-write; no lock is held across the
// walk. Failures are logged and stop the walk.
func (s *TaskService) PropagateProgressUpward(ctx context.Context, taskID string) {
	visited := make(map[string]bool)
	for id := taskID; id != ""; {
		if visited[id] || len(visited) > maxTreeDepth {
			s.logger.Errorf("Progress propagation from %s stopped at %s: ancestor chain loops or is too deep", taskID, id)
			return
		}
		visited[id] = true
		t, err := s.mutate(ctx, id, func(tx storage.Store, t *models.Task) error {
			return recomputeProgress(ctx, tx, t)
		})
		if err != nil {
			s.logger.Errorf("Failed to recompute progress of task %s: %v", id, err)
			return
		}
		id = t.ParentTask
	}
}

// CreateSubtask creates an Open task under parentID inheriting the parent's
// department, due date and color.
func (s *TaskService) CreateSubtask(ctx context.Context, parentID, title, actorID string) (models.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return models.Task{}, invalidf("subtask title is required")
	}
	if _, err := s.resolveUser(ctx, actorID); err != nil {
		return models.Task{}, err
	}

	var child, parent models.Task
	childID := uuid.NewString()
	err := s.inTx(ctx, []string{parentID, childID}, func(tx storage.Store) error {
		var err error
		parent, err = tx.GetTaskForUpdate(ctx, parentID)
		if err != nil {
			return lookupErr(err, "task", parentID)
		}
		now := s.now()
		child = models.Task{
			ID:         childID,
			Title:      title,
			Priority:   models.MediumPriority,
			Status:     models.OpenTaskStatus,
			Department: parent.Department,
			Tags:       []string{},
			Color:      parent.Color,
			CreatedBy:  actorID,
			DueDate:    parent.DueDate,
			CreatedAt:  now,
			UpdatedAt:  now,
			ParentTask: parent.ID,
			Subtasks:   []string{},
		}
		s.appendActivity(&child, models.CreatedActivity, actorID, fmt.Sprintf("created subtask %q", title),
			map[string]any{"parentTask": parent.ID})
		if err := tx.SaveTask(ctx, child); err != nil {
			return errors.Wrap(err, "failed to save subtask")
		}

		parent.Subtasks = append(parent.Subtasks, child.ID)
		if err := recomputeProgress(ctx, tx, &parent); err != nil {
			return err
		}
		s.appendActivity(&parent, models.SubtaskAddedActivity, actorID, fmt.Sprintf("added subtask %q", title),
			map[string]any{"subtask": child.ID})
		parent.UpdatedAt = now
		if err := tx.UpdateTask(ctx, parent); err != nil {
			return errors.Wrapf(err, "failed to update task %s", parent.ID)
		}
		return nil
	})
	if err != nil {
		return models.Task{}, err
	}
	s.logger.Infof("Created subtask %s under task %s", child.ID, parentID)
	s.PropagateProgressUpward(ctx, parent.ParentTask)
	return child, nil
}

// LinkSubtask makes an existing top-level task a subtask of parentID. The link
// is rejected when the candidate already has a parent or when parentID lies in
// the candidate's own subtree. Links are serialized across the whole tree.
func (s *TaskService) LinkSubtask(ctx context.Context, parentID, candidateID, actorID string) (models.Task, error) {
	if parentID == candidateID {
		return models.Task{}, ErrSelfLink.withMsg("task %s cannot be its own subtask", parentID)
	}
	if _, err := s.resolveUser(ctx, actorID); err != nil {
		return models.Task{}, err
	}
	s.treeMu.Lock()
	defer s.treeMu.Unlock()

	var parent models.Task
	err := s.inTx(ctx, []string{parentID, candidateID}, func(tx storage.Store) error {
		if err := tx.LockTree(ctx); err != nil {
			return errors.Wrap(err, "failed to lock task tree")
		}
		var err error
		parent, err = tx.GetTaskForUpdate(ctx, parentID)
		if err != nil {
			return lookupErr(err, "task", parentID)
		}
		candidate, err := tx.GetTaskForUpdate(ctx, candidateID)
		if err != nil {
			return lookupErr(err, "task", candidateID)
		}
		if candidate.HasParent() {
			return ErrAlreadyHasParent.withMsg("task %s already belongs to %s", candidateID, candidate.ParentTask)
		}
		subtree, err := collectSubtree(ctx, tx, candidate)
		if err != nil {
			return err
		}
		if slices.Contains(subtree, parentID) {
			return ErrCycle.withMsg("linking %s under %s would create a cycle", candidateID, parentID)
		}

		now := s.now()
		candidate.ParentTask = parentID
		candidate.UpdatedAt = now
		if err := tx.UpdateTask(ctx, candidate); err != nil {
			return errors.Wrapf(err, "failed to update task %s", candidateID)
		}
		if !slices.Contains(parent.Subtasks, candidateID) {
			parent.Subtasks = append(parent.Subtasks, candidateID)
		}
		if err := recomputeProgress(ctx, tx, &parent); err != nil {
			return err
		}
		s.appendActivity(&parent, models.SubtaskLinkedActivity, actorID,
			fmt.Sprintf("linked %q as a subtask", candidate.Title), map[string]any{"subtask": candidateID})
		parent.UpdatedAt = now
		if err := tx.UpdateTask(ctx, parent); err != nil {
			return errors.Wrapf(err, "failed to update task %s", parentID)
		}
		return nil
	})
	if err != nil {
		return models.Task{}, err
	}
	s.logger.Infof("Linked task %s under %s", candidateID, parentID)
	s.PropagateProgressUpward(ctx, parent.ParentTask)
	return parent, nil
}

// UnlinkSubtask detaches subtaskID from parentID; it becomes a top-level task.
func (s *TaskService) UnlinkSubtask(ctx context.Context, parentID, subtaskID, actorID string) (models.Task, error) {
	if _, err := s.resolveUser(ctx, actorID); err != nil {
		return models.Task{}, err
	}
	var parent models.Task
	err := s.inTx(ctx, []string{parentID, subtaskID}, func(tx storage.Store) error {
		var err error
		parent, err = tx.GetTaskForUpdate(ctx, parentID)
		if err != nil {
			return lookupErr(err, "task", parentID)
		}
		sub, err := tx.GetTaskForUpdate(ctx, subtaskID)
		if err != nil {
			return lookupErr(err, "task", subtaskID)
		}
		if sub.ParentTask != parentID {
			return ErrNotLinked.withMsg("task %s is not a subtask of %s", subtaskID, parentID)
		}

		now := s.now()
		sub.ParentTask = ""
		sub.UpdatedAt = now
		if err := tx.UpdateTask(ctx, sub); err != nil {
			return errors.Wrapf(err, "failed to update task %s", subtaskID)
		}
		parent.Subtasks = slices.DeleteFunc(parent.Subtasks, func(id string) bool { return id == subtaskID })
		if err := recomputeProgress(ctx, tx, &parent); err != nil {
			return err
		}
		s.appendActivity(&parent, models.SubtaskUnlinkedActivity, actorID,
			fmt.Sprintf("unlinked subtask %q", sub.Title), map[string]any{"subtask": subtaskID})
		parent.UpdatedAt = now
		if err := tx.UpdateTask(ctx, parent); err != nil {
			return errors.Wrapf(err, "failed to update task %s", parentID)
		}
		return nil
	})
	if err != nil {
		return models.Task{}, err
	}
	s.logger.Infof("Unlinked task %s from %s", subtaskID, parentID)
	s.PropagateProgressUpward(ctx, parent.ParentTask)
	return parent, nil
}

// Subtasks returns the resolved subtasks of taskID in link order.
func (s *TaskService) Subtasks(ctx context.Context, taskID string) ([]models.Task, error) {
	t, err := s.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	subs, err := s.store.GetTasks(ctx, t.Subtasks)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load subtasks of %s", taskID)
	}
	return subs, nil
}
