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

// AddComment stores a comment, logs it on the task and notifies the creator
// and every assignee except the author.
func (s *TaskService) AddComment(ctx context.Context, taskID, authorID, text string) (models.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Comment{}, invalidf("comment text is required")
	}
	author, err := s.resolveUser(ctx, authorID)
	if err != nil {
		return models.Comment{}, err
	}

	c := models.Comment{
		ID:        uuid.NewString(),
		TaskID:    taskID,
		Author:    author.ID,
		Text:      text,
		CreatedAt: s.now(),
	}
	t, err := s.mutate(ctx, taskID, func(tx storage.Store, t *models.Task) error {
		if err := tx.SaveComment(ctx, c); err != nil {
			return errors.Wrap(err, "failed to save comment")
		}
		s.appendActivity(t, models.CommentAddedActivity, author.ID, fmt.Sprintf("%s commented", author.Name),
			map[string]any{"comment": c.ID})
		return nil
	})
	if err != nil {
		return models.Comment{}, err
	}
	s.logger.Infof("User %s commented on task %s", authorID, taskID)

	recipients := append([]string{t.CreatedBy}, t.AssignedTo...)
	slices.Sort(recipients)
	for _, id := range slices.Compact(recipients) {
		s.notify(ctx, id, author.ID, models.TaskCommentNotification, t.ID,
			fmt.Sprintf("%s commented on %q", author.Name, t.Title))
	}
	return c, nil
}

// ListComments returns the task's comments, oldest first.
func (s *TaskService) ListComments(ctx context.Context, taskID string) ([]models.Comment, error) {
	if _, err := s.GetTask(ctx, taskID); err != nil {
		return nil, err
	}
	comments, err := s.store.ListComments(ctx, taskID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list comments of task %s", taskID)
	}
	return comments, nil
}
