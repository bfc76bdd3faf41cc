package storage

import (
	"context"
	"errors"
	"time"

	"github.com/ignatij/taskflow/pkg/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the storage operations for task documents and their satellites.
// Begin returns a transaction-scoped Store; GetTaskForUpdate inside a transaction
// holds the task's row lock until Commit or Rollback.
type Store interface {
	Begin() (Store, error)
	Commit() error
	Rollback() error
	Close() error

	// Task operations
	SaveTask(ctx context.Context, t models.Task) error
	UpdateTask(ctx context.Context, t models.Task) error
	GetTask(ctx context.Context, id string) (models.Task, error)
	GetTaskForUpdate(ctx context.Context, id string) (models.Task, error)
	GetTasks(ctx context.Context, ids []string) ([]models.Task, error)
	// LockTree serializes changes to the parent/subtask structure until the
	// surrounding transaction ends.
	LockTree(ctx context.Context) error
	ListTasks(ctx context.Context, filter models.TaskFilter) ([]models.Task, error)
	// DeleteTasks removes the tasks together with their comments.
	DeleteTasks(ctx context.Context, ids []string) error

	// Comment operations
	SaveComment(ctx context.Context, c models.Comment) error
	ListComments(ctx context.Context, taskID string) ([]models.Comment, error)

	// Notification operations
	SaveNotification(ctx context.Context, n models.Notification) error
	ListNotifications(ctx context.Context, recipient string) ([]models.Notification, error)
}

// Directory resolves users and groups and records per-user completion statistics.
type Directory interface {
	GetUser(ctx context.Context, id string) (models.User, error)
	ListUsers(ctx context.Context, filter models.UserFilter) ([]models.User, error)
	GetGroup(ctx context.Context, id string) (models.Group, error)
	RecordTaskCompletion(ctx context.Context, userID string, at time.Time) error
}
