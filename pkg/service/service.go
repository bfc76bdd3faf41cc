package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ignatij/taskflow/pkg/models"
	"github.com/ignatij/taskflow/pkg/storage"
	"github.com/pkg/errors"
)

// Logger defines the logging interface for TaskService
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Notifier receives notification events. Delivery is fire-and-forget: a
// failure is logged and never undoes the task mutation that produced it.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

// Option customizes a TaskService.
type Option func(*TaskService)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(s *TaskService) { s.now = now }
}

// WithHierarchy replaces the delegation table.
func WithHierarchy(h RoleHierarchy) Option {
	return func(s *TaskService) { s.roles = h }
}

// TaskService implements the task lifecycle, assignment, subtask tree,
// checklist and comment operations. Each operation is a read-modify-write of
// one or two task documents under the per-task lock and a store transaction.
type TaskService struct {
	store    storage.Store
	dir      storage.Directory
	notifier Notifier
	logger   Logger
	roles    RoleHierarchy
	locks    *taskLocker
	now      func() time.Time

	// treeMu serializes subtask links so concurrent cycle checks see each other.
	treeMu sync.Mutex
}

func NewTaskService(store storage.Store, dir storage.Directory, notifier Notifier, logger Logger, opts ...Option) *TaskService {
	s := &TaskService{
		store:    store,
		dir:      dir,
		notifier: notifier,
		logger:   logger,
		roles:    DefaultHierarchy,
		locks:    newTaskLocker(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Roles exposes the delegation table used for candidate filtering.
func (s *TaskService) Roles() RoleHierarchy {
	return s.roles
}

// inTx runs fn inside a transaction while holding the locks of ids. The
// transaction commits when fn succeeds and rolls back otherwise.
func (s *TaskService) inTx(ctx context.Context, ids []string, fn func(tx storage.Store) error) (err error) {
	unlock := s.locks.Lock(ids...)
	defer unlock()

	txStore, err := s.store.Begin()
	if err != nil {
		s.logger.Errorf("Failed to begin transaction: %v", err)
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			if rollbackErr := txStore.Rollback(); rollbackErr != nil {
				s.logger.Errorf("Failed to rollback after error: %v (original error: %v)", rollbackErr, err)
			}
			return
		}
		if commitErr := txStore.Commit(); commitErr != nil {
			s.logger.Errorf("Failed to commit: %v", commitErr)
			err = errors.Wrap(commitErr, "failed to commit")
		}
	}()

	return fn(txStore)
}

// mutate loads one task for update, applies fn and writes the result back.
func (s *TaskService) mutate(ctx context.Context, taskID string, fn func(tx storage.Store, t *models.Task) error) (models.Task, error) {
	var out models.Task
	err := s.inTx(ctx, []string{taskID}, func(tx storage.Store) error {
		t, err := tx.GetTaskForUpdate(ctx, taskID)
		if err != nil {
			return lookupErr(err, "task", taskID)
		}
		if err := fn(tx, &t); err != nil {
			return err
		}
		t.UpdatedAt = s.now()
		if err := tx.UpdateTask(ctx, t); err != nil {
			return errors.Wrapf(err, "failed to update task %s", taskID)
		}
		out = t
		return nil
	})
	if err != nil {
		return models.Task{}, err
	}
	return out, nil
}

// GetTask fetches a task by id, archived or not.
func (s *TaskService) GetTask(ctx context.Context, id string) (models.Task, error) {
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return models.Task{}, lookupErr(err, "task", id)
	}
	return t, nil
}

// ListTasks lists top-level tasks. Subtasks never appear, archived tasks only
// when the filter asks for them.
func (s *TaskService) ListTasks(ctx context.Context, filter models.TaskFilter) ([]models.Task, error) {
	tasks, err := s.store.ListTasks(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list tasks")
	}
	return tasks, nil
}

func (s *TaskService) resolveUser(ctx context.Context, id string) (models.User, error) {
	if id == "" {
		return models.User{}, invalidf("user id is required")
	}
	u, err := s.dir.GetUser(ctx, id)
	if err != nil {
		return models.User{}, lookupErr(err, "user", id)
	}
	return u, nil
}

func (s *TaskService) notify(ctx context.Context, recipient, sender string, typ models.NotificationType, taskID, message string) {
	if s.notifier == nil || recipient == "" || recipient == sender {
		return
	}
	n := models.Notification{
		ID:        uuid.NewString(),
		Recipient: recipient,
		Sender:    sender,
		Type:      typ,
		TaskID:    taskID,
		Message:   message,
		CreatedAt: s.now(),
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Errorf("Failed to dispatch %s notification for task %s to %s: %v", typ, taskID, recipient, err)
	}
}
