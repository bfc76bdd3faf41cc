package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/ignatij/taskflow/pkg/models"
	"github.com/ignatij/taskflow/pkg/storage"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockStoreTransactions(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

	t.Run("writes become visible on commit", func(t *testing.T) {
		store := storage.NewMockStore()
		tx, err := store.Begin()
		require.NoError(t, err)
		require.NoError(t, tx.SaveTask(ctx, models.Task{ID: "t1", CreatedAt: now}))

		_, err = store.GetTask(ctx, "t1")
		assert.True(t, errors.Is(err, storage.ErrNotFound))
		_, err = tx.GetTask(ctx, "t1")
		assert.NoError(t, err)

		require.NoError(t, tx.Commit())
		_, err = store.GetTask(ctx, "t1")
		assert.NoError(t, err)

		assert.Error(t, tx.Commit())
		assert.Error(t, tx.SaveTask(ctx, models.Task{ID: "t2"}))
	})

	t.Run("rollback discards writes", func(t *testing.T) {
		store := storage.NewMockStore()
		require.NoError(t, store.SaveTask(ctx, models.Task{ID: "t1", Title: "before"}))
		tx, err := store.Begin()
		require.NoError(t, err)
		require.NoError(t, tx.UpdateTask(ctx, models.Task{ID: "t1", Title: "after"}))
		require.NoError(t, tx.DeleteTasks(ctx, []string{"t1"}))
		require.NoError(t, tx.Rollback())

		got, err := store.GetTask(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, "before", got.Title)
	})

	t.Run("transactions do not nest", func(t *testing.T) {
		store := storage.NewMockStore()
		tx, err := store.Begin()
		require.NoError(t, err)
		_, err = tx.Begin()
		assert.Error(t, err)
		assert.Error(t, store.Commit())
	})

	t.Run("tree lock needs an open transaction", func(t *testing.T) {
		store := storage.NewMockStore()
		assert.Error(t, store.LockTree(ctx))
		tx, err := store.Begin()
		require.NoError(t, err)
		require.NoError(t, tx.LockTree(ctx))
		require.NoError(t, tx.Commit())
		assert.Error(t, tx.LockTree(ctx))
	})

	t.Run("returned tasks are copies", func(t *testing.T) {
		store := storage.NewMockStore()
		require.NoError(t, store.SaveTask(ctx, models.Task{ID: "t1", AssignedTo: []string{"emp1"}}))
		got, err := store.GetTask(ctx, "t1")
		require.NoError(t, err)
		got.AssignedTo[0] = "emp2"
		again, err := store.GetTask(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, []string{"emp1"}, again.AssignedTo)
	})

	t.Run("deleting tasks drops their comments", func(t *testing.T) {
		store := storage.NewMockStore()
		require.NoError(t, store.SaveTask(ctx, models.Task{ID: "t1"}))
		require.NoError(t, store.SaveComment(ctx, models.Comment{ID: "c1", TaskID: "t1"}))
		tx, err := store.Begin()
		require.NoError(t, err)
		require.NoError(t, tx.DeleteTasks(ctx, []string{"t1"}))
		require.NoError(t, tx.Commit())

		comments, err := store.ListComments(ctx, "t1")
		require.NoError(t, err)
		assert.Empty(t, comments)
	})

	t.Run("listing order is newest first", func(t *testing.T) {
		store := storage.NewMockStore()
		require.NoError(t, store.SaveTask(ctx, models.Task{ID: "old", CreatedAt: now}))
		require.NoError(t, store.SaveTask(ctx, models.Task{ID: "new", CreatedAt: now.Add(time.Minute)}))
		require.NoError(t, store.SaveTask(ctx, models.Task{ID: "tie", CreatedAt: now.Add(time.Minute)}))
		tasks, err := store.ListTasks(ctx, models.TaskFilter{})
		require.NoError(t, err)
		require.Len(t, tasks, 3)
		assert.Equal(t, "tie", tasks[0].ID)
		assert.Equal(t, "new", tasks[1].ID)
		assert.Equal(t, "old", tasks[2].ID)
	})
}

func TestMockStoreDirectory(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMockStore()
	store.AddUser(models.User{ID: "b", Name: "Bo", Department: models.EngineeringDepartment})
	store.AddUser(models.User{ID: "a", Name: "Al", Department: models.EngineeringDepartment})
	store.AddUser(models.User{ID: "c", Name: "Cy", Department: models.DesignDepartment})
	store.AddGroup(models.Group{ID: "g1", Members: []string{"a"}})

	u, err := store.GetUser(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"g1"}, u.Groups)

	users, err := store.ListUsers(ctx, models.UserFilter{Department: models.EngineeringDepartment})
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "a", users[0].ID)

	users, err = store.ListUsers(ctx, models.UserFilter{IDs: []string{}})
	require.NoError(t, err)
	assert.Empty(t, users)

	require.NoError(t, store.RecordTaskCompletion(ctx, "a", time.Now()))
	u, err = store.GetUser(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, u.TasksCompleted)
	assert.True(t, errors.Is(store.RecordTaskCompletion(ctx, "zz", time.Now()), storage.ErrNotFound))
}
