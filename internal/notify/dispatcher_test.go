package notify_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ignatij/taskflow/internal/notify"
	"github.com/ignatij/taskflow/pkg/models"
	"github.com/ignatij/taskflow/pkg/storage"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingSink struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *blockingSink) Deliver(ctx context.Context, _ models.Notification) error {
	s.once.Do(func() { close(s.started) })
	select {
	case <-s.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type failingSink struct{}

func (failingSink) Deliver(context.Context, models.Notification) error {
	return errors.New("mailbox unavailable")
}

func notification(recipient string) models.Notification {
	return models.Notification{
		ID:        "n-" + recipient,
		Recipient: recipient,
		Sender:    "lead",
		Type:      models.TaskAssignedNotification,
		TaskID:    "t1",
		Message:   "You have been assigned",
		CreatedAt: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC),
	}
}

func TestDispatcher(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers queued notifications before stopping", func(t *testing.T) {
		logger, _ := test.NewNullLogger()
		store := storage.NewMockStore()
		d := notify.NewDispatcher(ctx, notify.StoreSink{Store: store}, logger)
		d.Start(2, 16)

		for _, r := range []string{"emp1", "emp2", "emp1"} {
			require.NoError(t, d.Notify(ctx, notification(r)))
		}
		d.Stop()

		got, err := store.ListNotifications(ctx, "emp1")
		require.NoError(t, err)
		assert.Len(t, got, 2)
		got, err = store.ListNotifications(ctx, "emp2")
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("full queue drops instead of blocking", func(t *testing.T) {
		logger, _ := test.NewNullLogger()
		sink := &blockingSink{started: make(chan struct{}), release: make(chan struct{})}
		d := notify.NewDispatcher(ctx, sink, logger)
		d.Start(1, 1)

		require.NoError(t, d.Notify(ctx, notification("a")))
		<-sink.started
		require.NoError(t, d.Notify(ctx, notification("b")))

		err := d.Notify(ctx, notification("c"))
		assert.True(t, errors.Is(err, notify.ErrQueueFull), "got %v", err)

		close(sink.release)
		d.Stop()
	})

	t.Run("stopped dispatcher rejects notifications", func(t *testing.T) {
		logger, _ := test.NewNullLogger()
		d := notify.NewDispatcher(ctx, notify.LogSink{Logger: logger}, logger)
		assert.Equal(t, notify.ErrStopped, d.Notify(ctx, notification("a")))

		d.Start(1, 4)
		d.Stop()
		d.Stop()
		assert.Equal(t, notify.ErrStopped, d.Notify(ctx, notification("a")))
	})

	t.Run("delivery failures are logged", func(t *testing.T) {
		logger, hook := test.NewNullLogger()
		d := notify.NewDispatcher(ctx, failingSink{}, logger)
		d.Start(1, 4)
		require.NoError(t, d.Notify(ctx, notification("emp1")))
		d.Stop()

		var failures []*logrus.Entry
		for _, e := range hook.AllEntries() {
			if e.Level == logrus.ErrorLevel {
				failures = append(failures, e)
			}
		}
		require.Len(t, failures, 1)
		assert.Contains(t, failures[0].Message, "mailbox unavailable")
		assert.Equal(t, "emp1", failures[0].Data["recipient"])
	})

	t.Run("log sink writes structured fields", func(t *testing.T) {
		logger, hook := test.NewNullLogger()
		require.NoError(t, notify.LogSink{Logger: logger}.Deliver(ctx, notification("emp2")))
		entry := hook.LastEntry()
		require.NotNil(t, entry)
		assert.Equal(t, "You have been assigned", entry.Message)
		assert.Equal(t, "emp2", entry.Data["recipient"])
		assert.Equal(t, models.TaskAssignedNotification, entry.Data["type"])
	})
}
