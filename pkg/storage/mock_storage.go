package storage

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/ignatij/taskflow/pkg/models"
	"github.com/pkg/errors"
)

// memData is the state shared by a MockStore and every transaction begun from it.
type memData struct {
	mu            sync.RWMutex
	tasks         map[string]models.Task
	seq           map[string]int
	nextSeq       int
	comments      []models.Comment
	notifications []models.Notification
	users         map[string]models.User
	groups        map[string]models.Group
}

// memTx stages writes until Commit.
type memTx struct {
	tasks         map[string]models.Task
	deleted       map[string]bool
	comments      []models.Comment
	notifications []models.Notification
}

// MockStore implements Store and Directory with in-memory storage
type MockStore struct {
	data      *memData
	tx        *memTx
	committed bool
}

func NewMockStore() *MockStore {
	return &MockStore{data: &memData{
		tasks:  make(map[string]models.Task),
		seq:    make(map[string]int),
		users:  make(map[string]models.User),
		groups: make(map[string]models.Group),
	}}
}

// AddUser registers a directory user.
func (m *MockStore) AddUser(u models.User) {
	m.data.mu.Lock()
	defer m.data.mu.Unlock()
	u.Groups = nil
	m.data.users[u.ID] = u
}

// AddGroup registers a group and its members.
func (m *MockStore) AddGroup(g models.Group) {
	m.data.mu.Lock()
	defer m.data.mu.Unlock()
	g.Members = slices.Clone(g.Members)
	m.data.groups[g.ID] = g
}

func (m *MockStore) Begin() (Store, error) {
	if m.tx != nil {
		return nil, errors.New("nested transactions are not supported")
	}
	return &MockStore{data: m.data, tx: &memTx{
		tasks:   make(map[string]models.Task),
		deleted: make(map[string]bool),
	}}, nil
}

func (m *MockStore) Commit() error {
	if m.tx == nil {
		return errors.New("cannot commit: not a transaction")
	}
	if m.committed {
		return errors.New("already committed")
	}
	m.committed = true
	d := m.data
	d.mu.Lock()
	defer d.mu.Unlock()
	for id := range m.tx.deleted {
		delete(d.tasks, id)
		delete(d.seq, id)
	}
	if len(m.tx.deleted) > 0 {
		d.comments = slices.DeleteFunc(d.comments, func(c models.Comment) bool {
			return m.tx.deleted[c.TaskID]
		})
	}
	for id, t := range m.tx.tasks {
		if _, ok := d.seq[id]; !ok {
			d.nextSeq++
			d.seq[id] = d.nextSeq
		}
		d.tasks[id] = t
	}
	d.comments = append(d.comments, m.tx.comments...)
	d.notifications = append(d.notifications, m.tx.notifications...)
	return nil
}

func (m *MockStore) Rollback() error {
	if m.tx == nil {
		return errors.New("cannot rollback: not a transaction")
	}
	if m.committed {
		return errors.New("cannot rollback committed transaction")
	}
	// Staged changes are simply dropped with the transaction
	m.tx = &memTx{tasks: make(map[string]models.Task), deleted: make(map[string]bool)}
	m.committed = true
	return nil
}

func (m *MockStore) Close() error {
	return nil
}

func (m *MockStore) checkOpen() error {
	if m.committed {
		return errors.New("transaction already committed")
	}
	return nil
}

// lookup returns the task visible to this store: staged first, then committed.
func (m *MockStore) lookup(id string) (models.Task, bool) {
	if m.tx != nil {
		if m.tx.deleted[id] {
			return models.Task{}, false
		}
		if t, ok := m.tx.tasks[id]; ok {
			return t, true
		}
	}
	m.data.mu.RLock()
	defer m.data.mu.RUnlock()
	t, ok := m.data.tasks[id]
	return t, ok
}

func (m *MockStore) put(t models.Task) {
	if m.tx != nil {
		delete(m.tx.deleted, t.ID)
		m.tx.tasks[t.ID] = t.Clone()
		return
	}
	m.data.mu.Lock()
	defer m.data.mu.Unlock()
	if _, ok := m.data.seq[t.ID]; !ok {
		m.data.nextSeq++
		m.data.seq[t.ID] = m.data.nextSeq
	}
	m.data.tasks[t.ID] = t.Clone()
}

func (m *MockStore) SaveTask(_ context.Context, t models.Task) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	if _, ok := m.lookup(t.ID); ok {
		return errors.Errorf("task %s already exists", t.ID)
	}
	m.put(t)
	return nil
}

func (m *MockStore) UpdateTask(_ context.Context, t models.Task) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	if _, ok := m.lookup(t.ID); !ok {
		return ErrNotFound
	}
	m.put(t)
	return nil
}

func (m *MockStore) GetTask(_ context.Context, id string) (models.Task, error) {
	t, ok := m.lookup(id)
	if !ok {
		return models.Task{}, ErrNotFound
	}
	return t.Clone(), nil
}

// GetTaskForUpdate has no locking of its own; callers serialize per task.
func (m *MockStore) GetTaskForUpdate(ctx context.Context, id string) (models.Task, error) {
	if err := m.checkOpen(); err != nil {
		return models.Task{}, err
	}
	return m.GetTask(ctx, id)
}

// LockTree only checks for an open transaction; callers serialize tree changes.
func (m *MockStore) LockTree(_ context.Context) error {
	if m.tx == nil {
		return errors.New("cannot lock the task tree outside a transaction")
	}
	return m.checkOpen()
}

func (m *MockStore) GetTasks(_ context.Context, ids []string) ([]models.Task, error) {
	tasks := make([]models.Task, 0, len(ids))
	for _, id := range ids {
		if t, ok := m.lookup(id); ok {
			tasks = append(tasks, t.Clone())
		}
	}
	return tasks, nil
}

func (m *MockStore) ListTasks(_ context.Context, filter models.TaskFilter) ([]models.Task, error) {
	m.data.mu.RLock()
	ids := make([]string, 0, len(m.data.tasks))
	for id := range m.data.tasks {
		ids = append(ids, id)
	}
	seq := make(map[string]int, len(m.data.seq))
	for id, n := range m.data.seq {
		seq[id] = n
	}
	m.data.mu.RUnlock()
	if m.tx != nil {
		for id := range m.tx.tasks {
			if _, ok := seq[id]; !ok {
				ids = append(ids, id)
				seq[id] = int(^uint(0) >> 1)
			}
		}
	}

	tasks := []models.Task{}
	for _, id := range ids {
		t, ok := m.lookup(id)
		if !ok || !filter.Match(t) {
			continue
		}
		tasks = append(tasks, t.Clone())
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		if !tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
		}
		return seq[tasks[i].ID] > seq[tasks[j].ID]
	})
	return tasks, nil
}

func (m *MockStore) DeleteTasks(_ context.Context, ids []string) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	if m.tx != nil {
		for _, id := range ids {
			delete(m.tx.tasks, id)
			m.tx.deleted[id] = true
		}
		return nil
	}
	m.data.mu.Lock()
	defer m.data.mu.Unlock()
	gone := make(map[string]bool, len(ids))
	for _, id := range ids {
		delete(m.data.tasks, id)
		delete(m.data.seq, id)
		gone[id] = true
	}
	m.data.comments = slices.DeleteFunc(m.data.comments, func(c models.Comment) bool {
		return gone[c.TaskID]
	})
	return nil
}

func (m *MockStore) SaveComment(_ context.Context, c models.Comment) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	if m.tx != nil {
		m.tx.comments = append(m.tx.comments, c)
		return nil
	}
	m.data.mu.Lock()
	defer m.data.mu.Unlock()
	m.data.comments = append(m.data.comments, c)
	return nil
}

func (m *MockStore) ListComments(_ context.Context, taskID string) ([]models.Comment, error) {
	comments := []models.Comment{}
	m.data.mu.RLock()
	for _, c := range m.data.comments {
		if c.TaskID == taskID {
			comments = append(comments, c)
		}
	}
	m.data.mu.RUnlock()
	if m.tx != nil {
		for _, c := range m.tx.comments {
			if c.TaskID == taskID {
				comments = append(comments, c)
			}
		}
	}
	return comments, nil
}

func (m *MockStore) SaveNotification(_ context.Context, n models.Notification) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	if m.tx != nil {
		m.tx.notifications = append(m.tx.notifications, n)
		return nil
	}
	m.data.mu.Lock()
	defer m.data.mu.Unlock()
	m.data.notifications = append(m.data.notifications, n)
	return nil
}

func (m *MockStore) ListNotifications(_ context.Context, recipient string) ([]models.Notification, error) {
	m.data.mu.RLock()
	defer m.data.mu.RUnlock()
	out := []models.Notification{}
	for _, n := range m.data.notifications {
		if n.Recipient == recipient {
			out = append(out, n)
		}
	}
	return out, nil
}

// userGroups must be called with the data lock held.
func (m *MockStore) userGroups(userID string) []string {
	var groups []string
	for id, g := range m.data.groups {
		if slices.Contains(g.Members, userID) {
			groups = append(groups, id)
		}
	}
	sort.Strings(groups)
	return groups
}

func (m *MockStore) GetUser(_ context.Context, id string) (models.User, error) {
	m.data.mu.RLock()
	defer m.data.mu.RUnlock()
	u, ok := m.data.users[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	u.Groups = m.userGroups(id)
	return u, nil
}

func (m *MockStore) ListUsers(_ context.Context, filter models.UserFilter) ([]models.User, error) {
	m.data.mu.RLock()
	defer m.data.mu.RUnlock()
	users := []models.User{}
	for id, u := range m.data.users {
		if filter.Department != "" && u.Department != filter.Department {
			continue
		}
		if filter.IDs != nil && !slices.Contains(filter.IDs, id) {
			continue
		}
		u.Groups = m.userGroups(id)
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].Name != users[j].Name {
			return users[i].Name < users[j].Name
		}
		return users[i].ID < users[j].ID
	})
	return users, nil
}

func (m *MockStore) GetGroup(_ context.Context, id string) (models.Group, error) {
	m.data.mu.RLock()
	defer m.data.mu.RUnlock()
	g, ok := m.data.groups[id]
	if !ok {
		return models.Group{}, ErrNotFound
	}
	g.Members = slices.Clone(g.Members)
	return g, nil
}

func (m *MockStore) RecordTaskCompletion(_ context.Context, userID string, at time.Time) error {
	m.data.mu.Lock()
	defer m.data.mu.Unlock()
	u, ok := m.data.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.RecordCompletion(at)
	m.data.users[userID] = u
	return nil
}
