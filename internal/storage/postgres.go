package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ignatij/taskflow/pkg/models"
	"github.com/ignatij/taskflow/pkg/storage"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

type DBInterface interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// PostgresStore keeps each task as a JSONB document next to the columns used
// for filtering. Users, groups, comments and notifications are plain tables.
type PostgresStore struct {
	db DBInterface
}

var (
	_ storage.Store     = (*PostgresStore)(nil)
	_ storage.Directory = (*PostgresStore)(nil)
)

func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sqlx.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Begin() (storage.Store, error) {
	if db, ok := s.db.(*sqlx.DB); ok {
		tx, err := db.Beginx()
		if err != nil {
			return nil, err
		}
		return &PostgresStore{db: tx}, nil
	}
	return nil, fmt.Errorf("cannot begin transaction on unknown type")
}

func (s *PostgresStore) Commit() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Commit()
	}
	return fmt.Errorf("cannot commit: not a transaction")
}

func (s *PostgresStore) Rollback() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Rollback()
	}
	return fmt.Errorf("cannot rollback: not a transaction")
}

func (s *PostgresStore) Close() error {
	if db, ok := s.db.(*sqlx.DB); ok {
		return db.Close()
	}
	return nil // No-op for *sqlx.Tx
}

// inTx runs fn in the current transaction, or in a fresh one when s is not
// transactional.
func (s *PostgresStore) inTx(fn func(tx *PostgresStore) error) (err error) {
	if _, ok := s.db.(*sqlx.Tx); ok {
		return fn(s)
	}
	txStore, err := s.Begin()
	if err != nil {
		return err
	}
	tx := txStore.(*PostgresStore)
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()
	return fn(tx)
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func decodeTask(doc []byte) (models.Task, error) {
	var t models.Task
	if err := json.Unmarshal(doc, &t); err != nil {
		return models.Task{}, errors.Wrap(err, "decode task document")
	}
	return t, nil
}

// SaveTask inserts a new task document
func (s *PostgresStore) SaveTask(ctx context.Context, t models.Task) error {
	doc, err := json.Marshal(t)
	if err != nil {
		return errors.Wrap(err, "encode task document")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, parent_task, department, status, created_by, is_archived, created_at, updated_at, doc)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, nullString(t.ParentTask), t.Department, t.Status, t.CreatedBy, t.IsArchived, t.CreatedAt, t.UpdatedAt, doc)
	if err != nil {
		return fmt.Errorf("save task: %w", err)
	}
	return nil
}

// UpdateTask replaces the stored document of an existing task
func (s *PostgresStore) UpdateTask(ctx context.Context, t models.Task) error {
	doc, err := json.Marshal(t)
	if err != nil {
		return errors.Wrap(err, "encode task document")
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET parent_task = $1, department = $2, status = $3, is_archived = $4, updated_at = $5, doc = $6
		WHERE id = $7`,
		nullString(t.ParentTask), t.Department, t.Status, t.IsArchived, t.UpdatedAt, doc, t.ID)
	if err != nil {
		return fmt.Errorf("update task %s: %w", t.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) getTask(ctx context.Context, query, id string) (models.Task, error) {
	var doc []byte
	err := s.db.GetContext(ctx, &doc, query, id)
	if err == sql.ErrNoRows {
		return models.Task{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Task{}, err
	}
	return decodeTask(doc)
}

// GetTask retrieves a task document by ID
func (s *PostgresStore) GetTask(ctx context.Context, id string) (models.Task, error) {
	return s.getTask(ctx, "SELECT doc FROM tasks WHERE id = $1", id)
}

// GetTaskForUpdate retrieves a task and holds its row lock until the
// surrounding transaction ends.
func (s *PostgresStore) GetTaskForUpdate(ctx context.Context, id string) (models.Task, error) {
	if _, ok := s.db.(*sqlx.Tx); !ok {
		return models.Task{}, fmt.Errorf("cannot lock task %s outside a transaction", id)
	}
	return s.getTask(ctx, "SELECT doc FROM tasks WHERE id = $1 FOR UPDATE", id)
}

// treeLockKey is the advisory lock key guarding parent/subtask links.
const treeLockKey int64 = 0x7461736b74726565

// LockTree takes a transaction-scoped advisory lock shared by every process
// that links subtasks.
func (s *PostgresStore) LockTree(ctx context.Context) error {
	if _, ok := s.db.(*sqlx.Tx); !ok {
		return fmt.Errorf("cannot lock the task tree outside a transaction")
	}
	if _, err := s.db.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", treeLockKey); err != nil {
		return errors.Wrap(err, "lock task tree")
	}
	return nil
}

// GetTasks retrieves the existing tasks among ids, in the order of ids
func (s *PostgresStore) GetTasks(ctx context.Context, ids []string) ([]models.Task, error) {
	if len(ids) == 0 {
		return []models.Task{}, nil
	}
	var rows []struct {
		ID  string `db:"id"`
		Doc []byte `db:"doc"`
	}
	if err := s.db.SelectContext(ctx, &rows, "SELECT id, doc FROM tasks WHERE id = ANY($1)", pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("get tasks: %w", err)
	}
	byID := make(map[string]models.Task, len(rows))
	for _, r := range rows {
		t, err := decodeTask(r.Doc)
		if err != nil {
			return nil, err
		}
		byID[r.ID] = t
	}
	tasks := make([]models.Task, 0, len(rows))
	for _, id := range ids {
		if t, ok := byID[id]; ok {
			tasks = append(tasks, t)
			delete(byID, id)
		}
	}
	return tasks, nil
}

// ListTasks lists top-level tasks matching filter, newest first
func (s *PostgresStore) ListTasks(ctx context.Context, filter models.TaskFilter) ([]models.Task, error) {
	query := "SELECT doc FROM tasks WHERE parent_task IS NULL"
	args := []interface{}{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if !filter.IncludeArchived {
		query += " AND is_archived = FALSE"
	}
	if filter.Department != "" {
		query += " AND department = " + arg(filter.Department)
	}
	if filter.Status != "" {
		query += " AND status = " + arg(filter.Status)
	}
	if filter.CreatedBy != "" {
		query += " AND created_by = " + arg(filter.CreatedBy)
	}
	if filter.AssignedTo != "" {
		query += " AND doc -> 'assignedTo' ? " + arg(filter.AssignedTo)
	}
	if filter.Group != "" {
		query += " AND doc -> 'assignedGroups' ? " + arg(filter.Group)
	}
	query += " ORDER BY created_at DESC, id"

	var docs [][]byte
	if err := s.db.SelectContext(ctx, &docs, query, args...); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	tasks := make([]models.Task, 0, len(docs))
	for _, doc := range docs {
		t, err := decodeTask(doc)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// DeleteTasks removes tasks; comments follow through ON DELETE CASCADE
func (s *PostgresStore) DeleteTasks(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ANY($1)", pq.Array(ids))
	if err != nil {
		return fmt.Errorf("delete tasks: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveComment(ctx context.Context, c models.Comment) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO comments (id, task_id, author, text, created_at) VALUES ($1, $2, $3, $4, $5)",
		c.ID, c.TaskID, c.Author, c.Text, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("save comment: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListComments(ctx context.Context, taskID string) ([]models.Comment, error) {
	comments := []models.Comment{}
	err := s.db.SelectContext(ctx, &comments,
		"SELECT id, task_id, author, text, created_at FROM comments WHERE task_id = $1 ORDER BY created_at, id", taskID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}

func (s *PostgresStore) SaveNotification(ctx context.Context, n models.Notification) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, recipient, sender, type, task_id, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		n.ID, n.Recipient, n.Sender, n.Type, n.TaskID, n.Message, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("save notification: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListNotifications(ctx context.Context, recipient string) ([]models.Notification, error) {
	out := []models.Notification{}
	err := s.db.SelectContext(ctx, &out, `
		SELECT id, recipient, sender, type, task_id, message, created_at
		FROM notifications WHERE recipient = $1 ORDER BY created_at, id`, recipient)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return out, nil
}

const userColumns = "id, name, role, department, tasks_completed, current_streak, longest_streak, last_task_completed_date"

// SaveUser inserts or replaces a directory user (group membership excluded)
func (s *PostgresStore) SaveUser(ctx context.Context, u models.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, role = EXCLUDED.role, department = EXCLUDED.department`,
		u.ID, u.Name, u.Role, u.Department, u.TasksCompleted, u.CurrentStreak, u.LongestStreak, u.LastTaskCompletedDate)
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

// SaveGroup inserts a group together with its members
func (s *PostgresStore) SaveGroup(ctx context.Context, g models.Group) error {
	return s.inTx(func(tx *PostgresStore) error {
		if _, err := tx.db.ExecContext(ctx,
			"INSERT INTO groups (id, name) VALUES ($1, $2) ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name",
			g.ID, g.Name); err != nil {
			return fmt.Errorf("save group: %w", err)
		}
		for _, member := range g.Members {
			if _, err := tx.db.ExecContext(ctx,
				"INSERT INTO group_members (group_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING",
				g.ID, member); err != nil {
				return fmt.Errorf("save group member %s: %w", member, err)
			}
		}
		return nil
	})
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (models.User, error) {
	var u models.User
	err := s.db.GetContext(ctx, &u, "SELECT "+userColumns+" FROM users WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return models.User{}, storage.ErrNotFound
	}
	if err != nil {
		return models.User{}, err
	}
	u.Groups = []string{}
	if err := s.db.SelectContext(ctx, &u.Groups,
		"SELECT group_id FROM group_members WHERE user_id = $1 ORDER BY group_id", id); err != nil {
		return models.User{}, fmt.Errorf("get user groups: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) ListUsers(ctx context.Context, filter models.UserFilter) ([]models.User, error) {
	users := []models.User{}
	if filter.IDs != nil && len(filter.IDs) == 0 {
		return users, nil
	}
	query := "SELECT " + userColumns + " FROM users WHERE TRUE"
	args := []interface{}{}
	if filter.Department != "" {
		args = append(args, filter.Department)
		query += fmt.Sprintf(" AND department = $%d", len(args))
	}
	if filter.IDs != nil {
		args = append(args, pq.Array(filter.IDs))
		query += fmt.Sprintf(" AND id = ANY($%d)", len(args))
	}
	query += " ORDER BY name, id"
	if err := s.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	if len(users) == 0 {
		return users, nil
	}

	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	var memberships []struct {
		GroupID string `db:"group_id"`
		UserID  string `db:"user_id"`
	}
	if err := s.db.SelectContext(ctx, &memberships,
		"SELECT group_id, user_id FROM group_members WHERE user_id = ANY($1) ORDER BY group_id", pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list user groups: %w", err)
	}
	groups := make(map[string][]string)
	for _, m := range memberships {
		groups[m.UserID] = append(groups[m.UserID], m.GroupID)
	}
	for i := range users {
		users[i].Groups = groups[users[i].ID]
	}
	return users, nil
}

func (s *PostgresStore) GetGroup(ctx context.Context, id string) (models.Group, error) {
	var g models.Group
	err := s.db.GetContext(ctx, &g, "SELECT id, name FROM groups WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return models.Group{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Group{}, err
	}
	g.Members = []string{}
	if err := s.db.SelectContext(ctx, &g.Members,
		"SELECT user_id FROM group_members WHERE group_id = $1 ORDER BY user_id", id); err != nil {
		return models.Group{}, fmt.Errorf("get group members: %w", err)
	}
	return g, nil
}

// RecordTaskCompletion updates a user's completion counters and streaks
func (s *PostgresStore) RecordTaskCompletion(ctx context.Context, userID string, at time.Time) error {
	return s.inTx(func(tx *PostgresStore) error {
		var u models.User
		err := tx.db.GetContext(ctx, &u, "SELECT "+userColumns+" FROM users WHERE id = $1 FOR UPDATE", userID)
		if err == sql.ErrNoRows {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}
		u.RecordCompletion(at)
		_, err = tx.db.ExecContext(ctx, `
			UPDATE users
			SET tasks_completed = $1, current_streak = $2, longest_streak = $3, last_task_completed_date = $4
			WHERE id = $5`,
			u.TasksCompleted, u.CurrentStreak, u.LongestStreak, u.LastTaskCompletedDate, userID)
		if err != nil {
			return fmt.Errorf("record completion for %s: %w", userID, err)
		}
		return nil
	})
}

// ResetForTests truncates every table. Only meant for integration tests.
func (s *PostgresStore) ResetForTests(ctx context.Context) error {
	tables := []string{"notifications", "comments", "tasks", "group_members", "groups", "users"}
	_, err := s.db.ExecContext(ctx, "TRUNCATE TABLE "+strings.Join(tables, ", ")+" CASCADE")
	return err
}
