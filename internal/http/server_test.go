package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	internal_http "github.com/ignatij/taskflow/internal/http"
	"github.com/ignatij/taskflow/internal/log"
	"github.com/ignatij/taskflow/internal/notify"
	"github.com/ignatij/taskflow/pkg/models"
	"github.com/ignatij/taskflow/pkg/service"
	"github.com/ignatij/taskflow/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-secret")

type testServer struct {
	router http.Handler
	store  *storage.MockStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log.SetOutput(io.Discard)

	store := storage.NewMockStore()
	store.AddUser(models.User{ID: "lead", Name: "Lena", Role: models.LeadRole, Department: models.EngineeringDepartment})
	store.AddUser(models.User{ID: "emp1", Name: "Eve", Role: models.EmployeeRole, Department: models.EngineeringDepartment})
	store.AddUser(models.User{ID: "emp2", Name: "Ethan", Role: models.EmployeeRole, Department: models.EngineeringDepartment})
	store.AddUser(models.User{ID: "designer", Name: "Dana", Role: models.EmployeeRole, Department: models.DesignDepartment})
	store.AddGroup(models.Group{ID: "backend", Name: "Backend", Members: []string{"lead", "emp1"}})

	// Synchronous delivery keeps notification assertions deterministic.
	svc := service.NewTaskService(store, store, syncNotifier{notify.StoreSink{Store: store}}, log.GetLogger())
	return &testServer{router: internal_http.NewRouter(svc, store, secret), store: store}
}

type syncNotifier struct {
	sink notify.Sink
}

func (n syncNotifier) Notify(ctx context.Context, msg models.Notification) error {
	return n.sink.Deliver(ctx, msg)
}

func (s *testServer) do(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		token, err := internal_http.IssueToken(secret, user, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *testServer) createTask(t *testing.T, body map[string]any) models.Task {
	t.Helper()
	if _, ok := body["title"]; !ok {
		body["title"] = "Ship release"
	}
	if _, ok := body["dueDate"]; !ok {
		body["dueDate"] = "2030-01-15T00:00:00Z"
	}
	if _, ok := body["department"]; !ok {
		body["department"] = "Engineering"
	}
	rec := s.do(t, http.MethodPost, "/tasks", "lead", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[models.Task](t, rec)
}

func TestServer(t *testing.T) {
	t.Run("HealthCheck", func(t *testing.T) {
		s := newTestServer(t)
		rec := s.do(t, http.MethodGet, "/health", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "taskflow server is running", rec.Body.String())
	})

	t.Run("RequiresBearerToken", func(t *testing.T) {
		s := newTestServer(t)
		rec := s.do(t, http.MethodGet, "/tasks", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
		bad, err := internal_http.IssueToken([]byte("other-secret"), "lead", time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+bad)
		rec = httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		expired, err := internal_http.IssueToken(secret, "lead", -time.Minute)
		require.NoError(t, err)
		req = httptest.NewRequest(http.MethodGet, "/tasks", nil)
		req.Header.Set("Authorization", "Bearer "+expired)
		rec = httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("CreateAndGetTask", func(t *testing.T) {
		s := newTestServer(t)
		created := s.createTask(t, map[string]any{"title": "Write docs", "priority": "High"})
		assert.Equal(t, "Write docs", created.Title)
		assert.Equal(t, models.HighPriority, created.Priority)
		assert.Equal(t, "lead", created.CreatedBy)

		rec := s.do(t, http.MethodGet, "/tasks/"+created.ID, "emp1", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, created.ID, decode[models.Task](t, rec).ID)

		rec = s.do(t, http.MethodGet, "/tasks", "emp1", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode[[]models.Task](t, rec), 1)

		rec = s.do(t, http.MethodGet, "/tasks/missing", "emp1", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "task_not_found", decode[map[string]string](t, rec)["code"])
	})

	t.Run("ValidationErrors", func(t *testing.T) {
		s := newTestServer(t)
		rec := s.do(t, http.MethodPost, "/tasks", "lead", map[string]any{"dueDate": "2030-01-15T00:00:00Z"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		req := httptest.NewRequest(http.MethodPost, "/tasks", bytes.NewBufferString("{not json"))
		token, err := internal_http.IssueToken(secret, "lead", time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
		rec = httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("UpdateStatus", func(t *testing.T) {
		s := newTestServer(t)
		task := s.createTask(t, map[string]any{"assignedTo": []string{"emp1"}})
		rec := s.do(t, http.MethodPatch, "/tasks/"+task.ID, "emp1", map[string]any{"status": "Completed"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		updated := decode[models.Task](t, rec)
		assert.Equal(t, models.CompletedTaskStatus, updated.Status)
		assert.NotNil(t, updated.CompletedDate)

		rec = s.do(t, http.MethodGet, "/tasks/"+task.ID+"/activity", "emp1", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		entries := decode[[]models.ActivityEntry](t, rec)
		require.Len(t, entries, 2)
		assert.Equal(t, models.StatusChangedActivity, entries[0].Type)
	})

	t.Run("ClaimConflict", func(t *testing.T) {
		s := newTestServer(t)
		task := s.createTask(t, map[string]any{"isOpenForClaims": true})
		rec := s.do(t, http.MethodPost, "/tasks/"+task.ID+"/claim", "emp1", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		rec = s.do(t, http.MethodPost, "/tasks/"+task.ID+"/claim", "emp2", nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "already_claimed", decode[map[string]string](t, rec)["code"])

		rec = s.do(t, http.MethodGet, "/notifications", "lead", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		notes := decode[[]models.Notification](t, rec)
		require.Len(t, notes, 1)
		assert.Equal(t, models.TaskClaimedNotification, notes[0].Type)
	})

	t.Run("ReassignLimitAndDepartment", func(t *testing.T) {
		s := newTestServer(t)
		task := s.createTask(t, map[string]any{})
		for _, target := range []string{"emp1", "emp2", "emp1"} {
			rec := s.do(t, http.MethodPost, "/tasks/"+task.ID+"/reassign", "lead", map[string]string{"userId": target})
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		}
		rec := s.do(t, http.MethodPost, "/tasks/"+task.ID+"/reassign", "lead", map[string]string{"userId": "emp2"})
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "reassign_limit_reached", decode[map[string]string](t, rec)["code"])

		other := s.createTask(t, map[string]any{})
		rec = s.do(t, http.MethodPost, "/tasks/"+other.ID+"/reassign", "lead", map[string]string{"userId": "designer"})
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = s.do(t, http.MethodPost, "/tasks/"+other.ID+"/reassign", "lead", map[string]string{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("GroupAssignment", func(t *testing.T) {
		s := newTestServer(t)
		task := s.createTask(t, map[string]any{"assignedGroups": []string{"backend"}})
		rec := s.do(t, http.MethodPost, "/tasks/"+task.ID+"/self-assign", "emp2", nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = s.do(t, http.MethodPost, "/tasks/"+task.ID+"/assign", "lead", map[string]string{"userId": "emp1"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, []string{"emp1"}, decode[models.Task](t, rec).AssignedTo)

		rec = s.do(t, http.MethodDelete, "/tasks/"+task.ID+"/assignees/emp1", "lead", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, decode[models.Task](t, rec).AssignedTo)

		rec = s.do(t, http.MethodGet, "/tasks/"+task.ID+"/assignees/available", "lead", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		users := decode[[]models.User](t, rec)
		require.Len(t, users, 2)
		assert.Equal(t, "emp2", users[0].ID)
		assert.Equal(t, "emp1", users[1].ID)
	})

	t.Run("SubtasksAndChecklist", func(t *testing.T) {
		s := newTestServer(t)
		parent := s.createTask(t, map[string]any{})

		rec := s.do(t, http.MethodPost, "/tasks/"+parent.ID+"/subtasks", "lead", map[string]string{"title": "child"})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		child := decode[models.Task](t, rec)

		rec = s.do(t, http.MethodPost, "/tasks/"+child.ID+"/checklist", "emp1", map[string]string{"text": "Review"})
		require.Equal(t, http.StatusOK, rec.Code)
		item := decode[models.Task](t, rec).Checklist[0]

		rec = s.do(t, http.MethodPost, "/tasks/"+child.ID+"/checklist/"+item.ID+"/toggle", "emp1", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 100, decode[models.Task](t, rec).ProgressPercentage)

		rec = s.do(t, http.MethodGet, "/tasks/"+parent.ID, "emp1", nil)
		assert.Equal(t, 100, decode[models.Task](t, rec).ProgressPercentage)

		rec = s.do(t, http.MethodGet, "/tasks/"+parent.ID+"/subtasks", "emp1", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode[[]models.Task](t, rec), 1)

		rec = s.do(t, http.MethodPost, "/tasks/"+child.ID+"/subtasks/link", "lead", map[string]string{"subtaskId": parent.ID})
		assert.Equal(t, http.StatusConflict, rec.Code)

		rec = s.do(t, http.MethodDelete, "/tasks/"+parent.ID+"/subtasks/"+child.ID, "lead", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, decode[models.Task](t, rec).Subtasks)

		rec = s.do(t, http.MethodDelete, "/tasks/"+child.ID+"/checklist/"+item.ID, "lead", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 0, decode[models.Task](t, rec).ProgressPercentage)
	})

	t.Run("CommentsArchiveDelete", func(t *testing.T) {
		s := newTestServer(t)
		task := s.createTask(t, map[string]any{})

		rec := s.do(t, http.MethodPost, "/tasks/"+task.ID+"/comments", "emp1", map[string]string{"text": "ready for review"})
		require.Equal(t, http.StatusCreated, rec.Code)
		rec = s.do(t, http.MethodGet, "/tasks/"+task.ID+"/comments", "lead", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode[[]models.Comment](t, rec), 1)

		rec = s.do(t, http.MethodPost, "/tasks/"+task.ID+"/archive", "lead", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		rec = s.do(t, http.MethodGet, "/tasks", "lead", nil)
		assert.Empty(t, decode[[]models.Task](t, rec))
		rec = s.do(t, http.MethodGet, "/tasks?archived=true", "lead", nil)
		assert.Len(t, decode[[]models.Task](t, rec), 1)
		rec = s.do(t, http.MethodPost, "/tasks/"+task.ID+"/unarchive", "lead", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = s.do(t, http.MethodDelete, "/tasks/"+task.ID, "lead", nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		rec = s.do(t, http.MethodGet, "/tasks/"+task.ID, "lead", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
