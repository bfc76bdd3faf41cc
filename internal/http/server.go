package http

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ignatij/taskflow/internal/log"
	"github.com/ignatij/taskflow/pkg/service"
	"github.com/ignatij/taskflow/pkg/storage"
	"github.com/pkg/errors"
)

// NewRouter wires every task operation under /tasks behind the bearer-token
// middleware. /health stays public.
func NewRouter(svc *service.TaskService, store storage.Store, secret []byte) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	h := &taskHandler{svc: svc, store: store}
	r.GET("/health", HealthHandler)

	api := r.Group("/", AuthMiddleware(secret))
	api.POST("/tasks", h.createTask)
	api.GET("/tasks", h.listTasks)
	api.GET("/tasks/:id", h.getTask)
	api.PATCH("/tasks/:id", h.updateTask)
	api.DELETE("/tasks/:id", h.deleteTask)
	api.POST("/tasks/:id/archive", h.archiveTask)
	api.POST("/tasks/:id/unarchive", h.unarchiveTask)

	api.POST("/tasks/:id/claim", h.claim)
	api.POST("/tasks/:id/self-assign", h.selfAssign)
	api.POST("/tasks/:id/assign", h.assignOther)
	api.POST("/tasks/:id/reassign", h.reassign)
	api.DELETE("/tasks/:id/assignees/:userId", h.unassign)
	api.GET("/tasks/:id/assignees/available", h.availableAssignees)

	api.GET("/tasks/:id/subtasks", h.listSubtasks)
	api.POST("/tasks/:id/subtasks", h.createSubtask)
	api.POST("/tasks/:id/subtasks/link", h.linkSubtask)
	api.DELETE("/tasks/:id/subtasks/:subtaskId", h.unlinkSubtask)

	api.POST("/tasks/:id/checklist", h.addChecklistItem)
	api.POST("/tasks/:id/checklist/:itemId/toggle", h.toggleChecklistItem)
	api.DELETE("/tasks/:id/checklist/:itemId", h.deleteChecklistItem)

	api.GET("/tasks/:id/activity", h.activity)
	api.GET("/tasks/:id/comments", h.listComments)
	api.POST("/tasks/:id/comments", h.addComment)

	api.GET("/notifications", h.notifications)
	return r
}

func HealthHandler(c *gin.Context) {
	c.String(http.StatusOK, "taskflow server is running")
}

// statusFor maps domain error kinds to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, service.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	body := gin.H{"error": err.Error()}
	var te *service.TaskError
	if errors.As(err, &te) {
		body["code"] = te.Code
	}
	if status == http.StatusInternalServerError {
		log.GetLogger().Errorf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
		body = gin.H{"error": "internal error"}
	}
	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
}
