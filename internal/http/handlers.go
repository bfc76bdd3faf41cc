package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ignatij/taskflow/pkg/models"
	"github.com/ignatij/taskflow/pkg/service"
	"github.com/ignatij/taskflow/pkg/storage"
)

type taskHandler struct {
	svc   *service.TaskService
	store storage.Store
}

type userRequest struct {
	UserID string `json:"userId" binding:"required"`
	Reason string `json:"reason"`
}

type textRequest struct {
	Text string `json:"text" binding:"required"`
}

type linkRequest struct {
	SubtaskID string `json:"subtaskId" binding:"required"`
}

func (h *taskHandler) createTask(c *gin.Context) {
	var in service.NewTask
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	t, err := h.svc.CreateTask(c.Request.Context(), actorID(c), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h *taskHandler) listTasks(c *gin.Context) {
	filter := models.TaskFilter{
		Department:      models.Department(c.Query("department")),
		Status:          models.TaskStatus(c.Query("status")),
		AssignedTo:      c.Query("assignedTo"),
		CreatedBy:       c.Query("createdBy"),
		Group:           c.Query("group"),
		IncludeArchived: c.Query("archived") == "true",
	}
	tasks, err := h.svc.ListTasks(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

func (h *taskHandler) getTask(c *gin.Context) {
	t, err := h.svc.GetTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *taskHandler) updateTask(c *gin.Context) {
	var patch service.TaskPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, err)
		return
	}
	t, err := h.svc.UpdateTask(c.Request.Context(), c.Param("id"), actorID(c), patch)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *taskHandler) deleteTask(c *gin.Context) {
	if err := h.svc.DeleteTask(c.Request.Context(), c.Param("id"), actorID(c)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *taskHandler) archiveTask(c *gin.Context) {
	t, err := h.svc.ArchiveTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *taskHandler) unarchiveTask(c *gin.Context) {
	t, err := h.svc.UnarchiveTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *taskHandler) claim(c *gin.Context) {
	t, err := h.svc.Claim(c.Request.Context(), c.Param("id"), actorID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *taskHandler) selfAssign(c *gin.Context) {
	t, err := h.svc.SelfAssign(c.Request.Context(), c.Param("id"), actorID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *taskHandler) assignOther(c *gin.Context) {
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	t, err := h.svc.AssignOther(c.Request.Context(), c.Param("id"), actorID(c), req.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *taskHandler) reassign(c *gin.Context) {
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	t, err := h.svc.Reassign(c.Request.Context(), c.Param("id"), actorID(c), req.UserID, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *taskHandler) unassign(c *gin.Context) {
	t, err := h.svc.Unassign(c.Request.Context(), c.Param("id"), actorID(c), c.Param("userId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *taskHandler) availableAssignees(c *gin.Context) {
	scope := service.AssigneeScope(c.DefaultQuery("scope", string(service.DepartmentScope)))
	users, err := h.svc.AvailableAssignees(c.Request.Context(), c.Param("id"), actorID(c), scope)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *taskHandler) listSubtasks(c *gin.Context) {
	subs, err := h.svc.Subtasks(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, subs)
}

func (h *taskHandler) createSubtask(c *gin.Context) {
	var req struct {
		Title string `json:"title" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	t, err := h.svc.CreateSubtask(c.Request.Context(), c.Param("id"), req.Title, actorID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h *taskHandler) linkSubtask(c *gin.Context) {
	var req linkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	t, err := h.svc.LinkSubtask(c.Request.Context(), c.Param("id"), req.SubtaskID, actorID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *taskHandler) unlinkSubtask(c *gin.Context) {
	t, err := h.svc.UnlinkSubtask(c.Request.Context(), c.Param("id"), c.Param("subtaskId"), actorID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *taskHandler) addChecklistItem(c *gin.Context) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	t, err := h.svc.AddChecklistItem(c.Request.Context(), c.Param("id"), actorID(c), req.Text)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *taskHandler) toggleChecklistItem(c *gin.Context) {
	t, err := h.svc.ToggleChecklistItem(c.Request.Context(), c.Param("id"), c.Param("itemId"), actorID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *taskHandler) deleteChecklistItem(c *gin.Context) {
	t, err := h.svc.DeleteChecklistItem(c.Request.Context(), c.Param("id"), c.Param("itemId"), actorID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *taskHandler) activity(c *gin.Context) {
	entries, err := h.svc.ActivityLog(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if entries == nil {
		entries = []models.ActivityEntry{}
	}
	c.JSON(http.StatusOK, entries)
}

func (h *taskHandler) listComments(c *gin.Context) {
	comments, err := h.svc.ListComments(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, comments)
}

func (h *taskHandler) addComment(c *gin.Context) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	comment, err := h.svc.AddComment(c.Request.Context(), c.Param("id"), actorID(c), req.Text)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (h *taskHandler) notifications(c *gin.Context) {
	list, err := h.store.ListNotifications(c.Request.Context(), actorID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}
