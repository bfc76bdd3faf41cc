package models_test

import (
	"testing"

	"github.com/ignatij/taskflow/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestTaskClone(t *testing.T) {
	orig := models.Task{
		ID:         "t1",
		AssignedTo: []string{"emp1"},
		Checklist:  []models.ChecklistItem{{ID: "c1", Text: "a"}},
		ActivityLog: []models.ActivityEntry{{
			Type:     models.CreatedActivity,
			Metadata: map[string]any{"k": "v"},
		}},
	}
	c := orig.Clone()
	c.AssignedTo[0] = "emp2"
	c.Checklist[0].IsCompleted = true
	c.ActivityLog[0].Metadata["k"] = "changed"

	assert.Equal(t, "emp1", orig.AssignedTo[0])
	assert.False(t, orig.Checklist[0].IsCompleted)
	assert.Equal(t, "v", orig.ActivityLog[0].Metadata["k"])
}

func TestTaskFilterMatch(t *testing.T) {
	top := models.Task{
		Department:     models.EngineeringDepartment,
		Status:         models.OpenTaskStatus,
		CreatedBy:      "lead",
		AssignedTo:     []string{"emp1"},
		AssignedGroups: []string{"backend"},
	}
	sub := top
	sub.ParentTask = "parent"
	archived := top
	archived.IsArchived = true

	tests := []struct {
		name   string
		filter models.TaskFilter
		task   models.Task
		want   bool
	}{
		{"empty filter", models.TaskFilter{}, top, true},
		{"subtasks never match", models.TaskFilter{IncludeArchived: true}, sub, false},
		{"archived hidden by default", models.TaskFilter{}, archived, false},
		{"archived on request", models.TaskFilter{IncludeArchived: true}, archived, true},
		{"department", models.TaskFilter{Department: models.DesignDepartment}, top, false},
		{"status", models.TaskFilter{Status: models.OpenTaskStatus}, top, true},
		{"assignee", models.TaskFilter{AssignedTo: "emp2"}, top, false},
		{"creator", models.TaskFilter{CreatedBy: "lead"}, top, true},
		{"group", models.TaskFilter{Group: "backend"}, top, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Match(tt.task))
		})
	}
}
