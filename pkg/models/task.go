package models

import (
	"slices"
	"time"
)

type TaskStatus string

const (
	OpenTaskStatus        TaskStatus = "Open"
	InProgressTaskStatus  TaskStatus = "In Progress"
	UnderReviewTaskStatus TaskStatus = "Under Review"
	CompletedTaskStatus   TaskStatus = "Completed"
	BlockedTaskStatus     TaskStatus = "Blocked"
	CancelledTaskStatus   TaskStatus = "Cancelled"
	PendingTaskStatus     TaskStatus = "Pending"
)

// Valid reports whether s is one of the known task statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case OpenTaskStatus, InProgressTaskStatus, UnderReviewTaskStatus, CompletedTaskStatus,
		BlockedTaskStatus, CancelledTaskStatus, PendingTaskStatus:
		return true
	}
	return false
}

type Priority string

const (
	LowPriority    Priority = "Low"
	MediumPriority Priority = "Medium"
	HighPriority   Priority = "High"
	UrgentPriority Priority = "Urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case LowPriority, MediumPriority, HighPriority, UrgentPriority:
		return true
	}
	return false
}

type Department string

const (
	EngineeringDepartment Department = "Engineering"
	ProductDepartment     Department = "Product"
	DesignDepartment      Department = "Design"
	MarketingDepartment   Department = "Marketing"
	SalesDepartment       Department = "Sales"
	OperationsDepartment  Department = "Operations"
	FinanceDepartment     Department = "Finance"
	HRDepartment          Department = "HR"
	SupportDepartment     Department = "Support"
	GeneralDepartment     Department = "General"
)

func (d Department) Valid() bool {
	switch d {
	case EngineeringDepartment, ProductDepartment, DesignDepartment, MarketingDepartment, SalesDepartment,
		OperationsDepartment, FinanceDepartment, HRDepartment, SupportDepartment, GeneralDepartment:
		return true
	}
	return false
}

// MaxReassignments bounds how many times a task's assignees may be replaced.
const MaxReassignments = 3

// ChecklistItem is a single entry of a task checklist.
type ChecklistItem struct {
	ID          string     `json:"id"`
	Text        string     `json:"text"`
	IsCompleted bool       `json:"isCompleted"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CompletedBy string     `json:"completedBy,omitempty"`
}

// ReassignRecord is one entry of the reassignment history.
type ReassignRecord struct {
	ReassignedBy string    `json:"reassignedBy"`
	ReassignedTo string    `json:"reassignedTo"`
	ReassignedAt time.Time `json:"reassignedAt"`
	Reason       string    `json:"reason,omitempty"`
}

// Task is the central document of the tracker. Checklist, assignment,
// reassignment history and activity log are embedded in the document.
type Task struct {
	ID          string     `json:"id" db:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    Priority   `json:"priority"`
	Status      TaskStatus `json:"status"`
	Department  Department `json:"department"`
	Tags        []string   `json:"tags"`
	Color       string     `json:"color,omitempty"`

	CreatedBy      string   `json:"createdBy"`
	AssignedTo     []string `json:"assignedTo"`
	AssignedGroups []string `json:"assignedGroups"`

	StartDate     *time.Time `json:"startDate,omitempty"`
	DueDate       time.Time  `json:"dueDate"`
	CompletedDate *time.Time `json:"completedDate,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`

	ParentTask string   `json:"parentTask,omitempty"`
	Subtasks   []string `json:"subtasks"`

	Checklist          []ChecklistItem `json:"checklist"`
	ProgressPercentage int             `json:"progressPercentage"`

	IsOpenForClaims bool       `json:"isOpenForClaims"`
	IsClaimed       bool       `json:"isClaimed"`
	ClaimedBy       string     `json:"claimedBy,omitempty"`
	ClaimedAt       *time.Time `json:"claimedAt,omitempty"`

	ReassignCount   int              `json:"reassignCount"`
	ReassignHistory []ReassignRecord `json:"reassignHistory"`

	ActivityLog []ActivityEntry `json:"activityLog"`

	IsArchived bool `json:"isArchived"`
}

// IsAssigned reports whether userID is among the task assignees.
func (t *Task) IsAssigned(userID string) bool {
	return slices.Contains(t.AssignedTo, userID)
}

// HasParent reports whether the task is a subtask.
func (t *Task) HasParent() bool {
	return t.ParentTask != ""
}

// Clone returns a deep copy so callers never share slices with a store.
func (t Task) Clone() Task {
	c := t
	c.Tags = slices.Clone(t.Tags)
	c.AssignedTo = slices.Clone(t.AssignedTo)
	c.AssignedGroups = slices.Clone(t.AssignedGroups)
	c.Subtasks = slices.Clone(t.Subtasks)
	c.Checklist = slices.Clone(t.Checklist)
	c.ReassignHistory = slices.Clone(t.ReassignHistory)
	c.ActivityLog = make([]ActivityEntry, len(t.ActivityLog))
	for i, e := range t.ActivityLog {
		c.ActivityLog[i] = e.clone()
	}
	return c
}

// TaskFilter narrows task listings. Subtasks are never part of a listing.
type TaskFilter struct {
	Department      Department
	Status          TaskStatus
	AssignedTo      string
	CreatedBy       string
	Group           string
	IncludeArchived bool
}

// Match reports whether a task belongs to a top-level listing under f.
func (f TaskFilter) Match(t Task) bool {
	if t.HasParent() {
		return false
	}
	if t.IsArchived && !f.IncludeArchived {
		return false
	}
	if f.Department != "" && t.Department != f.Department {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.AssignedTo != "" && !t.IsAssigned(f.AssignedTo) {
		return false
	}
	if f.CreatedBy != "" && t.CreatedBy != f.CreatedBy {
		return false
	}
	if f.Group != "" && !slices.Contains(t.AssignedGroups, f.Group) {
		return false
	}
	return true
}
