package models

import (
	"maps"
	"time"
)

type ActivityType string

const (
	CreatedActivity              ActivityType = "created"
	StatusChangedActivity        ActivityType = "status_changed"
	PriorityChangedActivity      ActivityType = "priority_changed"
	AssignedActivity             ActivityType = "assigned"
	UnassignedActivity           ActivityType = "unassigned"
	ReassignedActivity           ActivityType = "reassigned"
	SelfAssignedActivity         ActivityType = "self_assigned"
	DueDateChangedActivity       ActivityType = "due_date_changed"
	TitleChangedActivity         ActivityType = "title_changed"
	DescriptionChangedActivity   ActivityType = "description_changed"
	ChecklistAddedActivity       ActivityType = "checklist_added"
	ChecklistCompletedActivity   ActivityType = "checklist_completed"
	ChecklistUncompletedActivity ActivityType = "checklist_uncompleted"
	ChecklistDeletedActivity     ActivityType = "checklist_deleted"
	SubtaskAddedActivity         ActivityType = "subtask_added"
	SubtaskLinkedActivity        ActivityType = "subtask_linked"
	SubtaskUnlinkedActivity      ActivityType = "subtask_unlinked"
	CommentAddedActivity         ActivityType = "comment_added"
	AttachmentAddedActivity      ActivityType = "attachment_added"
	AttachmentDeletedActivity    ActivityType = "attachment_deleted"
	TagAddedActivity             ActivityType = "tag_added"
	TagRemovedActivity           ActivityType = "tag_removed"
)

// ActivityEntry is one immutable audit record of a task mutation.
type ActivityEntry struct {
	Type        ActivityType   `json:"type"`
	User        string         `json:"user"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

func (e ActivityEntry) clone() ActivityEntry {
	e.Metadata = maps.Clone(e.Metadata)
	return e
}
