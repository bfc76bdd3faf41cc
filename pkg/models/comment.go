package models

import "time"

// Comment is a task-scoped, append-only remark.
type Comment struct {
	ID        string    `json:"id" db:"id"`
	TaskID    string    `json:"taskId" db:"task_id"`
	Author    string    `json:"author" db:"author"`
	Text      string    `json:"text" db:"text"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

type NotificationType string

const (
	TaskAssignedNotification   NotificationType = "task_assigned"
	TaskReassignedNotification NotificationType = "task_reassigned"
	TaskClaimedNotification    NotificationType = "task_claimed"
	TaskCommentNotification    NotificationType = "task_comment"
)

// Notification is handed to the dispatcher; delivery is best effort.
type Notification struct {
	ID        string           `json:"id" db:"id"`
	Recipient string           `json:"recipient" db:"recipient"`
	Sender    string           `json:"sender" db:"sender"`
	Type      NotificationType `json:"type" db:"type"`
	TaskID    string           `json:"taskId" db:"task_id"`
	Message   string           `json:"message" db:"message"`
	CreatedAt time.Time        `json:"createdAt" db:"created_at"`
}
