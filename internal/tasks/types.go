package tasks

import "time"

// Status is the task lifecycle stage.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

// Priority orders work within an organization.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Task is a unit of work owned by an organization.
type Task struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Description    *string    `json:"description,omitempty"`
	Status         Status     `json:"status"`
	Category       *string    `json:"category,omitempty"`
	Priority       Priority   `json:"priority"`
	DueDate        *time.Time `json:"dueDate,omitempty"`
	EstimatedHours *float64   `json:"estimatedHours,omitempty"`
	Tags           []string   `json:"tags,omitempty"`
	CreatedByID    string     `json:"createdById"`
	AssignedToID   *string    `json:"assignedToId,omitempty"`
	OrganizationID string     `json:"organizationId"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	DeletedAt      *time.Time `json:"-"`
}

// Filter narrows List. OrganizationID is always set by the service.
type Filter struct {
	OrganizationID string
	Status         Status   `validate:"omitempty,oneof=pending in-progress completed"`
	Priority       Priority `validate:"omitempty,oneof=low medium high"`
	AssignedToID   string   `validate:"omitempty,uuid"`
	CreatedByID    string   `validate:"omitempty,uuid"`
	Category       string
}

// CreateInput is the task-creation payload.
type CreateInput struct {
	Title          string     `json:"title" validate:"required"`
	Description    *string    `json:"description,omitempty"`
	Category       *string    `json:"category,omitempty"`
	Priority       Priority   `json:"priority,omitempty" validate:"omitempty,oneof=low medium high"`
	DueDate        *time.Time `json:"dueDate,omitempty"`
	EstimatedHours *float64   `json:"estimatedHours,omitempty" validate:"omitempty,gte=0"`
	Tags           []string   `json:"tags,omitempty"`
	AssignedToID   *string    `json:"assignedToId,omitempty" validate:"omitempty,uuid"`
}

// UpdateInput holds optional changes; nil fields are left untouched.
type UpdateInput struct {
	Title          *string    `json:"title,omitempty" validate:"omitempty,min=1"`
	Description    *string    `json:"description,omitempty"`
	Status         *Status    `json:"status,omitempty" validate:"omitempty,oneof=pending in-progress completed"`
	Category       *string    `json:"category,omitempty"`
	Priority       *Priority  `json:"priority,omitempty" validate:"omitempty,oneof=low medium high"`
	DueDate        *time.Time `json:"dueDate,omitempty"`
	EstimatedHours *float64   `json:"estimatedHours,omitempty" validate:"omitempty,gte=0"`
	Tags           []string   `json:"tags,omitempty"`
	AssignedToID   *string    `json:"assignedToId,omitempty" validate:"omitempty,uuid"`
}
