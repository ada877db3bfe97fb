package tasks

import (
	"context"
	"time"
)

// Store persists tasks. Tombstoned rows are invisible to Find and List.
// Missing rows yield auth.ErrNotFound; an unknown assignee yields auth.ErrInvalidInput.
type Store interface {
	Create(ctx context.Context, t *Task) error
	Find(ctx context.Context, orgID, id string) (*Task, error)
	// List returns tasks ordered by creation time, newest first.
	List(ctx context.Context, f Filter) ([]*Task, error)
	Update(ctx context.Context, t *Task) error
	SoftDelete(ctx context.Context, orgID, id string, at time.Time) error
}
