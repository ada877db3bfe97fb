package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"taskdesk.org/internal/auth"
	"taskdesk.org/internal/tasks"
)

type taskStore struct{ s *Store }

func (t taskStore) Create(_ context.Context, task *tasks.Task) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.checkAssignee(task.AssignedToID); err != nil {
		return err
	}
	t.s.tasks[task.ID] = copyTask(task)
	return nil
}

func (t taskStore) Find(_ context.Context, orgID, id string) (*tasks.Task, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	task, ok := t.s.tasks[id]
	if !ok || task.DeletedAt != nil || task.OrganizationID != orgID {
		return nil, auth.ErrNotFound
	}
	return copyTask(task), nil
}

func (t taskStore) List(_ context.Context, f tasks.Filter) ([]*tasks.Task, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	var out []*tasks.Task
	for _, task := range t.s.tasks {
		if task.DeletedAt != nil || task.OrganizationID != f.OrganizationID {
			continue
		}
		if f.Status != "" && task.Status != f.Status {
			continue
		}
		if f.Priority != "" && task.Priority != f.Priority {
			continue
		}
		if f.AssignedToID != "" && (task.AssignedToID == nil || *task.AssignedToID != f.AssignedToID) {
			continue
		}
		if f.CreatedByID != "" && task.CreatedByID != f.CreatedByID {
			continue
		}
		if f.Category != "" && (task.Category == nil || *task.Category != f.Category) {
			continue
		}
		out = append(out, copyTask(task))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (t taskStore) Update(_ context.Context, task *tasks.Task) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	cur, ok := t.s.tasks[task.ID]
	if !ok || cur.DeletedAt != nil || cur.OrganizationID != task.OrganizationID {
		return auth.ErrNotFound
	}
	if err := t.s.checkAssignee(task.AssignedToID); err != nil {
		return err
	}
	t.s.tasks[task.ID] = copyTask(task)
	return nil
}

func (t taskStore) SoftDelete(_ context.Context, orgID, id string, at time.Time) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	task, ok := t.s.tasks[id]
	if !ok || task.DeletedAt != nil || task.OrganizationID != orgID {
		return auth.ErrNotFound
	}
	task.DeletedAt = &at
	return nil
}

func (s *Store) checkAssignee(id *string) error {
	if id == nil {
		return nil
	}
	if _, ok := s.users[*id]; !ok {
		return fmt.Errorf("%w: assigned user does not exist", auth.ErrInvalidInput)
	}
	return nil
}

func copyTask(t *tasks.Task) *tasks.Task {
	cp := *t
	cp.Tags = append([]string(nil), t.Tags...)
	return &cp
}
