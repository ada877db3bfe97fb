// Package tasks holds the organization-scoped task service.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskdesk.org/internal/auth"
	"taskdesk.org/internal/ids"
)

// Service scopes every operation to the actor's organization.
type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) (*Service, error) {
	if store == nil {
		return nil, errors.New("task store is required")
	}
	return &Service{store: store, now: time.Now}, nil
}

// Create stamps the creator and organization from the actor.
func (s *Service) Create(ctx context.Context, actor auth.Principal, in CreateInput) (*Task, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := auth.ValidateInput(in); err != nil {
		return nil, err
	}
	priority := in.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	now := s.now().UTC()
	t := &Task{
		ID:             ids.New(),
		Title:          in.Title,
		Description:    in.Description,
		Status:         StatusPending,
		Category:       in.Category,
		Priority:       priority,
		DueDate:        in.DueDate,
		EstimatedHours: in.EstimatedHours,
		Tags:           in.Tags,
		CreatedByID:    actor.UserID(),
		AssignedToID:   in.AssignedToID,
		OrganizationID: actor.OrganizationID(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) List(ctx context.Context, actor auth.Principal, f Filter) ([]*Task, error) {
	if err := auth.ValidateInput(f); err != nil {
		return nil, err
	}
	f.OrganizationID = actor.OrganizationID()
	return s.store.List(ctx, f)
}

// Get reports foreign-organization tasks as not found.
func (s *Service) Get(ctx context.Context, actor auth.Principal, id string) (*Task, error) {
	id = strings.TrimSpace(id)
	t, err := s.store.Find(ctx, actor.OrganizationID(), id)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return nil, fmt.Errorf("%w: Task with ID %s not found", auth.ErrNotFound, id)
		}
		return nil, err
	}
	return t, nil
}

func (s *Service) Update(ctx context.Context, actor auth.Principal, id string, upd UpdateInput) (*Task, error) {
	if err := auth.ValidateInput(upd); err != nil {
		return nil, err
	}
	t, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if upd.Title != nil {
		t.Title = strings.TrimSpace(*upd.Title)
	}
	if upd.Description != nil {
		t.Description = upd.Description
	}
	if upd.Status != nil {
		t.Status = *upd.Status
	}
	if upd.Category != nil {
		t.Category = upd.Category
	}
	if upd.Priority != nil {
		t.Priority = *upd.Priority
	}
	if upd.DueDate != nil {
		t.DueDate = upd.DueDate
	}
	if upd.EstimatedHours != nil {
		t.EstimatedHours = upd.EstimatedHours
	}
	if upd.Tags != nil {
		t.Tags = upd.Tags
	}
	if upd.AssignedToID != nil {
		t.AssignedToID = upd.AssignedToID
	}
	t.UpdatedAt = s.now().UTC()
	if err := s.store.Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Delete tombstones the task.
func (s *Service) Delete(ctx context.Context, actor auth.Principal, id string) error {
	t, err := s.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	return s.store.SoftDelete(ctx, actor.OrganizationID(), t.ID, s.now().UTC())
}
