package audit

import (
	"context"
	"fmt"
	"strings"

	"taskdesk.org/internal/auth"
	"taskdesk.org/internal/ids"
)

// Service answers audit log queries.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// List returns up to MaxListed rows, newest first.
func (s *Service) List(ctx context.Context, f Filter) ([]*Entry, error) {
	f.UserID = strings.TrimSpace(f.UserID)
	f.Resource = strings.TrimSpace(f.Resource)
	if f.UserID != "" && !ids.IsUUID(f.UserID) {
		return nil, fmt.Errorf("%w: userId must be a UUID", auth.ErrInvalidInput)
	}
	if f.Limit <= 0 || f.Limit > MaxListed {
		f.Limit = MaxListed
	}
	return s.store.List(ctx, f)
}
