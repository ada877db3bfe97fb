package memory

import (
	"context"

	"taskdesk.org/internal/audit"
)

type auditStore struct{ s *Store }

func (a auditStore) Append(_ context.Context, e *audit.Entry) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	cp := *e
	cp.User = nil
	a.s.audit = append(a.s.audit, &cp)
	return nil
}

func (a auditStore) List(_ context.Context, f audit.Filter) ([]*audit.Entry, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()
	limit := f.Limit
	if limit <= 0 {
		limit = audit.MaxListed
	}
	var out []*audit.Entry
	for i := len(a.s.audit) - 1; i >= 0 && len(out) < limit; i-- {
		e := a.s.audit[i]
		if f.UserID != "" && (e.UserID == nil || *e.UserID != f.UserID) {
			continue
		}
		if f.Resource != "" && e.Resource != f.Resource {
			continue
		}
		cp := *e
		if e.UserID != nil {
			if u, ok := a.s.users[*e.UserID]; ok {
				cp.User = &audit.Actor{ID: u.ID, Email: u.Email, FirstName: u.FirstName, LastName: u.LastName}
			}
		}
		out = append(out, &cp)
	}
	return out, nil
}
