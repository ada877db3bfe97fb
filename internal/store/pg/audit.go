package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"taskdesk.org/internal/audit"
)

type auditStore struct{ db *sql.DB }

func (s auditStore) Append(ctx context.Context, e *audit.Entry) error {
	meta, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		insert into audit_logs (id, user_id, action, resource, resource_id, method, endpoint, status_code,
		                        ip_address, user_agent, metadata, created_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, e.ID, nullString(e.UserID), string(e.Action), e.Resource, nullString(e.ResourceID), e.Method, e.Endpoint,
		e.StatusCode, e.IPAddress, e.UserAgent, string(meta), e.CreatedAt)
	return err
}

func (s auditStore) List(ctx context.Context, f audit.Filter) ([]*audit.Entry, error) {
	var (
		where []string
		args  []any
	)
	if f.UserID != "" {
		args = append(args, f.UserID)
		where = append(where, fmt.Sprintf("a.user_id = $%d", len(args)))
	}
	if f.Resource != "" {
		args = append(args, f.Resource)
		where = append(where, fmt.Sprintf("a.resource = $%d", len(args)))
	}
	limit := f.Limit
	if limit <= 0 || limit > audit.MaxListed {
		limit = audit.MaxListed
	}
	args = append(args, limit)

	q := `
		select a.id, a.user_id, a.action, a.resource, a.resource_id, a.method, a.endpoint, a.status_code,
		       a.ip_address, a.user_agent, a.metadata, a.created_at,
		       u.email, u.first_name, u.last_name
		from audit_logs a
		left join users u on u.id = a.user_id`
	if len(where) > 0 {
		q += ` where ` + strings.Join(where, " and ")
	}
	q += fmt.Sprintf(` order by a.created_at desc limit $%d`, len(args))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*audit.Entry
	for rows.Next() {
		var (
			e                  audit.Entry
			userID, resourceID sql.NullString
			ip, agent          sql.NullString
			email, first, last sql.NullString
			action             string
			meta               []byte
		)
		err := rows.Scan(&e.ID, &userID, &action, &e.Resource, &resourceID, &e.Method, &e.Endpoint, &e.StatusCode,
			&ip, &agent, &meta, &e.CreatedAt, &email, &first, &last)
		if err != nil {
			return nil, err
		}
		e.Action = audit.Action(action)
		e.UserID = stringPtr(userID)
		e.ResourceID = stringPtr(resourceID)
		e.IPAddress = ip.String
		e.UserAgent = agent.String
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata: %w", err)
			}
		}
		if userID.Valid && email.Valid {
			e.User = &audit.Actor{ID: userID.String, Email: email.String, FirstName: first.String, LastName: last.String}
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
