package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskdesk.org/internal/auth"
	"taskdesk.org/internal/ids"
	"taskdesk.org/internal/tasks"
)

type taskStore struct{ db *sql.DB }

const taskColumns = `id, title, description, status, category, priority, due_date, estimated_hours, tags,
	created_by_id, assigned_to_id, organization_id, created_at, updated_at`

func scanTask(row scanner) (*tasks.Task, error) {
	var (
		t                        tasks.Task
		desc, category, assignee sql.NullString
		due                      sql.NullTime
		hours                    sql.NullFloat64
		tags                     []byte
	)
	err := row.Scan(&t.ID, &t.Title, &desc, &t.Status, &category, &t.Priority, &due, &hours, &tags,
		&t.CreatedByID, &assignee, &t.OrganizationID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Description = stringPtr(desc)
	t.Category = stringPtr(category)
	t.AssignedToID = stringPtr(assignee)
	t.DueDate = timePtr(due)
	if hours.Valid {
		v := hours.Float64
		t.EstimatedHours = &v
	}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &t.Tags); err != nil {
			return nil, fmt.Errorf("decode tags: %w", err)
		}
	}
	return &t, nil
}

func encodeTags(tags []string) (any, error) {
	if tags == nil {
		return nil, nil
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

// taskError reports a dangling assignee as bad input rather than a missing task.
func taskError(err error) error {
	if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
		return fmt.Errorf("%w: Assigned user does not exist", auth.ErrInvalidInput)
	}
	return mapConstraint(err, "task")
}

func (s taskStore) Create(ctx context.Context, t *tasks.Task) error {
	tags, err := encodeTags(t.Tags)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		insert into tasks (id, title, description, status, category, priority, due_date, estimated_hours, tags,
		                   created_by_id, assigned_to_id, organization_id, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, t.ID, t.Title, nullString(t.Description), string(t.Status), nullString(t.Category), string(t.Priority),
		nullTime(t.DueDate), nullFloat(t.EstimatedHours), tags,
		t.CreatedByID, nullString(t.AssignedToID), t.OrganizationID, t.CreatedAt, t.UpdatedAt)
	return taskError(err)
}

func (s taskStore) Find(ctx context.Context, orgID, id string) (*tasks.Task, error) {
	if !ids.IsUUID(id) {
		return nil, auth.ErrNotFound
	}
	t, err := scanTask(s.db.QueryRowContext(ctx, `
		select `+taskColumns+` from tasks
		where id = $1 and organization_id = $2 and deleted_at is null
	`, id, orgID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	return t, err
}

func (s taskStore) List(ctx context.Context, f tasks.Filter) ([]*tasks.Task, error) {
	where := []string{"organization_id = $1", "deleted_at is null"}
	args := []any{f.OrganizationID}
	add := func(column string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if f.Status != "" {
		add("status", string(f.Status))
	}
	if f.Priority != "" {
		add("priority", string(f.Priority))
	}
	if f.AssignedToID != "" {
		add("assigned_to_id", f.AssignedToID)
	}
	if f.CreatedByID != "" {
		add("created_by_id", f.CreatedByID)
	}
	if f.Category != "" {
		add("category", f.Category)
	}

	q := `select ` + taskColumns + ` from tasks where ` + strings.Join(where, " and ") + ` order by created_at desc`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, taskError(err)
	}
	defer rows.Close()
	var out []*tasks.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s taskStore) Update(ctx context.Context, t *tasks.Task) error {
	tags, err := encodeTags(t.Tags)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		update tasks
		set title = $3, description = $4, status = $5, category = $6, priority = $7, due_date = $8,
		    estimated_hours = $9, tags = $10, assigned_to_id = $11, updated_at = $12
		where id = $1 and organization_id = $2 and deleted_at is null
	`, t.ID, t.OrganizationID, t.Title, nullString(t.Description), string(t.Status), nullString(t.Category),
		string(t.Priority), nullTime(t.DueDate), nullFloat(t.EstimatedHours), tags, nullString(t.AssignedToID), t.UpdatedAt)
	if err != nil {
		return taskError(err)
	}
	return expectOne(res, nil)
}

func (s taskStore) SoftDelete(ctx context.Context, orgID, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		update tasks set deleted_at = $3
		where id = $1 and organization_id = $2 and deleted_at is null
	`, id, orgID, at)
	return expectOne(res, err)
}
