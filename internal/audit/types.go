package audit

import (
	"context"
	"time"
)

// Action is the coarse verb recorded for a request.
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionRead   Action = "READ"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

// RedactedMarker replaces password values in stored request bodies.
const RedactedMarker = "***REDACTED***"

// MaxListed caps the number of rows returned by a list query.
const MaxListed = 100

// Entry is one immutable audit row.
type Entry struct {
	ID         string    `json:"id"`
	UserID     *string   `json:"userId,omitempty"`
	Action     Action    `json:"action"`
	Resource   string    `json:"resource"`
	ResourceID *string   `json:"resourceId,omitempty"`
	Method     string    `json:"method"`
	Endpoint   string    `json:"endpoint"`
	StatusCode int       `json:"statusCode"`
	IPAddress  string    `json:"ipAddress,omitempty"`
	UserAgent  string    `json:"userAgent,omitempty"`
	Metadata   Metadata  `json:"metadata"`
	CreatedAt  time.Time `json:"createdAt"`
	// User is filled by list queries only.
	User *Actor `json:"user,omitempty"`
}

// Metadata is stored as a JSON document alongside the row.
type Metadata struct {
	Body  any            `json:"body,omitempty"`
	Query map[string]any `json:"query"`
	Error string         `json:"error,omitempty"`
}

// Actor is the acting user joined into list results.
type Actor struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Filter narrows List. Empty fields are ignored.
type Filter struct {
	UserID   string
	Resource string
	Limit    int
}

// Store persists audit rows. Rows are never updated or deleted.
type Store interface {
	Append(ctx context.Context, e *Entry) error
	// List returns rows newest first, at most f.Limit of them.
	List(ctx context.Context, f Filter) ([]*Entry, error)
}
