// Package migrate applies the embedded schema migrations and seed data.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"taskdesk.org/internal/obs"
)

const defaultJournal = "schema_journal"

// advisoryLockKey serializes concurrent migrators, e.g. several API replicas
// started with migrate-on-start.
const advisoryLockKey int64 = 0x7461736b64657368

type kind string

const (
	kindSchema kind = "schema"
	kindSeed   kind = "seed"
)

// Applied is one journal row.
type Applied struct {
	Name      string
	AppliedAt time.Time
}

func (a Applied) String() string {
	return a.AppliedAt.UTC().Format(time.RFC3339) + "  " + a.Name
}

// Manager runs *.up.sql / *.down.sql scripts and seed files from an fs.FS. Each
// script and its journal row commit in one transaction.
type Manager struct {
	db        *sql.DB
	files     fs.FS
	schemaDir string
	seedsDir  string
	journal   string
	now       func() time.Time
}

type Option func(*Manager)

// WithJournalTable overrides the bookkeeping table name.
func WithJournalTable(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.journal = name
		}
	}
}

// NewManager constructs a Manager over files. Directory names are relative to files.
func NewManager(db *sql.DB, files fs.FS, schemaDir, seedsDir string, opts ...Option) *Manager {
	m := &Manager{
		db:        db,
		files:     files,
		schemaDir: schemaDir,
		seedsDir:  seedsDir,
		journal:   defaultJournal,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Up applies every schema migration not yet journaled, in file name order.
func (m *Manager) Up(ctx context.Context) error {
	return m.forward(ctx, kindSchema, m.schemaDir, ".up.sql")
}

// Seed applies seed files once each.
func (m *Manager) Seed(ctx context.Context) error {
	return m.forward(ctx, kindSeed, m.seedsDir, ".sql")
}

// Down rolls back the most recently applied schema migration.
func (m *Manager) Down(ctx context.Context) error {
	return m.locked(ctx, func(conn *sql.Conn) error {
		done, err := m.applied(ctx, conn, kindSchema)
		if err != nil {
			return err
		}
		if len(done) == 0 {
			return errors.New("no migrations applied")
		}
		last := done[len(done)-1].Name
		down := path.Join(m.schemaDir, strings.TrimSuffix(last, ".up.sql")+".down.sql")
		body, err := fs.ReadFile(m.files, down)
		if err != nil {
			return fmt.Errorf("missing down migration for %s: %w", last, err)
		}
		forget := fmt.Sprintf(`delete from %s where kind = $1 and name = $2`, m.journal)
		if err := m.run(ctx, conn, string(body), forget, kindSchema, last); err != nil {
			return fmt.Errorf("rollback %s: %w", last, err)
		}
		obs.Logger().WithField("migration", last).Info("migration_rolled_back")
		return nil
	})
}

// Status lists applied schema migrations, oldest first.
func (m *Manager) Status(ctx context.Context) ([]Applied, error) {
	var out []Applied
	err := m.locked(ctx, func(conn *sql.Conn) error {
		var err error
		out, err = m.applied(ctx, conn, kindSchema)
		return err
	})
	return out, err
}

func (m *Manager) forward(ctx context.Context, k kind, dir, suffix string) error {
	names, err := scripts(m.files, dir, suffix)
	if err != nil {
		return err
	}
	return m.locked(ctx, func(conn *sql.Conn) error {
		done, err := m.applied(ctx, conn, k)
		if err != nil {
			return err
		}
		seen := make(map[string]struct{}, len(done))
		for _, a := range done {
			seen[a.Name] = struct{}{}
		}
		record := fmt.Sprintf(`insert into %s (kind, name, applied_at) values ($1, $2, $3)`, m.journal)
		for _, name := range names {
			if _, ok := seen[name]; ok {
				continue
			}
			body, err := fs.ReadFile(m.files, path.Join(dir, name))
			if err != nil {
				return err
			}
			if err := m.run(ctx, conn, string(body), record, k, name, m.now().UTC()); err != nil {
				return fmt.Errorf("apply %s %s: %w", k, name, err)
			}
			obs.Logger().WithFields(logrus.Fields{"kind": string(k), "name": name}).Info("migration_applied")
		}
		return nil
	})
}

// locked runs fn on a dedicated connection holding the migration advisory lock.
func (m *Manager) locked(ctx context.Context, fn func(*sql.Conn) error) error {
	conn, err := m.db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	if _, err := conn.ExecContext(ctx, `select pg_advisory_lock($1)`, advisoryLockKey); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		if _, err := conn.ExecContext(context.WithoutCancel(ctx), `select pg_advisory_unlock($1)`, advisoryLockKey); err != nil {
			obs.Logger().WithError(err).Warn("migration_unlock_failed")
		}
	}()
	ddl := fmt.Sprintf(`create table if not exists %s (
		kind text not null,
		name text not null,
		applied_at timestamptz not null default now(),
		primary key (kind, name)
	)`, m.journal)
	if _, err := conn.ExecContext(ctx, ddl); err != nil {
		return err
	}
	return fn(conn)
}

// run executes a script and the journal statement in one transaction.
func (m *Manager) run(ctx context.Context, conn *sql.Conn, script, journal string, args ...any) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, stmt := range statements(script) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, journal, args...); err != nil {
		return err
	}
	return tx.Commit()
}

func (m *Manager) applied(ctx context.Context, conn *sql.Conn, k kind) ([]Applied, error) {
	rows, err := conn.QueryContext(ctx,
		fmt.Sprintf(`select name, applied_at from %s where kind = $1 order by applied_at, name`, m.journal), string(k))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Applied
	for rows.Next() {
		var a Applied
		if err := rows.Scan(&a.Name, &a.AppliedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// scripts lists base names in dir ending in suffix, sorted. A missing directory
// yields nothing.
func scripts(fsys fs.FS, dir, suffix string) ([]string, error) {
	if fsys == nil || dir == "" {
		return nil, nil
	}
	matches, err := fs.Glob(fsys, path.Join(dir, "*"+suffix))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(matches))
	for _, p := range matches {
		names = append(names, path.Base(p))
	}
	sort.Strings(names)
	return names, nil
}

// statements splits a script on semicolons outside quoted literals, dollar-quoted
// bodies and line comments. Comments are dropped.
func statements(src string) []string {
	var (
		out    []string
		cur    strings.Builder
		quote  byte
		dollar bool
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			out = append(out, s)
		}
		cur.Reset()
	}
	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case dollar:
			if strings.HasPrefix(src[i:], "$$") {
				dollar = false
				cur.WriteString("$$")
				i++
				continue
			}
		case c == '\'' || c == '"':
			quote = c
		case strings.HasPrefix(src[i:], "$$"):
			dollar = true
			cur.WriteString("$$")
			i++
			continue
		case strings.HasPrefix(src[i:], "--"):
			for i < len(src) && src[i] != '\n' {
				i++
			}
			cur.WriteByte('\n')
			continue
		case c == ';':
			flush()
			continue
		}
		cur.WriteByte(c)
	}
	flush()
	return out
}
