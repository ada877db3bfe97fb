package migrate

import (
	"context"
	"errors"
	"reflect"
	"regexp"
	"testing"
	"testing/fstest"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"schema/0001_init.up.sql":   {Data: []byte("create table a (id int);\ncreate table b (name text default 'x;y');")},
		"schema/0001_init.down.sql": {Data: []byte("drop table b; drop table a;")},
		"schema/0002_more.up.sql":   {Data: []byte("-- adds v; nullable\nalter table a add column v int;")},
		"seeds/0001_builtin.sql":    {Data: []byte("insert into a values (1);")},
	}
}

func newMock(t *testing.T) (*Manager, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		_ = db.Close()
	})
	m := NewManager(db, testFS(), "schema", "seeds")
	m.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return m, mock
}

func expectLock(mock sqlmock.Sqlmock) {
	mock.ExpectExec("select pg_advisory_lock").WithArgs(advisoryLockKey).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("create table if not exists schema_journal").WillReturnResult(sqlmock.NewResult(0, 0))
}

func expectUnlock(mock sqlmock.Sqlmock) {
	mock.ExpectExec("select pg_advisory_unlock").WithArgs(advisoryLockKey).WillReturnResult(sqlmock.NewResult(0, 0))
}

func journalRows(names ...string) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"name", "applied_at"})
	for i, n := range names {
		rows.AddRow(n, time.Date(2026, 1, 1, 0, i, 0, 0, time.UTC))
	}
	return rows
}

func TestUpAppliesPendingWithJournalInSameTransaction(t *testing.T) {
	m, mock := newMock(t)

	expectLock(mock)
	mock.ExpectQuery("select name, applied_at from schema_journal").WithArgs("schema").
		WillReturnRows(journalRows("0001_init.up.sql"))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("alter table a add column v int")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("insert into schema_journal").WithArgs("schema", "0002_more.up.sql", m.now().UTC()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	expectUnlock(mock)

	if err := m.Up(context.Background()); err != nil {
		t.Fatalf("Up: %v", err)
	}
}

func TestUpFailureRollsBackAndKeepsJournal(t *testing.T) {
	m, mock := newMock(t)

	expectLock(mock)
	mock.ExpectQuery("select name, applied_at from schema_journal").WithArgs("schema").
		WillReturnRows(journalRows())
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("create table a (id int)")).WillReturnError(errors.New("boom"))
	mock.ExpectRollback()
	expectUnlock(mock)

	if err := m.Up(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestDownRollsBackLatest(t *testing.T) {
	m, mock := newMock(t)

	expectLock(mock)
	mock.ExpectQuery("select name, applied_at from schema_journal").WithArgs("schema").
		WillReturnRows(journalRows("0001_init.up.sql"))
	mock.ExpectBegin()
	mock.ExpectExec("drop table b").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("drop table a").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("delete from schema_journal").WithArgs("schema", "0001_init.up.sql").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	expectUnlock(mock)

	if err := m.Down(context.Background()); err != nil {
		t.Fatalf("Down: %v", err)
	}
}

func TestDownWithNothingApplied(t *testing.T) {
	m, mock := newMock(t)

	expectLock(mock)
	mock.ExpectQuery("select name, applied_at from schema_journal").WithArgs("schema").
		WillReturnRows(journalRows())
	expectUnlock(mock)

	if err := m.Down(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestSeedSkipsApplied(t *testing.T) {
	m, mock := newMock(t)

	expectLock(mock)
	mock.ExpectQuery("select name, applied_at from schema_journal").WithArgs("seed").
		WillReturnRows(journalRows("0001_builtin.sql"))
	expectUnlock(mock)

	if err := m.Seed(context.Background()); err != nil {
		t.Fatalf("Seed: %v", err)
	}
}

func TestStatusListsApplied(t *testing.T) {
	m, mock := newMock(t)

	expectLock(mock)
	mock.ExpectQuery("select name, applied_at from schema_journal").WithArgs("schema").
		WillReturnRows(journalRows("0001_init.up.sql", "0002_more.up.sql"))
	expectUnlock(mock)

	got, err := m.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(got) != 2 || got[1].Name != "0002_more.up.sql" {
		t.Fatalf("unexpected status: %v", got)
	}
}

func TestStatementsSplitting(t *testing.T) {
	src := "insert into t values ('a;b', 'it''s');\n" +
		"-- comment; with semicolon\n" +
		"select 1;\n" +
		"do $$ begin perform 1; end $$;\n" +
		"-- trailing\n"
	want := []string{
		"insert into t values ('a;b', 'it''s')",
		"select 1",
		"do $$ begin perform 1; end $$",
	}
	if got := statements(src); !reflect.DeepEqual(got, want) {
		t.Fatalf("statements() = %q, want %q", got, want)
	}
}

func TestScriptsMissingDir(t *testing.T) {
	names, err := scripts(testFS(), "nope", ".sql")
	if err != nil || len(names) != 0 {
		t.Fatalf("expected empty result for missing dir, got %v %v", names, err)
	}
	names, err = scripts(testFS(), "schema", ".up.sql")
	if err != nil || !reflect.DeepEqual(names, []string{"0001_init.up.sql", "0002_more.up.sql"}) {
		t.Fatalf("unexpected schema scripts: %v %v", names, err)
	}
}
