package postgres

import (
	"context"
	"fmt"
	"strings"

	"tenant-quiz-service/internal/app"
	"github.com/uptrace/bun"
)

// tables holds the table names of one tenant.
type tables struct {
	users     string
	quizzes   string
	versions  string
	questions string
	attempts  string
	responses string
}

func tenantTables(tenantID string) tables {
	suffix := TenantSuffix(tenantID)
	return tables{
		users:     "users_" + suffix,
		quizzes:   "quizzes_" + suffix,
		versions:  "quiz_versions_" + suffix,
		questions: "questions_" + suffix,
		attempts:  "attempts_" + suffix,
		responses: "responses_" + suffix,
	}
}

// TenantSuffix maps a tenant id to the identifier suffix of its tables: lower case,
// with anything outside [a-z0-9] replaced by an underscore.
func TenantSuffix(tenantID string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(tenantID) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// SchemaFactory creates the tables of a tenant on first use and hands out stores
// bound to them.
type SchemaFactory struct {
	db *bun.DB
}

func NewSchemaFactory(db *bun.DB) *SchemaFactory {
	return &SchemaFactory{db: db}
}

func (f *SchemaFactory) Materialize(ctx context.Context, tenantID string) (app.Stores, error) {
	t := tenantTables(tenantID)
	err := f.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, stmt := range t.ddl() {
			if _, err := tx.ExecContext(ctx, stmt.query, stmt.args...); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return app.Stores{}, fmt.Errorf("create tenant tables: %w", err)
	}
	return bind(f.db, t, &txRunner{db: f.db, tables: t}), nil
}

type statement struct {
	query string
	args  []interface{}
}

func (t tables) ddl() []statement {
	id := func(name string) bun.Ident { return bun.Ident(name) }
	return []statement{
		{`CREATE TABLE IF NOT EXISTS ? (
			id TEXT PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`, []interface{}{id(t.users)}},
		{`CREATE TABLE IF NOT EXISTS ? (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`, []interface{}{id(t.quizzes)}},
		{`CREATE TABLE IF NOT EXISTS ? (
			id TEXT PRIMARY KEY,
			quiz_id TEXT NOT NULL REFERENCES ? (id) ON DELETE CASCADE,
			number INTEGER NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL,
			duration INTEGER,
			active BOOLEAN NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`, []interface{}{id(t.versions), id(t.quizzes)}},
		{`CREATE UNIQUE INDEX IF NOT EXISTS ? ON ? (quiz_id) WHERE active`,
			[]interface{}{id(t.versions + "_active_key"), id(t.versions)}},
		{`CREATE TABLE IF NOT EXISTS ? (
			id TEXT PRIMARY KEY,
			quiz_id TEXT NOT NULL,
			version_id TEXT NOT NULL REFERENCES ? (id) ON DELETE CASCADE,
			type TEXT NOT NULL,
			text TEXT NOT NULL,
			options JSONB,
			answer JSONB,
			points INTEGER NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`, []interface{}{id(t.questions), id(t.versions)}},
		{`CREATE INDEX IF NOT EXISTS ? ON ? (version_id, created_at DESC)`,
			[]interface{}{id(t.questions + "_version_idx"), id(t.questions)}},
		{`CREATE TABLE IF NOT EXISTS ? (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES ? (id),
			quiz_id TEXT NOT NULL,
			version_id TEXT NOT NULL REFERENCES ? (id),
			start_time TIMESTAMPTZ NOT NULL,
			end_time TIMESTAMPTZ,
			active BOOLEAN NOT NULL
		)`, []interface{}{id(t.attempts), id(t.users), id(t.versions)}},
		{`CREATE UNIQUE INDEX IF NOT EXISTS ? ON ? (user_id) WHERE active`,
			[]interface{}{id(t.attempts + "_active_key"), id(t.attempts)}},
		{`CREATE TABLE IF NOT EXISTS ? (
			id TEXT PRIMARY KEY,
			attempt_id TEXT NOT NULL REFERENCES ? (id) ON DELETE CASCADE,
			question_id TEXT NOT NULL,
			answer JSONB,
			score INTEGER NOT NULL,
			submit_time TIMESTAMPTZ NOT NULL
		)`, []interface{}{id(t.responses), id(t.attempts)}},
		{`CREATE UNIQUE INDEX IF NOT EXISTS ? ON ? (attempt_id, question_id)`,
			[]interface{}{id(t.responses + "_aq_key"), id(t.responses)}},
	}
}

// txRunner runs a function against stores bound to one bun transaction.
type txRunner struct {
	db     *bun.DB
	tables tables
}

func (r *txRunner) RunInTx(ctx context.Context, fn func(ctx context.Context, tx app.Stores) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, bind(tx, r.tables, nil))
	})
}

func bind(db bun.IDB, t tables, tx app.TxRunner) app.Stores {
	return app.NewStores(
		&userStore{db: db, table: t.users},
		&quizStore{db: db, table: t.quizzes},
		&versionStore{db: db, table: t.versions, quizzes: t.quizzes},
		&questionStore{db: db, table: t.questions},
		&attemptStore{db: db, table: t.attempts},
		&responseStore{db: db, table: t.responses},
		tx,
	)
}
