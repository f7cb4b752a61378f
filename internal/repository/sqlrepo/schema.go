package sqlrepo

import (
	"context"
	"fmt"
	"strings"
)

// The schema is shared by SQLite and PostgreSQL. Pointer columns hold an
// empty string for "no question" so the graph can be relinked in any order
// inside a transaction.
const schema = `
CREATE TABLE IF NOT EXISTS surveys (
	id                TEXT PRIMARY KEY,
	name              TEXT NOT NULL,
	published         BOOLEAN NOT NULL DEFAULT FALSE,
	published_at      TIMESTAMP NULL,
	first_question_id TEXT NOT NULL DEFAULT '',
	last_question_id  TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS questions (
	id               TEXT PRIMARY KEY,
	survey_id        TEXT NOT NULL REFERENCES surveys(id) ON DELETE CASCADE,
	prompt           TEXT NOT NULL,
	description      TEXT NOT NULL DEFAULT '',
	question_type    TEXT NOT NULL,
	required         BOOLEAN NOT NULL DEFAULT FALSE,
	next_question_id TEXT NOT NULL DEFAULT '',
	parameters       TEXT NOT NULL,
	media            TEXT NOT NULL,
	created_at       TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS questions_survey_idx ON questions (survey_id);

CREATE TABLE IF NOT EXISTS choices (
	id          TEXT PRIMARY KEY,
	question_id TEXT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
	label       TEXT NOT NULL,
	image_url   TEXT NOT NULL DEFAULT '',
	position    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS choices_question_idx ON choices (question_id);

CREATE TABLE IF NOT EXISTS rule_sets (
	id          TEXT PRIMARY KEY,
	question_id TEXT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
	jump_to_id  TEXT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
	idx         INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS rule_sets_question_idx ON rule_sets (question_id);

CREATE TABLE IF NOT EXISTS conditions (
	id         TEXT PRIMARY KEY,
	ruleset_id TEXT NOT NULL REFERENCES rule_sets(id) ON DELETE CASCADE,
	idx        INTEGER NOT NULL,
	tested_id  TEXT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
	operand    TEXT NOT NULL DEFAULT '',
	kind       TEXT NOT NULL,
	predicate  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS conditions_ruleset_idx ON conditions (ruleset_id);

CREATE TABLE IF NOT EXISTS hidden_fields (
	id        TEXT PRIMARY KEY,
	survey_id TEXT NOT NULL REFERENCES surveys(id) ON DELETE CASCADE,
	name      TEXT NOT NULL,
	UNIQUE (survey_id, name)
);

CREATE TABLE IF NOT EXISTS submissions (
	id           TEXT PRIMARY KEY,
	survey_id    TEXT NOT NULL REFERENCES surveys(id) ON DELETE CASCADE,
	is_preview   BOOLEAN NOT NULL DEFAULT FALSE,
	completed    BOOLEAN NOT NULL DEFAULT FALSE,
	completed_at TIMESTAMP NULL,
	created_at   TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS submissions_survey_idx ON submissions (survey_id, created_at);

CREATE TABLE IF NOT EXISTS filled_fields (
	id            TEXT PRIMARY KEY,
	submission_id TEXT NOT NULL REFERENCES submissions(id) ON DELETE CASCADE,
	field_id      TEXT NOT NULL REFERENCES hidden_fields(id) ON DELETE CASCADE,
	value         TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS answers (
	id            TEXT PRIMARY KEY,
	question_id   TEXT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
	submission_id TEXT NOT NULL REFERENCES submissions(id) ON DELETE CASCADE,
	question_type TEXT NOT NULL,
	value         TEXT NOT NULL,
	created_at    TIMESTAMP NOT NULL,
	updated_at    TIMESTAMP NOT NULL,
	UNIQUE (question_id, submission_id)
);
`

// Migrate creates the tables when they do not exist yet.
func (r *Repository) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
