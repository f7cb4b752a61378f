// Package sqlrepo implements the Repository on top of sqlx. It runs against
// SQLite (modernc.org/sqlite) and PostgreSQL through either lib/pq or pgx.
package sqlrepo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/paulexconde/surveyrun/internal/models"
	"github.com/paulexconde/surveyrun/internal/pkg/paginator"
	"github.com/paulexconde/surveyrun/internal/pkg/store"
	"github.com/paulexconde/surveyrun/internal/repository"
	"github.com/paulexconde/surveyrun/pkg/fault"
)

// Drivers accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverPgx      = "pgx"
)

type Repository struct {
	db     *sqlx.DB
	logger *slog.Logger
	now    func() time.Time

	surveys      store.Datastorer[surveyRow]
	questions    store.Datastorer[questionRow]
	choices      store.Datastorer[choiceRow]
	ruleSets     store.Datastorer[ruleSetRow]
	conditions   store.Datastorer[conditionRow]
	hiddenFields store.Datastorer[hiddenFieldRow]
	submissions  store.Datastorer[submissionRow]
	filled       store.Datastorer[filledFieldRow]
	answers      store.Datastorer[answerRow]

	submissionPages paginator.Paginator[submissionRow]
}

var _ repository.Repository = (*Repository)(nil)

// Open connects to the database and creates the schema.
func Open(ctx context.Context, driver, dsn string, logger *slog.Logger) (*Repository, error) {
	switch driver {
	case DriverSQLite, DriverPostgres, DriverPgx:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// a single connection keeps in-memory databases alive and serializes writers
		db.SetMaxOpenConns(1)
	}

	r := New(db, logger)
	if err := r.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

// New wraps an open connection. The schema must already exist, see Migrate.
func New(db *sqlx.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	r := &Repository{
		db:           db,
		logger:       logger,
		now:          time.Now,
		surveys:      store.NewDataStore[surveyRow](db, "surveys"),
		questions:    store.NewDataStore[questionRow](db, "questions"),
		choices:      store.NewDataStore[choiceRow](db, "choices"),
		ruleSets:     store.NewDataStore[ruleSetRow](db, "rule_sets"),
		conditions:   store.NewDataStore[conditionRow](db, "conditions"),
		hiddenFields: store.NewDataStore[hiddenFieldRow](db, "hidden_fields"),
		submissions:  store.NewDataStore[submissionRow](db, "submissions"),
		filled:       store.NewDataStore[filledFieldRow](db, "filled_fields"),
		answers:      store.NewDataStore[answerRow](db, "answers"),
	}
	r.submissionPages = paginator.NewPaginator(r.submissions)

	r.answers.SetHooks(store.Hooks{
		PreSave: []func(ctx context.Context, tx *sqlx.Tx, data store.DTO, isNew bool) error{
			func(_ context.Context, _ *sqlx.Tx, data store.DTO, isNew bool) error {
				row, ok := data.(*answerRow)
				if !ok {
					return nil
				}
				now := r.now().UTC()
				if isNew && row.CreatedAt.IsZero() {
					row.CreatedAt = now
				}
				if row.UpdatedAt.IsZero() {
					row.UpdatedAt = now
				}
				return nil
			},
		},
	})
	r.submissions.SetHooks(store.Hooks{
		AfterSaveCommit: []func(ctx context.Context, data store.DTO, isNew bool) store.AfterSaveCommitHook{
			func(ctx context.Context, data store.DTO, isNew bool) store.AfterSaveCommitHook {
				row, ok := data.(submissionRow)
				if !ok || isNew || !row.Completed {
					return nil
				}
				return func() {
					r.logger.InfoContext(ctx, "submission completed", "submission", row.ID, "survey", row.SurveyID)
				}
			},
		},
	})
	return r
}

// DB exposes the underlying connection.
func (r *Repository) DB() *sqlx.DB {
	return r.db
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func wrapNotFound(err error, entity, id string) error {
	if errors.Is(err, fault.ErrNotFound) {
		return fmt.Errorf("%s %s: %w", entity, id, fault.ErrNotFound)
	}
	return err
}

func (r *Repository) CreateSurvey(ctx context.Context, s *models.Survey) error {
	row := surveyRow(*s)
	row.CreatedAt = row.CreatedAt.UTC()
	return r.surveys.Create(ctx, row)
}

func (r *Repository) GetSurvey(ctx context.Context, id string) (*models.Survey, error) {
	row, err := r.surveys.Get(ctx, "SELECT "+store.Columns[surveyRow]()+" FROM surveys WHERE id = ?", id)
	if err != nil {
		return nil, wrapNotFound(err, "survey", id)
	}
	s := models.Survey(*row)
	return &s, nil
}

func (r *Repository) UpdateSurvey(ctx context.Context, s *models.Survey) error {
	return store.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, tx.Rebind(
			"UPDATE surveys SET name = ?, published = ?, published_at = ? WHERE id = ?"),
			s.Name, s.Published, s.PublishedAt, s.ID)
		if err != nil {
			return store.MapError(err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("survey %s: %w", s.ID, fault.ErrNotFound)
		}
		return nil
	})
}

func (r *Repository) DeleteSurvey(ctx context.Context, id string) error {
	if _, err := r.GetSurvey(ctx, id); err != nil {
		return err
	}

	questions, err := r.questions.Select(ctx, "SELECT id FROM questions WHERE survey_id = ?", id)
	if err != nil {
		return err
	}
	ids := make([]string, len(questions))
	for i, q := range questions {
		ids[i] = q.ID
	}

	return store.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := r.deleteQuestions(ctx, tx, ids); err != nil {
			return err
		}
		if err := r.deleteSubmissions(ctx, tx, "survey_id = ?", id); err != nil {
			return err
		}
		if _, err := r.hiddenFields.DeleteWhere(ctx, tx, "survey_id", id); err != nil {
			return err
		}
		return r.surveys.DeleteTx(ctx, tx, id)
	})
}

func (r *Repository) ListSurveys(ctx context.Context) ([]*models.Survey, error) {
	rows, err := r.surveys.Select(ctx, "SELECT "+store.Columns[surveyRow]()+" FROM surveys ORDER BY created_at, id")
	if err != nil {
		return nil, err
	}
	out := make([]*models.Survey, len(rows))
	for i := range rows {
		s := models.Survey(rows[i])
		out[i] = &s
	}
	return out, nil
}

func (r *Repository) GetQuestion(ctx context.Context, id string) (*models.Question, error) {
	row, err := r.questions.Get(ctx, "SELECT "+store.Columns[questionRow]()+" FROM questions WHERE id = ?", id)
	if err != nil {
		return nil, wrapNotFound(err, "question", id)
	}
	return row.model()
}

func (r *Repository) ListQuestions(ctx context.Context, surveyID string) ([]*models.Question, error) {
	rows, err := r.questions.Select(ctx, "SELECT "+store.Columns[questionRow]()+" FROM questions WHERE survey_id = ?", surveyID)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Question, 0, len(rows))
	for _, row := range rows {
		q, err := row.model()
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

// CommitGraph applies the commit in one transaction: deletions first, then
// inserts, then pointer rewrites, then the survey's head and tail.
func (r *Repository) CommitGraph(ctx context.Context, c repository.GraphCommit) error {
	return store.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := r.deleteQuestions(ctx, tx, c.Delete); err != nil {
			return err
		}

		for _, q := range c.Insert {
			row, err := toQuestionRow(q)
			if err != nil {
				return err
			}
			if err := r.questions.CreateTx(ctx, tx, row); err != nil {
				return fmt.Errorf("insert question %s: %w", q.ID, err)
			}
		}
		for _, ch := range c.Choices {
			if err := r.choices.CreateTx(ctx, tx, choiceRow(*ch)); err != nil {
				return fmt.Errorf("insert choice %s: %w", ch.ID, err)
			}
		}

		for id, next := range c.Relink {
			res, err := tx.ExecContext(ctx, tx.Rebind("UPDATE questions SET next_question_id = ? WHERE id = ?"), next, id)
			if err != nil {
				return store.MapError(err)
			}
			if n, err := res.RowsAffected(); err == nil && n == 0 {
				return fmt.Errorf("relink question %s: %w", id, fault.ErrNotFound)
			}
			r.logger.DebugContext(ctx, "relinked question", "question", id, "next", next)
		}

		res, err := tx.ExecContext(ctx, tx.Rebind(
			"UPDATE surveys SET first_question_id = ?, last_question_id = ? WHERE id = ?"),
			c.Survey.FirstQuestionID, c.Survey.LastQuestionID, c.Survey.ID)
		if err != nil {
			return store.MapError(err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("survey %s: %w", c.Survey.ID, fault.ErrNotFound)
		}
		return nil
	})
}

// deleteQuestions removes questions children first, so it works whether or
// not the database enforces foreign keys.
func (r *Repository) deleteQuestions(ctx context.Context, tx *sqlx.Tx, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	query, args, err := sqlx.In(
		"SELECT id FROM rule_sets WHERE question_id IN (?) OR jump_to_id IN (?)", ids, ids)
	if err != nil {
		return err
	}
	var ruleSetIDs []string
	if err := tx.SelectContext(ctx, &ruleSetIDs, tx.Rebind(query), args...); err != nil {
		return store.MapError(err)
	}

	if _, err := r.conditions.DeleteWhere(ctx, tx, "ruleset_id", ruleSetIDs); err != nil {
		return err
	}
	if _, err := r.conditions.DeleteWhere(ctx, tx, "tested_id", ids); err != nil {
		return err
	}
	if _, err := r.ruleSets.DeleteWhere(ctx, tx, "id", ruleSetIDs); err != nil {
		return err
	}
	if _, err := r.answers.DeleteWhere(ctx, tx, "question_id", ids); err != nil {
		return err
	}
	if _, err := r.choices.DeleteWhere(ctx, tx, "question_id", ids); err != nil {
		return err
	}
	n, err := r.questions.DeleteWhere(ctx, tx, "id", ids)
	if err != nil {
		return err
	}
	if int(n) != len(ids) {
		return fmt.Errorf("delete questions %s: %w", strings.Join(ids, ","), fault.ErrNotFound)
	}
	return nil
}

func (r *Repository) GetChoice(ctx context.Context, id string) (*models.Choice, error) {
	row, err := r.choices.Get(ctx, "SELECT "+store.Columns[choiceRow]()+" FROM choices WHERE id = ?", id)
	if err != nil {
		return nil, wrapNotFound(err, "choice", id)
	}
	ch := models.Choice(*row)
	return &ch, nil
}

func (r *Repository) ListChoices(ctx context.Context, questionID string) ([]*models.Choice, error) {
	rows, err := r.choices.Select(ctx,
		"SELECT "+store.Columns[choiceRow]()+" FROM choices WHERE question_id = ? ORDER BY position, id", questionID)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Choice, len(rows))
	for i := range rows {
		ch := models.Choice(rows[i])
		out[i] = &ch
	}
	return out, nil
}

func (r *Repository) CreateRuleSet(ctx context.Context, rs *models.RuleSet) error {
	return store.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		err := r.ruleSets.CreateTx(ctx, tx, ruleSetRow{
			ID:         rs.ID,
			QuestionID: rs.QuestionID,
			JumpToID:   rs.JumpToID,
			Index:      rs.Index,
		})
		if err != nil {
			return err
		}
		for _, c := range rs.Conditions {
			row, err := toConditionRow(rs.ID, c)
			if err != nil {
				return err
			}
			if err := r.conditions.CreateTx(ctx, tx, row); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Repository) DeleteRuleSet(ctx context.Context, id string) error {
	if _, err := r.GetRuleSet(ctx, id); err != nil {
		return err
	}
	return store.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := r.conditions.DeleteWhere(ctx, tx, "ruleset_id", id); err != nil {
			return err
		}
		return r.ruleSets.DeleteTx(ctx, tx, id)
	})
}

func (r *Repository) GetRuleSet(ctx context.Context, id string) (*models.RuleSet, error) {
	row, err := r.ruleSets.Get(ctx, "SELECT "+store.Columns[ruleSetRow]()+" FROM rule_sets WHERE id = ?", id)
	if err != nil {
		return nil, wrapNotFound(err, "rule set", id)
	}
	return r.withConditions(ctx, *row)
}

func (r *Repository) ListRuleSets(ctx context.Context, questionID string) ([]*models.RuleSet, error) {
	rows, err := r.ruleSets.Select(ctx,
		"SELECT "+store.Columns[ruleSetRow]()+" FROM rule_sets WHERE question_id = ? ORDER BY idx, id", questionID)
	if err != nil {
		return nil, err
	}
	out := make([]*models.RuleSet, 0, len(rows))
	for _, row := range rows {
		rs, err := r.withConditions(ctx, row)
		if err != nil {
			return nil, err
		}
		out = append(out, rs)
	}
	return out, nil
}

func (r *Repository) withConditions(ctx context.Context, row ruleSetRow) (*models.RuleSet, error) {
	rows, err := r.conditions.Select(ctx,
		"SELECT "+store.Columns[conditionRow]()+" FROM conditions WHERE ruleset_id = ? ORDER BY idx, id", row.ID)
	if err != nil {
		return nil, err
	}
	rs := &models.RuleSet{ID: row.ID, QuestionID: row.QuestionID, JumpToID: row.JumpToID, Index: row.Index}
	for _, cr := range rows {
		c, err := cr.model()
		if err != nil {
			return nil, err
		}
		rs.Conditions = append(rs.Conditions, c)
	}
	return rs, nil
}

func (r *Repository) CreateHiddenField(ctx context.Context, f *models.HiddenField) error {
	return r.hiddenFields.Create(ctx, hiddenFieldRow(*f))
}

func (r *Repository) FindHiddenField(ctx context.Context, surveyID, name string) (*models.HiddenField, error) {
	row, err := r.hiddenFields.Get(ctx,
		"SELECT "+store.Columns[hiddenFieldRow]()+" FROM hidden_fields WHERE survey_id = ? AND name = ?", surveyID, name)
	if err != nil {
		return nil, wrapNotFound(err, "hidden field", name)
	}
	f := models.HiddenField(*row)
	return &f, nil
}

func (r *Repository) ListHiddenFields(ctx context.Context, surveyID string) ([]*models.HiddenField, error) {
	rows, err := r.hiddenFields.Select(ctx,
		"SELECT "+store.Columns[hiddenFieldRow]()+" FROM hidden_fields WHERE survey_id = ? ORDER BY name", surveyID)
	if err != nil {
		return nil, err
	}
	out := make([]*models.HiddenField, len(rows))
	for i := range rows {
		f := models.HiddenField(rows[i])
		out[i] = &f
	}
	return out, nil
}

func (r *Repository) CreateSubmission(ctx context.Context, s *models.Submission, filled []*models.FilledField) error {
	return store.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		row := submissionRow(*s)
		row.CreatedAt = row.CreatedAt.UTC()
		if err := r.submissions.CreateTx(ctx, tx, row); err != nil {
			return err
		}
		for _, f := range filled {
			ff := filledFieldRow(*f)
			ff.SubmissionID = s.ID
			if err := r.filled.CreateTx(ctx, tx, ff); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Repository) GetSubmission(ctx context.Context, id string) (*models.Submission, error) {
	row, err := r.submissions.Get(ctx, "SELECT "+store.Columns[submissionRow]()+" FROM submissions WHERE id = ?", id)
	if err != nil {
		return nil, wrapNotFound(err, "submission", id)
	}
	s := models.Submission(*row)
	return &s, nil
}

func (r *Repository) UpdateSubmission(ctx context.Context, s *models.Submission) error {
	err := r.submissions.Update(ctx, submissionRow(*s))
	return wrapNotFound(err, "submission", s.ID)
}

func (r *Repository) DeletePreviewSubmissions(ctx context.Context, surveyID string) (int, error) {
	var n int
	err := store.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var ids []string
		if err := tx.SelectContext(ctx, &ids, tx.Rebind(
			"SELECT id FROM submissions WHERE survey_id = ? AND is_preview = ?"), surveyID, true); err != nil {
			return store.MapError(err)
		}
		n = len(ids)
		return r.deleteSubmissionIDs(ctx, tx, ids)
	})
	return n, err
}

func (r *Repository) deleteSubmissions(ctx context.Context, tx *sqlx.Tx, where string, args ...any) error {
	var ids []string
	if err := tx.SelectContext(ctx, &ids, tx.Rebind("SELECT id FROM submissions WHERE "+where), args...); err != nil {
		return store.MapError(err)
	}
	return r.deleteSubmissionIDs(ctx, tx, ids)
}

func (r *Repository) deleteSubmissionIDs(ctx context.Context, tx *sqlx.Tx, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := r.answers.DeleteWhere(ctx, tx, "submission_id", ids); err != nil {
		return err
	}
	if _, err := r.filled.DeleteWhere(ctx, tx, "submission_id", ids); err != nil {
		return err
	}
	_, err := r.submissions.DeleteWhere(ctx, tx, "id", ids)
	return err
}

func (r *Repository) ListSubmissions(ctx context.Context, surveyID string, page, limit int) (*paginator.PaginatedResponse[models.Submission], error) {
	query := "SELECT " + store.Columns[submissionRow]() + " FROM submissions WHERE survey_id = ? ORDER BY created_at DESC, id DESC"
	rows, err := r.submissionPages.PaginateQuery(ctx, query, []any{surveyID}, page, limit)
	if err != nil {
		return nil, err
	}

	items := make([]models.Submission, len(rows.Items))
	for i := range rows.Items {
		items[i] = models.Submission(rows.Items[i])
	}
	return &paginator.PaginatedResponse[models.Submission]{
		Items:       items,
		CurrentPage: rows.CurrentPage,
		TotalPages:  rows.TotalPages,
		PrevPage:    rows.PrevPage,
		NextPage:    rows.NextPage,
		TotalItems:  rows.TotalItems,
	}, nil
}

func (r *Repository) ListFilledFields(ctx context.Context, submissionID string) ([]*models.FilledField, error) {
	rows, err := r.filled.Select(ctx,
		"SELECT "+store.Columns[filledFieldRow]()+" FROM filled_fields WHERE submission_id = ? ORDER BY id", submissionID)
	if err != nil {
		return nil, err
	}
	out := make([]*models.FilledField, len(rows))
	for i := range rows {
		f := models.FilledField(rows[i])
		out[i] = &f
	}
	return out, nil
}

func (r *Repository) GetAnswer(ctx context.Context, questionID, submissionID string) (*models.Answer, error) {
	row, err := r.answers.Get(ctx,
		"SELECT "+store.Columns[answerRow]()+" FROM answers WHERE question_id = ? AND submission_id = ?",
		questionID, submissionID)
	if err != nil {
		return nil, wrapNotFound(err, "answer", questionID+"/"+submissionID)
	}
	return row.model()
}

// SaveAnswer inserts the answer or, when its pair already has one, rewrites
// the stored value. A concurrent insert of the same pair is retried as an
// update.
func (r *Repository) SaveAnswer(ctx context.Context, a *models.Answer) error {
	row, err := toAnswerRow(a)
	if err != nil {
		return err
	}

	err = r.saveAnswer(ctx, &row)
	if errors.Is(err, fault.ErrUniqueViolation) {
		r.logger.DebugContext(ctx, "answer inserted concurrently, retrying as update", "question", a.QuestionID, "submission", a.SubmissionID)
		err = r.saveAnswer(ctx, &row)
	}
	return err
}

func (r *Repository) saveAnswer(ctx context.Context, row *answerRow) error {
	return store.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var existing answerRow
		err := tx.GetContext(ctx, &existing, tx.Rebind(
			"SELECT "+store.Columns[answerRow]()+" FROM answers WHERE question_id = ? AND submission_id = ?"),
			row.QuestionID, row.SubmissionID)
		switch {
		case err == nil:
			row.ID = existing.ID
			row.CreatedAt = existing.CreatedAt
			return r.answers.UpdateTx(ctx, tx, row)
		case errors.Is(store.MapError(err), fault.ErrNotFound):
			return r.answers.CreateTx(ctx, tx, row)
		default:
			return store.MapError(err)
		}
	})
}

func (r *Repository) ListAnswers(ctx context.Context, submissionID string) ([]*models.Answer, error) {
	rows, err := r.answers.Select(ctx,
		"SELECT "+store.Columns[answerRow]()+" FROM answers WHERE submission_id = ? ORDER BY created_at, id", submissionID)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Answer, 0, len(rows))
	for _, row := range rows {
		a, err := row.model()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
