// Package memory is an in-process Repository. Every read and write copies the
// entities, so callers never share state with the store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/paulexconde/surveyrun/internal/models"
	"github.com/paulexconde/surveyrun/internal/pkg/paginator"
	"github.com/paulexconde/surveyrun/internal/repository"
	"github.com/paulexconde/surveyrun/pkg/fault"
)

type pair struct {
	question   string
	submission string
}

type Repository struct {
	mu sync.RWMutex

	surveys      map[string]*models.Survey
	questions    map[string]*models.Question
	choices      map[string]*models.Choice
	ruleSets     map[string]*models.RuleSet
	conditions   map[string]*models.Condition
	hiddenFields map[string]*models.HiddenField
	submissions  map[string]*models.Submission
	filled       map[string]*models.FilledField
	answers      map[string]*models.Answer
	answerByPair map[pair]string

	// insertion order, used to break ties between equal timestamps
	seq   int64
	order map[string]int64
}

var _ repository.Repository = (*Repository)(nil)

func New() *Repository {
	return &Repository{
		surveys:      make(map[string]*models.Survey),
		questions:    make(map[string]*models.Question),
		choices:      make(map[string]*models.Choice),
		ruleSets:     make(map[string]*models.RuleSet),
		conditions:   make(map[string]*models.Condition),
		hiddenFields: make(map[string]*models.HiddenField),
		submissions:  make(map[string]*models.Submission),
		filled:       make(map[string]*models.FilledField),
		answers:      make(map[string]*models.Answer),
		answerByPair: make(map[pair]string),
		order:        make(map[string]int64),
	}
}

func notFound(entity, id string) error {
	return fmt.Errorf("%s %s: %w", entity, id, fault.ErrNotFound)
}

func (r *Repository) stamp(id string) {
	r.seq++
	r.order[id] = r.seq
}

func (r *Repository) CreateSurvey(_ context.Context, s *models.Survey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.surveys[s.ID]; ok {
		return fault.ErrUniqueViolation
	}
	r.surveys[s.ID] = cloneSurvey(s)
	r.stamp(s.ID)
	return nil
}

func (r *Repository) GetSurvey(_ context.Context, id string) (*models.Survey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.surveys[id]
	if !ok {
		return nil, notFound("survey", id)
	}
	return cloneSurvey(s), nil
}

func (r *Repository) UpdateSurvey(_ context.Context, s *models.Survey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.surveys[s.ID]
	if !ok {
		return notFound("survey", s.ID)
	}
	next := cloneSurvey(s)
	next.FirstQuestionID = cur.FirstQuestionID
	next.LastQuestionID = cur.LastQuestionID
	r.surveys[s.ID] = next
	return nil
}

func (r *Repository) DeleteSurvey(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.surveys[id]; !ok {
		return notFound("survey", id)
	}

	var questionIDs []string
	for qid, q := range r.questions {
		if q.SurveyID == id {
			questionIDs = append(questionIDs, qid)
		}
	}
	r.deleteQuestions(questionIDs)

	for sid, s := range r.submissions {
		if s.SurveyID == id {
			r.deleteSubmission(sid)
		}
	}
	for fid, f := range r.hiddenFields {
		if f.SurveyID == id {
			delete(r.hiddenFields, fid)
		}
	}
	delete(r.surveys, id)
	return nil
}

func (r *Repository) ListSurveys(_ context.Context) ([]*models.Survey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Survey, 0, len(r.surveys))
	for _, s := range r.surveys {
		out = append(out, cloneSurvey(s))
	}
	sort.Slice(out, func(i, j int) bool { return r.order[out[i].ID] < r.order[out[j].ID] })
	return out, nil
}

func (r *Repository) GetQuestion(_ context.Context, id string) (*models.Question, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	q, ok := r.questions[id]
	if !ok {
		return nil, notFound("question", id)
	}
	return cloneQuestion(q)
}

func (r *Repository) ListQuestions(_ context.Context, surveyID string) ([]*models.Question, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.Question
	for _, q := range r.questions {
		if q.SurveyID != surveyID {
			continue
		}
		c, err := cloneQuestion(q)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// CommitGraph checks every reference before touching any map, so a rejected
// commit leaves the store unchanged.
func (r *Repository) CommitGraph(_ context.Context, c repository.GraphCommit) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.surveys[c.Survey.ID]; !ok {
		return notFound("survey", c.Survey.ID)
	}

	inserted := make(map[string]*models.Question, len(c.Insert))
	for _, q := range c.Insert {
		if _, ok := r.questions[q.ID]; ok {
			return fmt.Errorf("question %s: %w", q.ID, fault.ErrUniqueViolation)
		}
		if q.SurveyID != c.Survey.ID {
			return fmt.Errorf("question %s belongs to survey %s: %w", q.ID, q.SurveyID, fault.ErrForeignKeyViolation)
		}
		clone, err := cloneQuestion(q)
		if err != nil {
			return err
		}
		inserted[q.ID] = clone
	}
	for _, ch := range c.Choices {
		if _, ok := inserted[ch.QuestionID]; !ok {
			if _, ok := r.questions[ch.QuestionID]; !ok {
				return fmt.Errorf("choice %s: %w", ch.ID, fault.ErrForeignKeyViolation)
			}
		}
		if _, ok := r.choices[ch.ID]; ok {
			return fmt.Errorf("choice %s: %w", ch.ID, fault.ErrUniqueViolation)
		}
	}
	deleted := make(map[string]bool, len(c.Delete))
	for _, id := range c.Delete {
		if _, ok := r.questions[id]; !ok {
			return notFound("question", id)
		}
		deleted[id] = true
	}
	exists := func(id string) bool {
		if deleted[id] {
			return false
		}
		_, old := r.questions[id]
		_, fresh := inserted[id]
		return old || fresh
	}
	for id, next := range c.Relink {
		if !exists(id) || (next != "" && !exists(next)) {
			return fmt.Errorf("relink %s -> %s: %w", id, next, fault.ErrForeignKeyViolation)
		}
	}

	r.deleteQuestions(c.Delete)
	for _, q := range c.Insert {
		r.questions[q.ID] = inserted[q.ID]
		r.stamp(q.ID)
	}
	for _, ch := range c.Choices {
		clone := *ch
		r.choices[ch.ID] = &clone
	}
	for id, next := range c.Relink {
		r.questions[id].NextID = next
	}

	s := r.surveys[c.Survey.ID]
	s.FirstQuestionID = c.Survey.FirstQuestionID
	s.LastQuestionID = c.Survey.LastQuestionID
	return nil
}

// deleteQuestions removes the questions and everything that depends on them.
// The caller holds the write lock.
func (r *Repository) deleteQuestions(ids []string) {
	gone := make(map[string]bool, len(ids))
	for _, id := range ids {
		gone[id] = true
	}
	if len(gone) == 0 {
		return
	}

	for id, ch := range r.choices {
		if gone[ch.QuestionID] {
			delete(r.choices, id)
		}
	}
	for id, rs := range r.ruleSets {
		if gone[rs.QuestionID] || gone[rs.JumpToID] {
			r.deleteRuleSet(id)
		}
	}
	for id, c := range r.conditions {
		if gone[c.TestedID] {
			delete(r.conditions, id)
		}
	}
	for id, a := range r.answers {
		if gone[a.QuestionID] {
			delete(r.answerByPair, pair{a.QuestionID, a.SubmissionID})
			delete(r.answers, id)
		}
	}
	for id := range gone {
		delete(r.questions, id)
	}
}

func (r *Repository) GetChoice(_ context.Context, id string) (*models.Choice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ch, ok := r.choices[id]
	if !ok {
		return nil, notFound("choice", id)
	}
	clone := *ch
	return &clone, nil
}

func (r *Repository) ListChoices(_ context.Context, questionID string) ([]*models.Choice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.Choice
	for _, ch := range r.choices {
		if ch.QuestionID == questionID {
			clone := *ch
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *Repository) CreateRuleSet(_ context.Context, rs *models.RuleSet) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.ruleSets[rs.ID]; ok {
		return fault.ErrUniqueViolation
	}
	for _, id := range []string{rs.QuestionID, rs.JumpToID} {
		if _, ok := r.questions[id]; !ok {
			return fmt.Errorf("rule set %s: question %s: %w", rs.ID, id, fault.ErrForeignKeyViolation)
		}
	}
	for _, c := range rs.Conditions {
		if _, ok := r.questions[c.TestedID]; !ok {
			return fmt.Errorf("condition %s: question %s: %w", c.ID, c.TestedID, fault.ErrForeignKeyViolation)
		}
	}

	head := *rs
	head.Conditions = nil
	r.ruleSets[rs.ID] = &head
	for _, c := range rs.Conditions {
		clone := *c
		clone.RuleSetID = rs.ID
		r.conditions[c.ID] = &clone
	}
	return nil
}

func (r *Repository) DeleteRuleSet(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.ruleSets[id]; !ok {
		return notFound("rule set", id)
	}
	r.deleteRuleSet(id)
	return nil
}

func (r *Repository) deleteRuleSet(id string) {
	for cid, c := range r.conditions {
		if c.RuleSetID == id {
			delete(r.conditions, cid)
		}
	}
	delete(r.ruleSets, id)
}

func (r *Repository) GetRuleSet(_ context.Context, id string) (*models.RuleSet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rs, ok := r.ruleSets[id]
	if !ok {
		return nil, notFound("rule set", id)
	}
	return r.withConditions(rs), nil
}

func (r *Repository) ListRuleSets(_ context.Context, questionID string) ([]*models.RuleSet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.RuleSet
	for _, rs := range r.ruleSets {
		if rs.QuestionID == questionID {
			out = append(out, r.withConditions(rs))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Index != out[j].Index {
			return out[i].Index < out[j].Index
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *Repository) withConditions(rs *models.RuleSet) *models.RuleSet {
	out := *rs
	out.Conditions = nil
	for _, c := range r.conditions {
		if c.RuleSetID == rs.ID {
			clone := *c
			out.Conditions = append(out.Conditions, &clone)
		}
	}
	sort.Slice(out.Conditions, func(i, j int) bool { return out.Conditions[i].Index < out.Conditions[j].Index })
	return &out
}

func (r *Repository) CreateHiddenField(_ context.Context, f *models.HiddenField) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.surveys[f.SurveyID]; !ok {
		return fmt.Errorf("hidden field %s: %w", f.Name, fault.ErrForeignKeyViolation)
	}
	for _, existing := range r.hiddenFields {
		if existing.SurveyID == f.SurveyID && existing.Name == f.Name {
			return fault.ErrUniqueViolation
		}
	}
	clone := *f
	r.hiddenFields[f.ID] = &clone
	r.stamp(f.ID)
	return nil
}

func (r *Repository) FindHiddenField(_ context.Context, surveyID, name string) (*models.HiddenField, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, f := range r.hiddenFields {
		if f.SurveyID == surveyID && f.Name == name {
			clone := *f
			return &clone, nil
		}
	}
	return nil, notFound("hidden field", name)
}

func (r *Repository) ListHiddenFields(_ context.Context, surveyID string) ([]*models.HiddenField, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.HiddenField
	for _, f := range r.hiddenFields {
		if f.SurveyID == surveyID {
			clone := *f
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return r.order[out[i].ID] < r.order[out[j].ID] })
	return out, nil
}

func (r *Repository) CreateSubmission(_ context.Context, s *models.Submission, filled []*models.FilledField) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.surveys[s.SurveyID]; !ok {
		return fmt.Errorf("submission %s: %w", s.ID, fault.ErrForeignKeyViolation)
	}
	if _, ok := r.submissions[s.ID]; ok {
		return fault.ErrUniqueViolation
	}
	for _, f := range filled {
		if _, ok := r.hiddenFields[f.FieldID]; !ok {
			return fmt.Errorf("filled field %s: %w", f.FieldID, fault.ErrForeignKeyViolation)
		}
	}

	r.submissions[s.ID] = cloneSubmission(s)
	r.stamp(s.ID)
	for _, f := range filled {
		clone := *f
		clone.SubmissionID = s.ID
		r.filled[f.ID] = &clone
		r.stamp(f.ID)
	}
	return nil
}

func (r *Repository) GetSubmission(_ context.Context, id string) (*models.Submission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.submissions[id]
	if !ok {
		return nil, notFound("submission", id)
	}
	return cloneSubmission(s), nil
}

func (r *Repository) UpdateSubmission(_ context.Context, s *models.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.submissions[s.ID]; !ok {
		return notFound("submission", s.ID)
	}
	r.submissions[s.ID] = cloneSubmission(s)
	return nil
}

func (r *Repository) DeletePreviewSubmissions(_ context.Context, surveyID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, s := range r.submissions {
		if s.SurveyID == surveyID && s.IsPreview {
			r.deleteSubmission(id)
			n++
		}
	}
	return n, nil
}

func (r *Repository) deleteSubmission(id string) {
	for fid, f := range r.filled {
		if f.SubmissionID == id {
			delete(r.filled, fid)
		}
	}
	for aid, a := range r.answers {
		if a.SubmissionID == id {
			delete(r.answerByPair, pair{a.QuestionID, a.SubmissionID})
			delete(r.answers, aid)
		}
	}
	delete(r.submissions, id)
}

func (r *Repository) ListSubmissions(_ context.Context, surveyID string, page, limit int) (*paginator.PaginatedResponse[models.Submission], error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []models.Submission
	for _, s := range r.submissions {
		if s.SurveyID == surveyID {
			all = append(all, *cloneSubmission(s))
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return r.order[all[i].ID] > r.order[all[j].ID]
	})
	return paginator.Paginate(all, page, limit), nil
}

func (r *Repository) ListFilledFields(_ context.Context, submissionID string) ([]*models.FilledField, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.FilledField
	for _, f := range r.filled {
		if f.SubmissionID == submissionID {
			clone := *f
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return r.order[out[i].ID] < r.order[out[j].ID] })
	return out, nil
}

func (r *Repository) GetAnswer(_ context.Context, questionID, submissionID string) (*models.Answer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.answerByPair[pair{questionID, submissionID}]
	if !ok {
		return nil, notFound("answer", questionID+"/"+submissionID)
	}
	return cloneAnswer(r.answers[id])
}

func (r *Repository) SaveAnswer(_ context.Context, a *models.Answer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.questions[a.QuestionID]; !ok {
		return fmt.Errorf("answer: question %s: %w", a.QuestionID, fault.ErrForeignKeyViolation)
	}
	if _, ok := r.submissions[a.SubmissionID]; !ok {
		return fmt.Errorf("answer: submission %s: %w", a.SubmissionID, fault.ErrForeignKeyViolation)
	}

	clone, err := cloneAnswer(a)
	if err != nil {
		return err
	}

	key := pair{a.QuestionID, a.SubmissionID}
	if id, ok := r.answerByPair[key]; ok {
		existing := r.answers[id]
		clone.ID = existing.ID
		clone.CreatedAt = existing.CreatedAt
		r.answers[id] = clone
		return nil
	}

	if _, ok := r.answers[a.ID]; ok {
		return fault.ErrUniqueViolation
	}
	r.answers[a.ID] = clone
	r.answerByPair[key] = a.ID
	r.stamp(a.ID)
	return nil
}

func (r *Repository) ListAnswers(_ context.Context, submissionID string) ([]*models.Answer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.Answer
	for _, a := range r.answers {
		if a.SubmissionID != submissionID {
			continue
		}
		clone, err := cloneAnswer(a)
		if err != nil {
			return nil, err
		}
		out = append(out, clone)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return r.order[out[i].ID] < r.order[out[j].ID]
	})
	return out, nil
}
