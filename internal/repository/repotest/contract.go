// Package repotest holds the behaviour every Repository implementation must
// share. Backends call Run from their own tests.
package repotest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paulexconde/surveyrun/internal/models"
	"github.com/paulexconde/surveyrun/internal/repository"
	"github.com/paulexconde/surveyrun/pkg/fault"
)

// Factory returns an empty repository for one sub test.
type Factory func(t *testing.T) repository.Repository

var epoch = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

func Run(t *testing.T, newRepo Factory) {
	t.Run("SurveyLifecycle", func(t *testing.T) { testSurveyLifecycle(t, newRepo(t)) })
	t.Run("CommitGraph", func(t *testing.T) { testCommitGraph(t, newRepo(t)) })
	t.Run("DeleteQuestionCascades", func(t *testing.T) { testDeleteCascades(t, newRepo(t)) })
	t.Run("RuleSets", func(t *testing.T) { testRuleSets(t, newRepo(t)) })
	t.Run("HiddenFields", func(t *testing.T) { testHiddenFields(t, newRepo(t)) })
	t.Run("Submissions", func(t *testing.T) { testSubmissions(t, newRepo(t)) })
	t.Run("AnswerUpsert", func(t *testing.T) { testAnswerUpsert(t, newRepo(t)) })
}

func newSurvey(t *testing.T, repo repository.Repository) *models.Survey {
	t.Helper()
	s := &models.Survey{ID: uuid.NewString(), Name: "Ice cream", CreatedAt: epoch}
	require.NoError(t, repo.CreateSurvey(context.Background(), s))
	return s
}

func newQuestion(surveyID string, qt models.QuestionType, text string) *models.Question {
	params, err := models.DefaultParameters(qt)
	if err != nil {
		panic(err)
	}
	return &models.Question{
		ID:         uuid.NewString(),
		SurveyID:   surveyID,
		Text:       text,
		Type:       qt,
		Parameters: params,
		CreatedAt:  epoch,
	}
}

// appendQuestions links qs after each other as the whole graph of s.
func appendQuestions(t *testing.T, repo repository.Repository, s *models.Survey, qs ...*models.Question) {
	t.Helper()
	for i, q := range qs {
		if i+1 < len(qs) {
			q.NextID = qs[i+1].ID
		}
	}
	s.FirstQuestionID = qs[0].ID
	s.LastQuestionID = qs[len(qs)-1].ID
	require.NoError(t, repo.CommitGraph(context.Background(), repository.GraphCommit{Survey: s, Insert: qs}))
}

func testSurveyLifecycle(t *testing.T, repo repository.Repository) {
	ctx := context.Background()
	s := newSurvey(t, repo)

	got, err := repo.GetSurvey(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ice cream", got.Name)
	assert.False(t, got.Published)
	assert.Nil(t, got.PublishedAt)
	assert.Empty(t, got.FirstQuestionID)

	at := epoch.Add(time.Hour)
	got.Published = true
	got.PublishedAt = &at
	got.FirstQuestionID = "ignored"
	require.NoError(t, repo.UpdateSurvey(ctx, got))

	got, err = repo.GetSurvey(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, got.Published)
	require.NotNil(t, got.PublishedAt)
	assert.True(t, got.PublishedAt.Equal(at))
	assert.Empty(t, got.FirstQuestionID, "pointers only change through CommitGraph")

	all, err := repo.ListSurveys(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, repo.DeleteSurvey(ctx, s.ID))
	_, err = repo.GetSurvey(ctx, s.ID)
	assert.ErrorIs(t, err, fault.ErrNotFound)
	assert.ErrorIs(t, repo.DeleteSurvey(ctx, s.ID), fault.ErrNotFound)
}

func testCommitGraph(t *testing.T, repo repository.Repository) {
	ctx := context.Background()
	s := newSurvey(t, repo)

	q1 := newQuestion(s.ID, models.MultipleChoice, "Flavour?")
	q1.Required = true
	q1.Media = models.Media{ImageURL: "https://img.example/1.png", Orientation: models.Split}
	q2 := newQuestion(s.ID, models.Rating, "Rate it")
	q2.Parameters.(*models.RatingParameters).NumberOfSteps = 7

	choices := []*models.Choice{
		{ID: uuid.NewString(), QuestionID: q1.ID, Label: "Chocolate", Position: 1},
		{ID: uuid.NewString(), QuestionID: q1.ID, Label: "Vanilla", Position: 0},
	}
	q1.NextID = q2.ID
	s.FirstQuestionID, s.LastQuestionID = q1.ID, q2.ID
	require.NoError(t, repo.CommitGraph(ctx, repository.GraphCommit{Survey: s, Insert: []*models.Question{q1, q2}, Choices: choices}))

	got, err := repo.GetSurvey(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, q1.ID, got.FirstQuestionID)
	assert.Equal(t, q2.ID, got.LastQuestionID)

	stored, err := repo.GetQuestion(ctx, q1.ID)
	require.NoError(t, err)
	assert.Equal(t, q2.ID, stored.NextID)
	assert.True(t, stored.Required)
	assert.Equal(t, models.Split, stored.Media.Orientation)
	assert.IsType(t, &models.MultipleChoiceParameters{}, stored.Parameters)

	stored, err = repo.GetQuestion(ctx, q2.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, stored.Parameters.(*models.RatingParameters).NumberOfSteps)

	listed, err := repo.ListChoices(ctx, q1.ID)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "Vanilla", listed[0].Label)
	assert.Equal(t, "Chocolate", listed[1].Label)

	ch, err := repo.GetChoice(ctx, choices[0].ID)
	require.NoError(t, err)
	assert.Equal(t, q1.ID, ch.QuestionID)

	// swap q1 and q2
	s.FirstQuestionID, s.LastQuestionID = q2.ID, q1.ID
	require.NoError(t, repo.CommitGraph(ctx, repository.GraphCommit{
		Survey: s,
		Relink: map[string]string{q2.ID: q1.ID, q1.ID: ""},
	}))
	stored, err = repo.GetQuestion(ctx, q2.ID)
	require.NoError(t, err)
	assert.Equal(t, q1.ID, stored.NextID)

	// a commit touching an unknown question changes nothing
	err = repo.CommitGraph(ctx, repository.GraphCommit{
		Survey: s,
		Insert: []*models.Question{newQuestion(s.ID, models.Email, "Email")},
		Delete: []string{"missing"},
	})
	require.Error(t, err)
	qs, err := repo.ListQuestions(ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, qs, 2)
	got, err = repo.GetSurvey(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, q2.ID, got.FirstQuestionID)
}

func testDeleteCascades(t *testing.T, repo repository.Repository) {
	ctx := context.Background()
	s := newSurvey(t, repo)

	q1 := newQuestion(s.ID, models.YesNo, "Q1")
	q2 := newQuestion(s.ID, models.ShortText, "Q2")
	q3 := newQuestion(s.ID, models.ThankYouScreen, "Bye")
	appendQuestions(t, repo, s, q1, q2, q3)

	// a rule set on q1 jumping to q2, and one on q1 testing q2
	jump := &models.RuleSet{ID: uuid.NewString(), QuestionID: q1.ID, JumpToID: q2.ID, Conditions: []*models.Condition{
		{ID: uuid.NewString(), TestedID: q1.ID, Predicate: models.BooleanPredicate{Op: models.Is, Value: true}},
	}}
	tested := &models.RuleSet{ID: uuid.NewString(), QuestionID: q1.ID, JumpToID: q3.ID, Index: 1, Conditions: []*models.Condition{
		{ID: uuid.NewString(), TestedID: q1.ID, Predicate: models.BooleanPredicate{Op: models.Is, Value: false}},
		{ID: uuid.NewString(), Index: 1, TestedID: q2.ID, Operand: models.Or, Predicate: models.TextPredicate{Op: models.TextEqual, Pattern: "x"}},
	}}
	require.NoError(t, repo.CreateRuleSet(ctx, jump))
	require.NoError(t, repo.CreateRuleSet(ctx, tested))

	sub := &models.Submission{ID: uuid.NewString(), SurveyID: s.ID, CreatedAt: epoch}
	require.NoError(t, repo.CreateSubmission(ctx, sub, nil))
	text := "hello"
	require.NoError(t, repo.SaveAnswer(ctx, &models.Answer{
		ID: uuid.NewString(), QuestionID: q2.ID, SubmissionID: sub.ID, Type: models.ShortText,
		Value: &models.ShortTextAnswer{ShortText: &text}, CreatedAt: epoch, UpdatedAt: epoch,
	}))

	s.LastQuestionID = q3.ID
	require.NoError(t, repo.CommitGraph(ctx, repository.GraphCommit{
		Survey: s,
		Relink: map[string]string{q1.ID: q3.ID},
		Delete: []string{q2.ID},
	}))

	_, err := repo.GetQuestion(ctx, q2.ID)
	assert.ErrorIs(t, err, fault.ErrNotFound)
	_, err = repo.GetRuleSet(ctx, jump.ID)
	assert.ErrorIs(t, err, fault.ErrNotFound, "rule sets jumping to a deleted question go with it")

	remaining, err := repo.GetRuleSet(ctx, tested.ID)
	require.NoError(t, err)
	require.Len(t, remaining.Conditions, 1, "conditions testing a deleted question go with it")
	assert.Equal(t, q1.ID, remaining.Conditions[0].TestedID)

	_, err = repo.GetAnswer(ctx, q2.ID, sub.ID)
	assert.ErrorIs(t, err, fault.ErrNotFound)
}

func testRuleSets(t *testing.T, repo repository.Repository) {
	ctx := context.Background()
	s := newSurvey(t, repo)
	q1 := newQuestion(s.ID, models.Number, "How many?")
	q2 := newQuestion(s.ID, models.Date, "When?")
	q3 := newQuestion(s.ID, models.ThankYouScreen, "Bye")
	appendQuestions(t, repo, s, q1, q2, q3)

	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	second := &models.RuleSet{ID: uuid.NewString(), QuestionID: q2.ID, JumpToID: q3.ID, Index: 1, Conditions: []*models.Condition{
		{ID: uuid.NewString(), Index: 1, TestedID: q2.ID, Operand: models.And, Predicate: models.DatePredicate{Op: models.DateIsAfter, Date: day}},
		{ID: uuid.NewString(), Index: 0, TestedID: q1.ID, Predicate: models.NumberPredicate{Op: models.NumberGreaterThan, Pattern: decimal.RequireFromString("2.5")}},
	}}
	first := &models.RuleSet{ID: uuid.NewString(), QuestionID: q2.ID, JumpToID: q3.ID, Index: 0}
	require.NoError(t, repo.CreateRuleSet(ctx, second))
	require.NoError(t, repo.CreateRuleSet(ctx, first))

	listed, err := repo.ListRuleSets(ctx, q2.ID)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, first.ID, listed[0].ID)
	assert.Equal(t, second.ID, listed[1].ID)

	conds := listed[1].Conditions
	require.Len(t, conds, 2)
	assert.Equal(t, 0, conds[0].Index)
	np, ok := conds[0].Predicate.(models.NumberPredicate)
	require.True(t, ok)
	assert.True(t, np.Pattern.Equal(decimal.RequireFromString("2.5")))
	dp, ok := conds[1].Predicate.(models.DatePredicate)
	require.True(t, ok)
	assert.True(t, dp.Date.Equal(day))
	assert.Equal(t, models.And, conds[1].Operand)
	assert.Equal(t, second.ID, conds[1].RuleSetID)

	require.NoError(t, repo.DeleteRuleSet(ctx, second.ID))
	listed, err = repo.ListRuleSets(ctx, q2.ID)
	require.NoError(t, err)
	assert.Len(t, listed, 1)
	assert.ErrorIs(t, repo.DeleteRuleSet(ctx, second.ID), fault.ErrNotFound)
}

func testHiddenFields(t *testing.T, repo repository.Repository) {
	ctx := context.Background()
	s := newSurvey(t, repo)

	f := &models.HiddenField{ID: uuid.NewString(), SurveyID: s.ID, Name: "utm_source"}
	require.NoError(t, repo.CreateHiddenField(ctx, f))

	dup := &models.HiddenField{ID: uuid.NewString(), SurveyID: s.ID, Name: "utm_source"}
	assert.ErrorIs(t, repo.CreateHiddenField(ctx, dup), fault.ErrUniqueViolation)

	found, err := repo.FindHiddenField(ctx, s.ID, "utm_source")
	require.NoError(t, err)
	assert.Equal(t, f.ID, found.ID)

	_, err = repo.FindHiddenField(ctx, s.ID, "missing")
	assert.ErrorIs(t, err, fault.ErrNotFound)

	all, err := repo.ListHiddenFields(ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func testSubmissions(t *testing.T, repo repository.Repository) {
	ctx := context.Background()
	s := newSurvey(t, repo)
	field := &models.HiddenField{ID: uuid.NewString(), SurveyID: s.ID, Name: "ref"}
	require.NoError(t, repo.CreateHiddenField(ctx, field))

	var ids []string
	for i := 0; i < 5; i++ {
		sub := &models.Submission{
			ID:        uuid.NewString(),
			SurveyID:  s.ID,
			IsPreview: i%2 == 0,
			CreatedAt: epoch.Add(time.Duration(i) * time.Minute),
		}
		filled := []*models.FilledField{{ID: uuid.NewString(), FieldID: field.ID, Value: "newsletter"}}
		require.NoError(t, repo.CreateSubmission(ctx, sub, filled))
		ids = append(ids, sub.ID)
	}

	ff, err := repo.ListFilledFields(ctx, ids[0])
	require.NoError(t, err)
	require.Len(t, ff, 1)
	assert.Equal(t, "newsletter", ff[0].Value)
	assert.Equal(t, ids[0], ff[0].SubmissionID)

	page, err := repo.ListSubmissions(ctx, s.ID, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, page.TotalItems)
	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Items, 2)
	assert.Equal(t, ids[4], page.Items[0].ID, "newest first")
	assert.Equal(t, ids[3], page.Items[1].ID)

	sub, err := repo.GetSubmission(ctx, ids[1])
	require.NoError(t, err)
	sub.Complete(epoch.Add(time.Hour))
	require.NoError(t, repo.UpdateSubmission(ctx, sub))
	sub, err = repo.GetSubmission(ctx, ids[1])
	require.NoError(t, err)
	assert.True(t, sub.Completed)
	require.NotNil(t, sub.CompletedAt)

	n, err := repo.DeletePreviewSubmissions(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	page, err = repo.ListSubmissions(ctx, s.ID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalItems)
	_, err = repo.GetSubmission(ctx, ids[0])
	assert.ErrorIs(t, err, fault.ErrNotFound)
}

func testAnswerUpsert(t *testing.T, repo repository.Repository) {
	ctx := context.Background()
	s := newSurvey(t, repo)
	q := newQuestion(s.ID, models.Number, "How many?")
	appendQuestions(t, repo, s, q)
	sub := &models.Submission{ID: uuid.NewString(), SurveyID: s.ID, CreatedAt: epoch}
	require.NoError(t, repo.CreateSubmission(ctx, sub, nil))

	_, err := repo.GetAnswer(ctx, q.ID, sub.ID)
	assert.ErrorIs(t, err, fault.ErrNotFound)

	firstID := uuid.NewString()
	for i, v := range []int64{7, 8, 9} {
		a := &models.Answer{
			ID:           uuid.NewString(),
			QuestionID:   q.ID,
			SubmissionID: sub.ID,
			Type:         models.Number,
			Value:        &models.NumberAnswer{Number: decimal.NewNullDecimal(decimal.NewFromInt(v))},
			CreatedAt:    epoch.Add(time.Duration(i) * time.Second),
			UpdatedAt:    epoch.Add(time.Duration(i) * time.Second),
		}
		if i == 0 {
			a.ID = firstID
		}
		require.NoError(t, repo.SaveAnswer(ctx, a))
	}

	all, err := repo.ListAnswers(ctx, sub.ID)
	require.NoError(t, err)
	require.Len(t, all, 1, "one answer per question and submission")

	got := all[0]
	assert.Equal(t, firstID, got.ID)
	assert.True(t, got.CreatedAt.Equal(epoch))
	assert.True(t, got.UpdatedAt.Equal(epoch.Add(2*time.Second)))
	assert.Equal(t, "9", got.Display())

	one, err := repo.GetAnswer(ctx, q.ID, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, firstID, one.ID)
}
