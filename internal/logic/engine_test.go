package logic

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paulexconde/surveyrun/internal/models"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(nil)
	require.NoError(t, err)
	return e
}

func ptr[T any](v T) *T { return &v }

func answer(questionID string, v models.AnswerValue) *models.Answer {
	return &models.Answer{ID: "a-" + questionID, QuestionID: questionID, Type: v.QuestionType(), Value: v}
}

func lookup(answers ...*models.Answer) AnswerLookup {
	byQuestion := map[string]*models.Answer{}
	for _, a := range answers {
		byQuestion[a.QuestionID] = a
	}
	return func(id string) *models.Answer { return byQuestion[id] }
}

func TestEvaluatePredicates(t *testing.T) {
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		pred   models.Predicate
		value  models.AnswerValue
		want   bool
		wantOK bool
	}{
		{"text equal", models.TextPredicate{Op: models.TextEqual, Pattern: "hello"}, &models.ShortTextAnswer{ShortText: ptr("hello")}, true, true},
		{"text not equal", models.TextPredicate{Op: models.TextNotEqual, Pattern: "hello"}, &models.ShortTextAnswer{ShortText: ptr("hello")}, false, true},
		{"text starts with", models.TextPredicate{Op: models.TextStartsWith, Pattern: "+33"}, &models.PhoneNumberAnswer{PhoneNumber: ptr("+33612")}, true, true},
		{"text ends with", models.TextPredicate{Op: models.TextEndsWith, Pattern: ".org"}, &models.EmailAnswer{Email: ptr("a@b.org")}, true, true},
		{"text contains", models.TextPredicate{Op: models.TextContains, Pattern: "ell"}, &models.LongTextAnswer{LongText: ptr("hello")}, true, true},
		{"text does not contain", models.TextPredicate{Op: models.TextDoesNotContain, Pattern: "ell"}, &models.LongTextAnswer{LongText: ptr("hello")}, false, true},
		{"text on dropdown label", models.TextPredicate{Op: models.TextEqual, Pattern: "Paris"}, &models.DropdownAnswer{Selection: models.Selection{ChoiceIDs: []string{"c1"}, Labels: []string{"Paris"}}}, true, true},
		{"text null is not equal", models.TextPredicate{Op: models.TextEqual, Pattern: ""}, &models.ShortTextAnswer{}, false, true},
		{"text null differs", models.TextPredicate{Op: models.TextNotEqual, Pattern: "x"}, &models.ShortTextAnswer{}, true, true},
		{"text null has no prefix", models.TextPredicate{Op: models.TextStartsWith, Pattern: "x"}, &models.ShortTextAnswer{}, false, false},
		{"text empty dropdown differs", models.TextPredicate{Op: models.TextNotEqual, Pattern: "Paris"}, &models.DropdownAnswer{}, true, true},

		{"number equal", models.NumberPredicate{Op: models.NumberEqual, Pattern: decimal.NewFromInt(7)}, &models.NumberAnswer{Number: decimal.NewNullDecimal(decimal.NewFromInt(7))}, true, true},
		{"number not equal", models.NumberPredicate{Op: models.NumberNotEqual, Pattern: decimal.NewFromInt(7)}, &models.RatingAnswer{Rating: ptr(3)}, true, true},
		{"number lower", models.NumberPredicate{Op: models.NumberLowerThan, Pattern: decimal.NewFromInt(5)}, &models.OpinionScaleAnswer{Opinion: ptr(3)}, true, true},
		{"number lower or equal", models.NumberPredicate{Op: models.NumberLowerThanOrEqual, Pattern: decimal.NewFromInt(3)}, &models.OpinionScaleAnswer{Opinion: ptr(3)}, true, true},
		{"number greater", models.NumberPredicate{Op: models.NumberGreaterThan, Pattern: decimal.RequireFromString("2.5")}, &models.NumberAnswer{Number: decimal.NewNullDecimal(decimal.RequireFromString("2.4"))}, false, true},
		{"number greater or equal", models.NumberPredicate{Op: models.NumberGreaterThanOrEqual, Pattern: decimal.NewFromInt(3)}, &models.RatingAnswer{Rating: ptr(3)}, true, true},
		{"number null is not equal", models.NumberPredicate{Op: models.NumberEqual}, &models.NumberAnswer{}, false, true},
		{"number null differs", models.NumberPredicate{Op: models.NumberNotEqual, Pattern: decimal.NewFromInt(3)}, &models.RatingAnswer{}, true, true},
		{"number null is not ordered", models.NumberPredicate{Op: models.NumberLowerThan, Pattern: decimal.NewFromInt(3)}, &models.OpinionScaleAnswer{}, false, false},

		{"choice is", models.ChoicePredicate{Op: models.Is, ChoiceID: "c2"}, &models.MultipleChoiceAnswer{Selection: models.Selection{ChoiceIDs: []string{"c1", "c2"}}}, true, true},
		{"choice is not", models.ChoicePredicate{Op: models.IsNot, ChoiceID: "c2"}, &models.PictureChoiceAnswer{Selection: models.Selection{ChoiceIDs: []string{"c1"}}}, true, true},
		{"other never matches", models.ChoicePredicate{Op: models.Is, ChoiceID: "Mint"}, &models.MultipleChoiceAnswer{Selection: models.Selection{Other: "Mint"}}, false, true},

		{"boolean is", models.BooleanPredicate{Op: models.Is, Value: false}, &models.YesNoAnswer{Yes: ptr(false)}, true, true},
		{"boolean is not", models.BooleanPredicate{Op: models.IsNot, Value: true}, &models.LegalAnswer{Accept: ptr(true)}, false, true},
		{"boolean file present", models.BooleanPredicate{Op: models.Is, Value: true}, &models.FileUploadAnswer{File: &models.StoredFile{Name: "cv.pdf"}}, true, true},
		{"boolean null is not", models.BooleanPredicate{Op: models.Is, Value: true}, &models.YesNoAnswer{}, false, true},
		{"boolean null differs", models.BooleanPredicate{Op: models.IsNot, Value: true}, &models.YesNoAnswer{}, true, true},

		{"date on ignores clock", models.DatePredicate{Op: models.DateIsOn, Date: day.Add(13 * time.Hour)}, &models.DateAnswer{Date: ptr(day)}, true, true},
		{"date not on", models.DatePredicate{Op: models.DateIsNotOn, Date: day}, &models.DateAnswer{Date: ptr(day.AddDate(0, 0, 1))}, true, true},
		{"date before", models.DatePredicate{Op: models.DateIsBefore, Date: day}, &models.DateAnswer{Date: ptr(day.AddDate(0, 0, -1))}, true, true},
		{"date before or on", models.DatePredicate{Op: models.DateIsBeforeOrOn, Date: day}, &models.DateAnswer{Date: ptr(day)}, true, true},
		{"date after", models.DatePredicate{Op: models.DateIsAfter, Date: day}, &models.DateAnswer{Date: ptr(day)}, false, true},
		{"date after or on", models.DatePredicate{Op: models.DateIsAfterOrOn, Date: day}, &models.DateAnswer{Date: ptr(day)}, true, true},
		{"date null is not on", models.DatePredicate{Op: models.DateIsOn, Date: day}, &models.DateAnswer{}, false, true},
		{"date null is not on any day", models.DatePredicate{Op: models.DateIsNotOn, Date: day}, &models.DateAnswer{}, true, true},
		{"date null is not ordered", models.DatePredicate{Op: models.DateIsBefore, Date: day}, &models.DateAnswer{}, false, false},

		{"incompatible variant is skipped", models.NumberPredicate{Op: models.NumberEqual}, &models.ShortTextAnswer{ShortText: ptr("7")}, false, false},
	}

	e := newEngine(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &models.Condition{ID: "c", TestedID: "q1", Predicate: tt.pred}
			got, ok, err := e.Evaluate(c, answer("q1", tt.value))
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateUnknownMatch(t *testing.T) {
	e := newEngine(t)
	c := &models.Condition{Predicate: models.TextPredicate{Op: "LT"}}
	_, _, err := e.Evaluate(c, answer("q1", &models.ShortTextAnswer{ShortText: ptr("x")}))
	assert.ErrorIs(t, err, ErrUnknownMatch)
}

func yesNo(id string, op models.IsMatch, value bool, operand models.Operand, index int, tested string) *models.Condition {
	return &models.Condition{
		ID:        id,
		Index:     index,
		TestedID:  tested,
		Operand:   operand,
		Predicate: models.BooleanPredicate{Op: op, Value: value},
	}
}

func TestEvaluateRuleSetFold(t *testing.T) {
	// q1 answered Yes, q2 answered No, blank left empty.
	answers := lookup(
		answer("q1", &models.YesNoAnswer{Yes: ptr(true)}),
		answer("q2", &models.YesNoAnswer{Yes: ptr(false)}),
		answer("blank", &models.YesNoAnswer{}),
	)

	tests := []struct {
		name       string
		conditions []*models.Condition
		want       bool
	}{
		{
			"C1 AND, C2 OR is C1 or C2",
			[]*models.Condition{
				yesNo("c1", models.Is, false, models.And, 0, "q1"),
				yesNo("c2", models.Is, false, models.Or, 1, "q2"),
			},
			true,
		},
		{
			"C1 AND, C2 AND is C1 and C2",
			[]*models.Condition{
				yesNo("c1", models.Is, false, models.And, 0, "q1"),
				yesNo("c2", models.Is, false, models.And, 1, "q2"),
			},
			false,
		},
		{
			"left to right without precedence",
			// (true OR false) AND false
			[]*models.Condition{
				yesNo("c1", models.Is, true, "", 0, "q1"),
				yesNo("c2", models.Is, true, models.Or, 1, "q2"),
				yesNo("c3", models.Is, true, models.And, 2, "q2"),
			},
			false,
		},
		{
			"conditions are sorted by index",
			[]*models.Condition{
				yesNo("c2", models.Is, true, models.And, 1, "q2"),
				yesNo("c1", models.Is, true, "", 0, "q1"),
			},
			false,
		},
		{
			"missing answer is skipped not false",
			[]*models.Condition{
				yesNo("c1", models.Is, true, "", 0, "q1"),
				yesNo("c2", models.Is, true, models.And, 1, "missing"),
			},
			true,
		},
		{
			"first condition skipped seeds with the next",
			[]*models.Condition{
				yesNo("c1", models.Is, true, "", 0, "missing"),
				yesNo("c2", models.Is, false, models.And, 1, "q2"),
			},
			true,
		},
		{
			"null answer differs from the pattern",
			[]*models.Condition{
				yesNo("c1", models.IsNot, true, "", 0, "blank"),
			},
			true,
		},
		{
			"null answer never equals the pattern",
			[]*models.Condition{
				yesNo("c1", models.Is, true, "", 0, "q1"),
				yesNo("c2", models.Is, false, models.And, 1, "blank"),
			},
			false,
		},
		{
			"all skipped is no jump",
			[]*models.Condition{
				yesNo("c1", models.Is, true, "", 0, "missing"),
			},
			false,
		},
		{"no conditions", nil, false},
	}

	e := newEngine(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := &models.RuleSet{ID: "rs", Conditions: tt.conditions}
			got, err := e.EvaluateRuleSet(rs, answers)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNext(t *testing.T) {
	e := newEngine(t)
	q1 := &models.Question{ID: "q1", Type: models.YesNo, NextID: "q2"}

	noJump := []*models.RuleSet{{
		ID: "rs1", QuestionID: "q1", JumpToID: "q3", Index: 0,
		Conditions: []*models.Condition{yesNo("c1", models.Is, false, "", 0, "q1")},
	}}

	t.Run("no rule sets uses the default", func(t *testing.T) {
		next, err := e.Next(q1, nil, lookup())
		require.NoError(t, err)
		assert.Equal(t, "q2", next)
	})

	t.Run("matching rule set jumps", func(t *testing.T) {
		next, err := e.Next(q1, noJump, lookup(answer("q1", &models.YesNoAnswer{Yes: ptr(false)})))
		require.NoError(t, err)
		assert.Equal(t, "q3", next)
	})

	t.Run("falls back when nothing matches", func(t *testing.T) {
		next, err := e.Next(q1, noJump, lookup(answer("q1", &models.YesNoAnswer{Yes: ptr(true)})))
		require.NoError(t, err)
		assert.Equal(t, "q2", next)
	})

	t.Run("first match wins by index", func(t *testing.T) {
		ruleSets := []*models.RuleSet{
			{ID: "late", JumpToID: "q9", Index: 1, Conditions: []*models.Condition{yesNo("c2", models.Is, true, "", 0, "q1")}},
			{ID: "early", JumpToID: "q4", Index: 0, Conditions: []*models.Condition{yesNo("c1", models.Is, true, "", 0, "q1")}},
		}
		next, err := e.Next(q1, ruleSets, lookup(answer("q1", &models.YesNoAnswer{Yes: ptr(true)})))
		require.NoError(t, err)
		assert.Equal(t, "q4", next)
	})
}
