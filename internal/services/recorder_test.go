package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paulexconde/surveyrun/internal/models"
	"github.com/paulexconde/surveyrun/pkg/fault"
)

func answer(values ...string) map[string][]string {
	return map[string][]string{AnswerField: values}
}

// question adds one question to a fresh survey and opens a preview submission.
func (e *env) question(t *testing.T, qt models.QuestionType, required bool, params models.Parameters, choices ...string) (*models.Question, *models.Submission) {
	t.Helper()
	ctx := context.Background()
	s := e.survey(t)

	var in []ChoiceInput
	for _, c := range choices {
		in = append(in, ChoiceInput{Label: c})
	}
	q, err := e.surveys.AddQuestion(ctx, s.ID, qt, QuestionInput{Text: qt.Name(), Required: required}, params, in)
	require.NoError(t, err)

	sub, _, err := e.responses.Start(ctx, s.ID, true, nil)
	require.NoError(t, err)
	return q, sub
}

func (e *env) choiceIDs(t *testing.T, q *models.Question) []string {
	t.Helper()
	choices, err := e.surveys.Choices(context.Background(), q.ID)
	require.NoError(t, err)
	ids := make([]string, 0, len(choices))
	for _, c := range choices {
		ids = append(ids, c.ID)
	}
	return ids
}

func (e *env) answerCount(t *testing.T, sub *models.Submission) int {
	t.Helper()
	list, err := e.repo.ListAnswers(context.Background(), sub.ID)
	require.NoError(t, err)
	return len(list)
}

func TestEveryAnswerableTypeHasAStrategy(t *testing.T) {
	r := NewAnswerRecorder(nil).(*answerRecorderImpl)
	for _, qt := range models.AllQuestionTypes {
		_, ok := r.strategies[qt]
		assert.Equal(t, qt.Answerable(), ok, "question type %s", qt.Name())
	}
}

func TestRecordDisplay(t *testing.T) {
	tests := []struct {
		name     string
		qt       models.QuestionType
		params   models.Parameters
		raw      []string
		expected string
	}{
		{"phone", models.PhoneNumber, nil, []string{"+1 555 0100"}, "+1 555 0100"},
		{"email", models.Email, nil, []string{"a@b.c"}, "a@b.c"},
		{"short text", models.ShortText, nil, []string{"hello"}, "hello"},
		{"short text at limit", models.ShortText, &models.ShortTextParameters{TextLimit: models.TextLimit{LimitCharacter: true, Limit: 5}}, []string{"héllo"}, "héllo"},
		{"long text", models.LongText, nil, []string{"a b c"}, "a b c"},
		{"website", models.Website, nil, []string{"https://example.com/x"}, "https://example.com/x"},
		{"yes", models.YesNo, nil, []string{"Yes"}, "Yes"},
		{"no", models.YesNo, nil, []string{"No"}, "No"},
		{"accept", models.Legal, nil, []string{"accept"}, "Accept"},
		{"no accept", models.Legal, nil, []string{"no_accept"}, "Do not accept"},
		{"opinion lowest", models.OpinionScale, nil, []string{"1"}, "1"},
		{"opinion highest", models.OpinionScale, nil, []string{"11"}, "11"},
		{"opinion from zero", models.OpinionScale, &models.OpinionScaleParameters{NumberOfSteps: 11}, []string{"0"}, "0"},
		{"rating zero", models.Rating, nil, []string{"0"}, "0"},
		{"rating max", models.Rating, nil, []string{"5"}, "5"},
		{"rating script digit", models.Rating, nil, []string{"٣"}, "3"},
		{"number", models.Number, nil, []string{"-12.5"}, "-12.5"},
		{"number rounded", models.Number, nil, []string{"1.23456"}, "1.235"},
		{"number fraction", models.Number, nil, []string{"½"}, "0.5"},
		{"number arabic-indic digits", models.Number, nil, []string{"١٢"}, "12"},
		{"number devanagari digits", models.Number, nil, []string{"४२"}, "42"},
		{"number script decimal", models.Number, nil, []string{"-٣.٥"}, "-3.5"},
		{"opinion script digits", models.OpinionScale, nil, []string{"١٠"}, "10"},
		{"rating script digits", models.Rating, nil, []string{"٠٤"}, "4"},
		{"date", models.Date, nil, []string{"2024-02-29"}, "2024-02-29"},
		{"date month first", models.Date, nil, []string{"03/04/2024"}, "2024-03-04"},
		{"date day first", models.Date, &models.DateParameters{DateFormat: models.DDMMYYYY, DateSeparator: "/"}, []string{"03/04/2024"}, "2024-04-03"},
		{"optional empty", models.ShortText, nil, []string{"   "}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			q, sub := e.question(t, tt.qt, false, tt.params)

			a, err := e.recorder.RecordAnswer(context.Background(), q, sub, answer(tt.raw...), nil)
			require.NoError(t, err)
			require.NotNil(t, a)
			assert.Equal(t, tt.qt, a.Type)
			assert.Equal(t, tt.expected, a.Display())
		})
	}
}

func TestRecordRejects(t *testing.T) {
	tests := []struct {
		name     string
		qt       models.QuestionType
		required bool
		params   models.Parameters
		raw      []string
		expected fault.Kind
	}{
		{"required text absent", models.ShortText, true, nil, nil, fault.KindMissingRequiredAnswer},
		{"required text blank", models.LongText, true, nil, []string{" \t"}, fault.KindMissingRequiredAnswer},
		{"text over limit", models.ShortText, false, &models.ShortTextParameters{TextLimit: models.TextLimit{LimitCharacter: true, Limit: 3}}, []string{"four"}, fault.KindOutOfRangeAnswer},
		{"required phone", models.PhoneNumber, true, nil, []string{""}, fault.KindMissingRequiredAnswer},
		{"required email", models.Email, true, nil, nil, fault.KindMissingRequiredAnswer},
		{"website without host", models.Website, false, nil, []string{"example.com"}, fault.KindOutOfRangeAnswer},
		{"website garbage", models.Website, false, nil, []string{"http://[::1"}, fault.KindOutOfRangeAnswer},
		{"required website", models.Website, true, nil, nil, fault.KindMissingRequiredAnswer},
		{"yes lowercase", models.YesNo, false, nil, []string{"yes"}, fault.KindOutOfRangeAnswer},
		{"required yes no", models.YesNo, true, nil, nil, fault.KindMissingRequiredAnswer},
		{"legal other", models.Legal, false, nil, []string{"maybe"}, fault.KindOutOfRangeAnswer},
		{"required legal", models.Legal, true, nil, nil, fault.KindMissingRequiredAnswer},
		{"opinion below", models.OpinionScale, false, nil, []string{"0"}, fault.KindOutOfRangeAnswer},
		{"opinion above", models.OpinionScale, false, nil, []string{"12"}, fault.KindOutOfRangeAnswer},
		{"opinion from zero above", models.OpinionScale, false, &models.OpinionScaleParameters{NumberOfSteps: 11}, []string{"11"}, fault.KindOutOfRangeAnswer},
		{"opinion fraction", models.OpinionScale, false, nil, []string{"2.5"}, fault.KindOutOfRangeAnswer},
		{"opinion not a number", models.OpinionScale, false, nil, []string{"lots"}, fault.KindOutOfRangeAnswer},
		{"required opinion", models.OpinionScale, true, nil, nil, fault.KindMissingRequiredAnswer},
		{"rating negative", models.Rating, false, nil, []string{"-1"}, fault.KindOutOfRangeAnswer},
		{"rating above", models.Rating, false, nil, []string{"6"}, fault.KindOutOfRangeAnswer},
		{"required rating", models.Rating, true, nil, nil, fault.KindMissingRequiredAnswer},
		{"number garbage", models.Number, false, nil, []string{"12abc"}, fault.KindOutOfRangeAnswer},
		{"number two characters", models.Number, false, nil, []string{"三四"}, fault.KindOutOfRangeAnswer},
		{"number too long", models.Number, false, nil, []string{"1000000000"}, fault.KindOutOfRangeAnswer},
		{"required number", models.Number, true, nil, nil, fault.KindMissingRequiredAnswer},
		{"date garbage", models.Date, false, nil, []string{"the day after"}, fault.KindOutOfRangeAnswer},
		{"required date", models.Date, true, nil, nil, fault.KindMissingRequiredAnswer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			q, sub := e.question(t, tt.qt, tt.required, tt.params)

			a, err := e.recorder.RecordAnswer(context.Background(), q, sub, answer(tt.raw...), nil)
			assert.Nil(t, a)
			assert.Equal(t, tt.expected, fault.KindOf(err), "error: %v", err)
			assert.True(t, fault.IsClientError(err))
			assert.Zero(t, e.answerCount(t, sub))
		})
	}
}

func TestRecordNothingForScreens(t *testing.T) {
	for _, qt := range []models.QuestionType{models.WelcomeScreen, models.ThankYouScreen, models.Statement, models.Payment} {
		t.Run(qt.Name(), func(t *testing.T) {
			e := newEnv(t)
			q, sub := e.question(t, qt, false, nil)

			a, err := e.recorder.RecordAnswer(context.Background(), q, sub, answer("anything"), nil)
			assert.NoError(t, err)
			assert.Nil(t, a)
			assert.Zero(t, e.answerCount(t, sub))
		})
	}
}

func TestRecordNumberWithinBounds(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	params := &models.NumberParameters{
		EnableMin: true, MinValue: decimal.NewNullDecimal(decimal.NewFromInt(4)),
		EnableMax: true, MaxValue: decimal.NewNullDecimal(decimal.NewFromInt(10)),
	}
	q, sub := e.question(t, models.Number, true, params)

	a, err := e.recorder.RecordAnswer(ctx, q, sub, answer("7"), nil)
	require.NoError(t, err)
	stored := a.Value.(*models.NumberAnswer)
	assert.True(t, stored.Number.Decimal.Equal(decimal.NewFromInt(7)))

	for _, raw := range []string{"11", "0", "3.999"} {
		_, err = e.recorder.RecordAnswer(ctx, q, sub, answer(raw), nil)
		assert.ErrorIs(t, err, fault.ErrOutOfRangeAnswer, raw)

		prev, err := e.repo.GetAnswer(ctx, q.ID, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, "7", prev.Display())
	}

	// CJK numeral four
	a, err = e.recorder.RecordAnswer(ctx, q, sub, answer("四"), nil)
	require.NoError(t, err)
	assert.Equal(t, "4", a.Display())
	assert.Equal(t, 1, e.answerCount(t, sub))
}

func TestRecordMultipleChoice(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown choice without other", func(t *testing.T) {
		e := newEnv(t)
		q, sub := e.question(t, models.MultipleChoice, false, nil, "Vanilla", "Chocolate", "Strawberry")

		_, err := e.recorder.RecordAnswer(ctx, q, sub, answer("not-a-choice"), nil)
		assert.ErrorIs(t, err, fault.ErrOutOfRangeAnswer)
		assert.Zero(t, e.answerCount(t, sub))
	})

	t.Run("single selection", func(t *testing.T) {
		e := newEnv(t)
		q, sub := e.question(t, models.MultipleChoice, true, nil, "Vanilla", "Chocolate")
		ids := e.choiceIDs(t, q)

		_, err := e.recorder.RecordAnswer(ctx, q, sub, answer(ids...), nil)
		assert.ErrorIs(t, err, fault.ErrOutOfRangeAnswer)

		_, err = e.recorder.RecordAnswer(ctx, q, sub, answer("", " "), nil)
		assert.ErrorIs(t, err, fault.ErrMissingRequiredAnswer)

		a, err := e.recorder.RecordAnswer(ctx, q, sub, answer(ids[1]), nil)
		require.NoError(t, err)
		assert.Equal(t, "Chocolate", a.Display())
	})

	t.Run("selection is replaced", func(t *testing.T) {
		e := newEnv(t)
		params := &models.MultipleChoiceParameters{MultipleAnswer: models.MultipleAnswer{MultipleSelection: true}}
		q, sub := e.question(t, models.MultipleChoice, false, params, "Vanilla", "Chocolate", "Strawberry")
		ids := e.choiceIDs(t, q)

		_, err := e.recorder.RecordAnswer(ctx, q, sub, answer(ids[0], ids[1]), nil)
		require.NoError(t, err)
		a, err := e.recorder.RecordAnswer(ctx, q, sub, answer(ids[2]), nil)
		require.NoError(t, err)

		sel := a.Value.(*models.MultipleChoiceAnswer).Selection
		assert.Equal(t, []string{ids[2]}, sel.ChoiceIDs)
		assert.Equal(t, "Strawberry", a.Display())
	})

	t.Run("other value kept apart", func(t *testing.T) {
		e := newEnv(t)
		params := &models.PictureChoiceParameters{MultipleAnswer: models.MultipleAnswer{MultipleSelection: true, OtherOption: true}}
		q, sub := e.question(t, models.PictureChoice, false, params, "Cat", "Dog")
		ids := e.choiceIDs(t, q)

		a, err := e.recorder.RecordAnswer(ctx, q, sub, answer(ids[1], "Ferret", "Parrot"), nil)
		require.NoError(t, err)

		sel := a.Value.(*models.PictureChoiceAnswer).Selection
		assert.Equal(t, []string{ids[1]}, sel.ChoiceIDs)
		assert.Equal(t, "Parrot", sel.Other)
		assert.Equal(t, "Dog, Parrot", a.Display())
	})

	t.Run("choice of another question", func(t *testing.T) {
		e := newEnv(t)
		q, sub := e.question(t, models.MultipleChoice, false, nil, "Vanilla")
		other, _ := e.question(t, models.MultipleChoice, false, nil, "Mint")

		_, err := e.recorder.RecordAnswer(ctx, q, sub, answer(e.choiceIDs(t, other)...), nil)
		assert.ErrorIs(t, err, fault.ErrOutOfRangeAnswer)
	})
}

func TestRecordDropdown(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	q, sub := e.question(t, models.Dropdown, false, nil, "Small", "Large")
	ids := e.choiceIDs(t, q)
	other, _ := e.question(t, models.Dropdown, false, nil, "Huge")

	_, err := e.recorder.RecordAnswer(ctx, q, sub, answer(ids...), nil)
	assert.ErrorIs(t, err, fault.ErrOutOfRangeAnswer)
	_, err = e.recorder.RecordAnswer(ctx, q, sub, answer("Medium"), nil)
	assert.ErrorIs(t, err, fault.ErrOutOfRangeAnswer)
	_, err = e.recorder.RecordAnswer(ctx, q, sub, answer(e.choiceIDs(t, other)...), nil)
	assert.ErrorIs(t, err, fault.ErrOutOfRangeAnswer)

	a, err := e.recorder.RecordAnswer(ctx, q, sub, answer(ids[1]), nil)
	require.NoError(t, err)
	assert.Equal(t, "Large", a.Display())
}

func TestRecordFileUpload(t *testing.T) {
	ctx := context.Background()
	files := func(u ...Upload) map[string][]Upload { return map[string][]Upload{AnswerField: u} }

	e := newEnv(t)
	q, sub := e.question(t, models.FileUpload, true, nil)

	_, err := e.recorder.RecordAnswer(ctx, q, sub, nil, nil)
	assert.ErrorIs(t, err, fault.ErrMissingRequiredAnswer)

	rejected := []Upload{
		{Name: "", Content: []byte("x")},
		{Name: "empty.txt"},
		{Name: "big.bin", Content: make([]byte, 17)},
	}
	for _, u := range rejected {
		_, err = e.recorder.RecordAnswer(ctx, q, sub, nil, files(u))
		assert.ErrorIs(t, err, fault.ErrOutOfRangeAnswer, u.Name)
	}
	assert.Zero(t, e.answerCount(t, sub))

	a, err := e.recorder.RecordAnswer(ctx, q, sub, nil, files(Upload{Name: "cv.txt", ContentType: "text/plain", Content: []byte("abc")}))
	require.NoError(t, err)
	f := a.Value.(*models.FileUploadAnswer).File
	require.NotNil(t, f)
	assert.Equal(t, "cv.txt", f.Name)
	assert.Equal(t, int64(3), f.Size)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", f.SHA256)
}

func TestRecordIsAnUpsert(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	q, sub := e.question(t, models.ShortText, true, nil)

	first, err := e.recorder.RecordAnswer(ctx, q, sub, answer("one"), nil)
	require.NoError(t, err)
	second, err := e.recorder.RecordAnswer(ctx, q, sub, answer("one"), nil)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Value, second.Value)

	third, err := e.recorder.RecordAnswer(ctx, q, sub, answer("three"), nil)
	require.NoError(t, err)
	assert.Equal(t, first.ID, third.ID)
	assert.Equal(t, "three", third.Display())

	_, err = e.recorder.RecordAnswer(ctx, q, sub, answer(""), nil)
	assert.ErrorIs(t, err, fault.ErrMissingRequiredAnswer)

	stored, err := e.repo.GetAnswer(ctx, q.ID, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "three", stored.Display())
	assert.Equal(t, 1, e.answerCount(t, sub))
}

func TestRecordRefusesQuestionOfAnotherSurvey(t *testing.T) {
	e := newEnv(t)
	q, _ := e.question(t, models.ShortText, false, nil)
	_, sub := e.question(t, models.ShortText, false, nil)

	_, err := e.recorder.RecordAnswer(context.Background(), q, sub, answer("x"), nil)
	assert.ErrorIs(t, err, fault.ErrNotFound)
}

func TestRecordDateIsCalendarDay(t *testing.T) {
	e := newEnv(t)
	q, sub := e.question(t, models.Date, false, nil)

	a, err := e.recorder.RecordAnswer(context.Background(), q, sub, answer("2024-05-06T23:30:00Z"), nil)
	require.NoError(t, err)
	d := a.Value.(*models.DateAnswer).Date
	require.NotNil(t, d)
	assert.Equal(t, time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC), *d)
}
