package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/araddon/dateparse"
	"github.com/shopspring/decimal"

	"github.com/paulexconde/surveyrun/internal/logic"
	"github.com/paulexconde/surveyrun/internal/models"
	"github.com/paulexconde/surveyrun/internal/pkg/keylock"
	"github.com/paulexconde/surveyrun/internal/pkg/numeric"
	"github.com/paulexconde/surveyrun/internal/repository"
	"github.com/paulexconde/surveyrun/pkg/fault"
)

// AnswerField is the form key answers and uploads arrive under.
const AnswerField = "answer"

// Upload is a file received with an answer.
type Upload struct {
	Name        string
	ContentType string
	Content     []byte
}

// Records answers to questions.
type AnswerRecorder interface {
	// RecordAnswer validates the raw input against the question and stores it
	// as the submission's only answer to that question. Types that record
	// nothing return (nil, nil). On a validation error nothing is written.
	RecordAnswer(ctx context.Context, q *models.Question, sub *models.Submission, raw map[string][]string, files map[string][]Upload) (*models.Answer, error)
}

// input is what a strategy gets to look at.
type input struct {
	q      *models.Question
	values []string
	files  []Upload
}

// first returns the first raw value, trimmed. Absent and blank are both "".
func (in input) first() string {
	if len(in.values) == 0 {
		return ""
	}
	return strings.TrimSpace(in.values[0])
}

// nonEmpty drops blank values.
func (in input) nonEmpty() []string {
	var out []string
	for _, v := range in.values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func (in input) missing() error {
	return fault.Missing(fmt.Sprintf("question %s requires an answer", in.q.ID))
}

// strategy turns raw input into an answer value, or a validation error.
type strategy func(ctx context.Context, in input) (models.AnswerValue, error)

type answerRecorderImpl struct {
	repo       repository.Repository
	locks      *keylock.Locker
	logger     *slog.Logger
	clock      Clock
	newID      func() string
	maxUpload  int64
	strategies map[models.QuestionType]strategy
}

func NewAnswerRecorder(repo repository.Repository, opts ...Option) AnswerRecorder {
	cfg := newConfig(opts)
	r := &answerRecorderImpl{
		repo:      repo,
		locks:     keylock.New(),
		logger:    cfg.logger,
		clock:     cfg.clock,
		newID:     cfg.newID,
		maxUpload: cfg.maxUpload,
	}
	r.strategies = map[models.QuestionType]strategy{
		models.MultipleChoice: r.selection(func(s models.Selection) models.AnswerValue { return &models.MultipleChoiceAnswer{Selection: s} }),
		models.PictureChoice:  r.selection(func(s models.Selection) models.AnswerValue { return &models.PictureChoiceAnswer{Selection: s} }),
		models.Dropdown:       r.dropdown,
		models.PhoneNumber:    text(func(v *string) models.AnswerValue { return &models.PhoneNumberAnswer{PhoneNumber: v} }),
		models.Email:          text(func(v *string) models.AnswerValue { return &models.EmailAnswer{Email: v} }),
		models.ShortText:      text(func(v *string) models.AnswerValue { return &models.ShortTextAnswer{ShortText: v} }),
		models.LongText:       text(func(v *string) models.AnswerValue { return &models.LongTextAnswer{LongText: v} }),
		models.Website:        website,
		models.YesNo:          choice("Yes", "No", func(v *bool) models.AnswerValue { return &models.YesNoAnswer{Yes: v} }),
		models.Legal:          choice("accept", "no_accept", func(v *bool) models.AnswerValue { return &models.LegalAnswer{Accept: v} }),
		models.OpinionScale:   opinionScale,
		models.Rating:         rating,
		models.Number:         number,
		models.Date:           date,
		models.FileUpload:     r.fileUpload,
	}
	return r
}

func (r *answerRecorderImpl) RecordAnswer(ctx context.Context, q *models.Question, sub *models.Submission, raw map[string][]string, files map[string][]Upload) (*models.Answer, error) {
	if !q.Type.Answerable() {
		return nil, nil
	}
	if q.SurveyID != sub.SurveyID {
		return nil, foreign("question", q.ID, sub.SurveyID)
	}
	strat, ok := r.strategies[q.Type]
	if !ok {
		return nil, fault.NewInternalError(fmt.Sprintf("no answer strategy for %s", q.Type.Name()), nil)
	}

	in := input{q: q, values: raw[AnswerField], files: files[AnswerField]}
	value, err := strat(ctx, in)
	if err != nil {
		if fault.IsValidation(err) {
			r.logger.InfoContext(ctx, "answer rejected", "question", q.ID, "submission", sub.ID, "reason", fault.KindOf(err), "error", err)
		}
		return nil, err
	}

	unlock := r.locks.Lock(q.ID + "/" + sub.ID)
	defer unlock()

	now := r.clock().UTC()
	a := &models.Answer{
		ID:           r.newID(),
		QuestionID:   q.ID,
		SubmissionID: sub.ID,
		Type:         q.Type,
		Value:        value,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := r.repo.SaveAnswer(ctx, a); err != nil {
		return nil, fmt.Errorf("save answer: %w", err)
	}

	stored, err := r.repo.GetAnswer(ctx, q.ID, sub.ID)
	if err != nil {
		return nil, err
	}
	r.logger.DebugContext(ctx, "answer recorded", "question", q.ID, "submission", sub.ID, "answer", stored.ID, "value", stored.Display())
	return stored, nil
}

func text(wrap func(*string) models.AnswerValue) strategy {
	return func(_ context.Context, in input) (models.AnswerValue, error) {
		v := in.first()
		if v == "" {
			if in.q.Required {
				return nil, in.missing()
			}
			return wrap(nil), nil
		}

		var limit models.TextLimit
		switch p := in.q.Parameters.(type) {
		case *models.ShortTextParameters:
			limit = p.TextLimit
		case *models.LongTextParameters:
			limit = p.TextLimit
		}
		if limit.LimitCharacter {
			if n := utf8.RuneCountInString(v); n > limit.Limit {
				return nil, fault.OutOfRange("%d characters exceed the limit of %d", n, limit.Limit)
			}
		}
		return wrap(&v), nil
	}
}

func website(_ context.Context, in input) (models.AnswerValue, error) {
	v := in.first()
	if v == "" {
		if in.q.Required {
			return nil, in.missing()
		}
		return &models.WebsiteAnswer{}, nil
	}

	u, err := url.Parse(v)
	if err != nil || u.Host == "" {
		return nil, fault.OutOfRange("%q is not a url", v)
	}
	return &models.WebsiteAnswer{URL: &v}, nil
}

// choice maps the two accepted literals of a boolean question.
func choice(yes, no string, wrap func(*bool) models.AnswerValue) strategy {
	return func(_ context.Context, in input) (models.AnswerValue, error) {
		var b bool
		switch v := in.first(); v {
		case yes:
			b = true
		case no:
			b = false
		case "":
			if in.q.Required {
				return nil, in.missing()
			}
			return wrap(nil), nil
		default:
			return nil, fault.OutOfRange("%q is neither %q nor %q", v, yes, no)
		}
		return wrap(&b), nil
	}
}

// parseNumber accepts a decimal literal, written with the digits of any script,
// or a single numeric character such as a CJK numeral.
func parseNumber(s string) (decimal.Decimal, error) {
	if d, err := decimal.NewFromString(s); err == nil {
		return d, nil
	}
	if ascii, ok := numeric.Digits(s); ok {
		if d, err := decimal.NewFromString(ascii); err == nil {
			return d, nil
		}
	}
	if d, ok := numeric.Parse(s); ok {
		return d, nil
	}
	return decimal.Zero, fault.OutOfRange("%q is not a number", s)
}

// level parses an integer answer for the scale types.
func level(s string) (int, error) {
	d, err := parseNumber(s)
	if err != nil {
		return 0, err
	}
	if !d.IsInteger() {
		return 0, fault.OutOfRange("%s is not a whole number", d)
	}
	if !d.Abs().LessThan(decimal.NewFromInt(1 << 31)) {
		return 0, fault.OutOfRange("%s is out of range", d)
	}
	return int(d.IntPart()), nil
}

func opinionScale(_ context.Context, in input) (models.AnswerValue, error) {
	v := in.first()
	if v == "" {
		if in.q.Required {
			return nil, in.missing()
		}
		return &models.OpinionScaleAnswer{}, nil
	}

	n, err := level(v)
	if err != nil {
		return nil, err
	}
	p, ok := in.q.Parameters.(*models.OpinionScaleParameters)
	if !ok {
		return nil, fmt.Errorf("question %s: unexpected parameters %T", in.q.ID, in.q.Parameters)
	}
	lo, hi := p.Bounds()
	if n < lo || n >= hi {
		return nil, fault.OutOfRange("%d is outside [%d, %d)", n, lo, hi)
	}
	return &models.OpinionScaleAnswer{Opinion: &n}, nil
}

func rating(_ context.Context, in input) (models.AnswerValue, error) {
	v := in.first()
	if v == "" {
		if in.q.Required {
			return nil, in.missing()
		}
		return &models.RatingAnswer{}, nil
	}

	n, err := level(v)
	if err != nil {
		return nil, err
	}
	p, ok := in.q.Parameters.(*models.RatingParameters)
	if !ok {
		return nil, fmt.Errorf("question %s: unexpected parameters %T", in.q.ID, in.q.Parameters)
	}
	if n < 0 || n > p.NumberOfSteps {
		return nil, fault.OutOfRange("%d is outside [0, %d]", n, p.NumberOfSteps)
	}
	return &models.RatingAnswer{Rating: &n}, nil
}

// Stored numbers keep 3 decimal places and 12 digits overall.
const (
	numberPlaces = 3
	numberDigits = 12
)

var numberCeiling = decimal.New(1, numberDigits-numberPlaces)

func number(_ context.Context, in input) (models.AnswerValue, error) {
	v := in.first()
	if v == "" {
		if in.q.Required {
			return nil, in.missing()
		}
		return &models.NumberAnswer{}, nil
	}

	d, err := parseNumber(v)
	if err != nil {
		return nil, err
	}
	d = d.Round(numberPlaces)
	if !d.Abs().LessThan(numberCeiling) {
		return nil, fault.OutOfRange("%s has too many digits", d)
	}

	p, ok := in.q.Parameters.(*models.NumberParameters)
	if !ok {
		return nil, fmt.Errorf("question %s: unexpected parameters %T", in.q.ID, in.q.Parameters)
	}
	if p.EnableMin && p.MinValue.Valid && d.LessThan(p.MinValue.Decimal) {
		return nil, fault.OutOfRange("%s is below the minimum %s", d, p.MinValue.Decimal)
	}
	if p.EnableMax && p.MaxValue.Valid && d.GreaterThan(p.MaxValue.Decimal) {
		return nil, fault.OutOfRange("%s is above the maximum %s", d, p.MaxValue.Decimal)
	}
	return &models.NumberAnswer{Number: decimal.NewNullDecimal(d)}, nil
}

func date(_ context.Context, in input) (models.AnswerValue, error) {
	v := in.first()
	if v == "" {
		if in.q.Required {
			return nil, in.missing()
		}
		return &models.DateAnswer{}, nil
	}

	monthFirst := true
	if p, ok := in.q.Parameters.(*models.DateParameters); ok && p.DateFormat == models.DDMMYYYY {
		monthFirst = false
	}
	t, err := dateparse.ParseAny(v, dateparse.PreferMonthFirst(monthFirst))
	if err != nil {
		return nil, fault.OutOfRange("%q is not a date", v)
	}
	day := logic.CalendarDate(t)
	return &models.DateAnswer{Date: &day}, nil
}

func (r *answerRecorderImpl) fileUpload(_ context.Context, in input) (models.AnswerValue, error) {
	if len(in.files) == 0 {
		if in.q.Required {
			return nil, in.missing()
		}
		return &models.FileUploadAnswer{}, nil
	}
	if len(in.files) > 1 {
		return nil, fault.OutOfRange("one file expected, got %d", len(in.files))
	}

	f := in.files[0]
	switch {
	case strings.TrimSpace(f.Name) == "":
		return nil, fault.OutOfRange("uploaded file has no name")
	case len(f.Content) == 0:
		return nil, fault.OutOfRange("uploaded file %q is empty", f.Name)
	case int64(len(f.Content)) > r.maxUpload:
		return nil, fault.OutOfRange("uploaded file %q is larger than %d bytes", f.Name, r.maxUpload)
	}

	sum := sha256.Sum256(f.Content)
	return &models.FileUploadAnswer{File: &models.StoredFile{
		Name:        f.Name,
		ContentType: f.ContentType,
		Size:        int64(len(f.Content)),
		SHA256:      hex.EncodeToString(sum[:]),
	}}, nil
}

// choices loads the question's choices keyed by id.
func (r *answerRecorderImpl) choices(ctx context.Context, questionID string) (map[string]*models.Choice, error) {
	list, err := r.repo.ListChoices(ctx, questionID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*models.Choice, len(list))
	for _, c := range list {
		byID[c.ID] = c
	}
	return byID, nil
}

// selection handles Multiple Choice and Picture Choice. A value that is not a
// choice of the question is the free-text "other" value when the question
// allows one; the last such value wins.
func (r *answerRecorderImpl) selection(wrap func(models.Selection) models.AnswerValue) strategy {
	return func(ctx context.Context, in input) (models.AnswerValue, error) {
		values := in.nonEmpty()
		if len(values) == 0 && in.q.Required {
			return nil, in.missing()
		}

		var opts models.MultipleAnswer
		switch p := in.q.Parameters.(type) {
		case *models.MultipleChoiceParameters:
			opts = p.MultipleAnswer
		case *models.PictureChoiceParameters:
			opts = p.MultipleAnswer
		default:
			return nil, fmt.Errorf("question %s: unexpected parameters %T", in.q.ID, in.q.Parameters)
		}
		if !opts.MultipleSelection && len(values) > 1 {
			return nil, fault.OutOfRange("one choice expected, got %d", len(values))
		}

		known, err := r.choices(ctx, in.q.ID)
		if err != nil {
			return nil, err
		}

		sel := models.Selection{ChoiceIDs: []string{}}
		for _, v := range values {
			if c, ok := known[v]; ok {
				if !sel.HasChoice(c.ID) {
					sel.ChoiceIDs = append(sel.ChoiceIDs, c.ID)
					sel.Labels = append(sel.Labels, c.Label)
				}
				continue
			}
			if !opts.OtherOption {
				return nil, fault.OutOfRange("%q is not a choice of question %s", v, in.q.ID)
			}
			sel.Other = v
		}
		return wrap(sel), nil
	}
}

func (r *answerRecorderImpl) dropdown(ctx context.Context, in input) (models.AnswerValue, error) {
	values := in.nonEmpty()
	switch {
	case len(values) == 0 && in.q.Required:
		return nil, in.missing()
	case len(values) > 1:
		return nil, fault.OutOfRange("one choice expected, got %d", len(values))
	}

	sel := models.Selection{ChoiceIDs: []string{}}
	if len(values) == 1 {
		c, err := r.repo.GetChoice(ctx, values[0])
		if errors.Is(err, fault.ErrNotFound) || (err == nil && c.QuestionID != in.q.ID) {
			return nil, fault.OutOfRange("%q is not a choice of question %s", values[0], in.q.ID)
		}
		if err != nil {
			return nil, err
		}
		sel.ChoiceIDs = append(sel.ChoiceIDs, c.ID)
		sel.Labels = append(sel.Labels, c.Label)
	}
	return &models.DropdownAnswer{Selection: sel}, nil
}
