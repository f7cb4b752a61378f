package logic

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/paulexconde/surveyrun/internal/models"
)

// state tells apart an answer variant without the accessor from one whose
// stored value is null.
type state int

const (
	noAccessor state = iota
	null
	present
)

// The normalized accessors of an answer.

func textOf(v models.AnswerValue) (string, state) {
	var s *string
	switch a := v.(type) {
	case *models.PhoneNumberAnswer:
		s = a.PhoneNumber
	case *models.ShortTextAnswer:
		s = a.ShortText
	case *models.LongTextAnswer:
		s = a.LongText
	case *models.EmailAnswer:
		s = a.Email
	case *models.WebsiteAnswer:
		s = a.URL
	case *models.DropdownAnswer:
		if len(a.Labels) == 0 {
			return "", null
		}
		return a.Display(), present
	default:
		return "", noAccessor
	}
	if s == nil {
		return "", null
	}
	return *s, present
}

func numberOf(v models.AnswerValue) (decimal.Decimal, state) {
	var i *int
	switch a := v.(type) {
	case *models.NumberAnswer:
		if !a.Number.Valid {
			return decimal.Zero, null
		}
		return a.Number.Decimal, present
	case *models.OpinionScaleAnswer:
		i = a.Opinion
	case *models.RatingAnswer:
		i = a.Rating
	default:
		return decimal.Zero, noAccessor
	}
	if i == nil {
		return decimal.Zero, null
	}
	return decimal.NewFromInt(int64(*i)), present
}

func booleanOf(v models.AnswerValue) (bool, state) {
	var b *bool
	switch a := v.(type) {
	case *models.YesNoAnswer:
		b = a.Yes
	case *models.LegalAnswer:
		b = a.Accept
	case *models.FileUploadAnswer:
		return a.File != nil, present
	default:
		return false, noAccessor
	}
	if b == nil {
		return false, null
	}
	return *b, present
}

// choicesOf never includes the free-text other value. An empty selection is
// still a value.
func choicesOf(v models.AnswerValue) ([]string, state) {
	switch a := v.(type) {
	case *models.MultipleChoiceAnswer:
		return a.ChoiceIDs, present
	case *models.PictureChoiceAnswer:
		return a.ChoiceIDs, present
	case *models.DropdownAnswer:
		return a.ChoiceIDs, present
	}
	return nil, noAccessor
}

func dateOf(v models.AnswerValue) (time.Time, state) {
	a, ok := v.(*models.DateAnswer)
	if !ok {
		return time.Time{}, noAccessor
	}
	if a.Date == nil {
		return time.Time{}, null
	}
	return CalendarDate(*a.Date), present
}

// nullResult is the outcome of p against a null value. A null equals no
// pattern and differs from every pattern; the other matches have no outcome.
func nullResult(p models.Predicate) (result, ok bool) {
	switch p := p.(type) {
	case models.TextPredicate:
		switch p.Op {
		case models.TextEqual:
			return false, true
		case models.TextNotEqual:
			return true, true
		}
	case models.NumberPredicate:
		switch p.Op {
		case models.NumberEqual:
			return false, true
		case models.NumberNotEqual:
			return true, true
		}
	case models.BooleanPredicate:
		switch p.Op {
		case models.Is:
			return false, true
		case models.IsNot:
			return true, true
		}
	case models.DatePredicate:
		switch p.Op {
		case models.DateIsOn:
			return false, true
		case models.DateIsNotOn:
			return true, true
		}
	}
	return false, false
}

// CalendarDate drops the clock part of t, keeping its calendar day in UTC.
func CalendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
