package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Answer is the typed response to one question within one submission. At most
// one Answer exists per (QuestionID, SubmissionID).
type Answer struct {
	ID           string       `json:"id"`
	QuestionID   string       `json:"question_id"`
	SubmissionID string       `json:"submission_id"`
	Type         QuestionType `json:"question_type"`
	Value        AnswerValue  `json:"value"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Display renders the stored value for listings.
func (a *Answer) Display() string {
	if a.Value == nil {
		return ""
	}
	return a.Value.Display()
}

// AnswerValue is the variant payload of an Answer, one per answerable
// question type.
type AnswerValue interface {
	QuestionType() QuestionType
	Display() string
}

// Selection is the payload shared by choice-bearing answers. Other holds the
// free-text value and never takes part in ChoiceIDs.
type Selection struct {
	ChoiceIDs []string `json:"choice_ids"`
	Other     string   `json:"other,omitempty"`
	// Labels mirrors ChoiceIDs with the choice labels at recording time.
	Labels []string `json:"labels,omitempty"`
}

func (s Selection) display() string {
	parts := append([]string{}, s.Labels...)
	if s.Other != "" {
		parts = append(parts, s.Other)
	}
	return strings.Join(parts, ", ")
}

// HasChoice reports whether the selection contains the given choice id.
func (s Selection) HasChoice(id string) bool {
	for _, c := range s.ChoiceIDs {
		if c == id {
			return true
		}
	}
	return false
}

type MultipleChoiceAnswer struct{ Selection }
type PictureChoiceAnswer struct{ Selection }
type DropdownAnswer struct{ Selection }

type PhoneNumberAnswer struct {
	PhoneNumber *string `json:"phone_number"`
}

type ShortTextAnswer struct {
	ShortText *string `json:"short_text"`
}

type LongTextAnswer struct {
	LongText *string `json:"long_text"`
}

type EmailAnswer struct {
	Email *string `json:"email"`
}

type WebsiteAnswer struct {
	URL *string `json:"url"`
}

type YesNoAnswer struct {
	Yes *bool `json:"yes"`
}

type LegalAnswer struct {
	Accept *bool `json:"accept"`
}

type OpinionScaleAnswer struct {
	Opinion *int `json:"opinion"`
}

type RatingAnswer struct {
	Rating *int `json:"rating"`
}

type NumberAnswer struct {
	Number decimal.NullDecimal `json:"number"`
}

type DateAnswer struct {
	Date *time.Time `json:"date"`
}

// StoredFile describes an uploaded file. The bytes themselves are handled by
// the delivery layer.
type StoredFile struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size"`
	SHA256      string `json:"sha256"`
}

type FileUploadAnswer struct {
	File *StoredFile `json:"file"`
}

type PaymentAnswer struct {
	Token *string `json:"token"`
}

func (*MultipleChoiceAnswer) QuestionType() QuestionType { return MultipleChoice }
func (*PictureChoiceAnswer) QuestionType() QuestionType  { return PictureChoice }
func (*DropdownAnswer) QuestionType() QuestionType       { return Dropdown }
func (*PhoneNumberAnswer) QuestionType() QuestionType    { return PhoneNumber }
func (*ShortTextAnswer) QuestionType() QuestionType      { return ShortText }
func (*LongTextAnswer) QuestionType() QuestionType       { return LongText }
func (*EmailAnswer) QuestionType() QuestionType          { return Email }
func (*WebsiteAnswer) QuestionType() QuestionType        { return Website }
func (*YesNoAnswer) QuestionType() QuestionType          { return YesNo }
func (*LegalAnswer) QuestionType() QuestionType          { return Legal }
func (*OpinionScaleAnswer) QuestionType() QuestionType   { return OpinionScale }
func (*RatingAnswer) QuestionType() QuestionType         { return Rating }
func (*NumberAnswer) QuestionType() QuestionType         { return Number }
func (*DateAnswer) QuestionType() QuestionType           { return Date }
func (*FileUploadAnswer) QuestionType() QuestionType     { return FileUpload }
func (*PaymentAnswer) QuestionType() QuestionType        { return Payment }

func (a *MultipleChoiceAnswer) Display() string { return a.display() }
func (a *PictureChoiceAnswer) Display() string  { return a.display() }
func (a *DropdownAnswer) Display() string       { return a.display() }
func (a *PhoneNumberAnswer) Display() string    { return deref(a.PhoneNumber) }
func (a *ShortTextAnswer) Display() string      { return deref(a.ShortText) }
func (a *LongTextAnswer) Display() string       { return deref(a.LongText) }
func (a *EmailAnswer) Display() string          { return deref(a.Email) }
func (a *WebsiteAnswer) Display() string        { return deref(a.URL) }
func (a *PaymentAnswer) Display() string        { return deref(a.Token) }
func (a *YesNoAnswer) Display() string          { return boolLabel(a.Yes, "Yes", "No") }
func (a *LegalAnswer) Display() string          { return boolLabel(a.Accept, "Accept", "Do not accept") }
func (a *OpinionScaleAnswer) Display() string   { return intLabel(a.Opinion) }
func (a *RatingAnswer) Display() string         { return intLabel(a.Rating) }

func (a *NumberAnswer) Display() string {
	if !a.Number.Valid {
		return ""
	}
	return a.Number.Decimal.String()
}

func (a *DateAnswer) Display() string {
	if a.Date == nil {
		return ""
	}
	return a.Date.Format(time.DateOnly)
}

func (a *FileUploadAnswer) Display() string {
	if a.File == nil {
		return ""
	}
	return a.File.Name
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func boolLabel(b *bool, yes, no string) string {
	switch {
	case b == nil:
		return ""
	case *b:
		return yes
	default:
		return no
	}
}

func intLabel(i *int) string {
	if i == nil {
		return ""
	}
	return strconv.Itoa(*i)
}

// NewAnswerValue returns an empty payload for the question type, or false for
// types that never record answers.
func NewAnswerValue(t QuestionType) (AnswerValue, bool) {
	switch t {
	case MultipleChoice:
		return &MultipleChoiceAnswer{}, true
	case PictureChoice:
		return &PictureChoiceAnswer{}, true
	case Dropdown:
		return &DropdownAnswer{}, true
	case PhoneNumber:
		return &PhoneNumberAnswer{}, true
	case ShortText:
		return &ShortTextAnswer{}, true
	case LongText:
		return &LongTextAnswer{}, true
	case Email:
		return &EmailAnswer{}, true
	case Website:
		return &WebsiteAnswer{}, true
	case YesNo:
		return &YesNoAnswer{}, true
	case Legal:
		return &LegalAnswer{}, true
	case OpinionScale:
		return &OpinionScaleAnswer{}, true
	case Rating:
		return &RatingAnswer{}, true
	case Number:
		return &NumberAnswer{}, true
	case Date:
		return &DateAnswer{}, true
	case FileUpload:
		return &FileUploadAnswer{}, true
	case Payment:
		return &PaymentAnswer{}, true
	}
	return nil, false
}

// DecodeAnswerValue decodes a stored JSON payload for a question of type t.
func DecodeAnswerValue(t QuestionType, data []byte) (AnswerValue, error) {
	v, ok := NewAnswerValue(t)
	if !ok {
		return nil, fmt.Errorf("question type %q has no answer", t)
	}
	if len(data) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return nil, fmt.Errorf("decode %s answer: %w", t.Name(), err)
	}
	return v, nil
}

func EncodeAnswerValue(v AnswerValue) ([]byte, error) {
	return json.Marshal(v)
}
