package models

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Parameters is the type-specific configuration owned by a Question. There is
// exactly one concrete variant per QuestionType.
type Parameters interface {
	QuestionType() QuestionType
}

type WelcomeParameters struct {
	ButtonLabel string `json:"button_label"`
}

type ThankYouParameters struct {
	ShowButton      bool   `json:"show_button"`
	ButtonLabel     string `json:"button_label"`
	ButtonLink      string `json:"button_link,omitempty"`
	ShowSocialMedia bool   `json:"show_social_media"`
}

// MultipleAnswer is shared by the selection types that accept several values
// or a free-text "other" value.
type MultipleAnswer struct {
	MultipleSelection bool `json:"multiple_selection"`
	Randomize         bool `json:"randomize"`
	OtherOption       bool `json:"other_option"`
}

type MultipleChoiceParameters struct {
	MultipleAnswer
	VerticalAlignment bool `json:"vertical_alignment"`
}

type PhoneNumberParameters struct {
	DefaultCountryCode string `json:"default_country_code"`
}

type TextLimit struct {
	LimitCharacter bool `json:"limit_character"`
	Limit          int  `json:"limit,omitempty"`
}

type ShortTextParameters struct {
	TextLimit
}

type LongTextParameters struct {
	TextLimit
}

type StatementParameters struct {
	ButtonLabel       string `json:"button_label"`
	ShowQuotationMark bool   `json:"show_quotation_mark"`
}

type PictureChoiceParameters struct {
	MultipleAnswer
	ShowLabels bool `json:"show_labels"`
	Supersize  bool `json:"supersize"`
}

type YesNoParameters struct{}

type EmailParameters struct{}

type OpinionScaleParameters struct {
	StartAtOne    bool   `json:"start_at_one"`
	NumberOfSteps int    `json:"number_of_steps"`
	ShowLabels    bool   `json:"show_labels"`
	LeftLabel     string `json:"left_label,omitempty"`
	CenterLabel   string `json:"center_label,omitempty"`
	RightLabel    string `json:"right_label,omitempty"`
}

// Bounds returns the half-open range [lo, hi) of accepted levels.
func (p *OpinionScaleParameters) Bounds() (lo, hi int) {
	if p.StartAtOne {
		return 1, p.NumberOfSteps + 1
	}
	return 0, p.NumberOfSteps
}

type Shape string

const (
	Stars        Shape = "ST"
	Hearts       Shape = "HE"
	Users        Shape = "US"
	Thumbs       Shape = "TU"
	Crowns       Shape = "CR"
	Cats         Shape = "CA"
	Dogs         Shape = "DO"
	Circles      Shape = "CI"
	Flags        Shape = "FL"
	Droplets     Shape = "DR"
	Ticks        Shape = "TI"
	Lightbulbs   Shape = "LI"
	Trophies     Shape = "TR"
	Clouds       Shape = "CL"
	Thunderbolts Shape = "TH"
	Pencils      Shape = "PE"
	Skulls       Shape = "SK"
)

// RatingShapes maps each shape code to its display name.
var RatingShapes = map[Shape]string{
	Stars: "Stars", Hearts: "Hearts", Users: "Users", Thumbs: "Thumbs",
	Crowns: "Crowns", Cats: "Cats", Dogs: "Dogs", Circles: "Circles",
	Flags: "Flags", Droplets: "Droplets", Ticks: "Ticks", Lightbulbs: "Lightbulbs",
	Trophies: "Trophies", Clouds: "Clouds", Thunderbolts: "Thunderbolts",
	Pencils: "Pencils", Skulls: "Skulls",
}

type RatingParameters struct {
	NumberOfSteps int   `json:"number_of_steps"`
	Shape         Shape `json:"shape"`
}

type DateFormat string

const (
	YYYYMMDD DateFormat = "A"
	DDMMYYYY DateFormat = "B"
	MMDDYYYY DateFormat = "C"
)

type DateParameters struct {
	DateFormat    DateFormat `json:"date_format"`
	DateSeparator string     `json:"date_separator"`
}

// Format renders the input mask shown to respondents, e.g. "YYYY/MM/DD".
func (p *DateParameters) Format() string {
	s := p.DateSeparator
	switch p.DateFormat {
	case DDMMYYYY:
		return "DD" + s + "MM" + s + "YYYY"
	case MMDDYYYY:
		return "MM" + s + "DD" + s + "YYYY"
	default:
		return "YYYY" + s + "MM" + s + "DD"
	}
}

type NumberParameters struct {
	EnableMin bool                `json:"enable_min"`
	MinValue  decimal.NullDecimal `json:"min_value"`
	EnableMax bool                `json:"enable_max"`
	MaxValue  decimal.NullDecimal `json:"max_value"`
}

type DropdownParameters struct {
	Randomize    bool `json:"randomize"`
	Alphabetical bool `json:"alphabetical"`
}

type LegalParameters struct{}

type FileUploadParameters struct{}

type PaymentParameters struct {
	Currency    string          `json:"currency"`
	Price       decimal.Decimal `json:"price"`
	StripeToken string          `json:"stripe_token,omitempty"`
	ButtonLabel string          `json:"button_label"`
}

type WebsiteParameters struct{}

func (*WelcomeParameters) QuestionType() QuestionType        { return WelcomeScreen }
func (*ThankYouParameters) QuestionType() QuestionType       { return ThankYouScreen }
func (*MultipleChoiceParameters) QuestionType() QuestionType { return MultipleChoice }
func (*PhoneNumberParameters) QuestionType() QuestionType    { return PhoneNumber }
func (*ShortTextParameters) QuestionType() QuestionType      { return ShortText }
func (*LongTextParameters) QuestionType() QuestionType       { return LongText }
func (*StatementParameters) QuestionType() QuestionType      { return Statement }
func (*PictureChoiceParameters) QuestionType() QuestionType  { return PictureChoice }
func (*YesNoParameters) QuestionType() QuestionType          { return YesNo }
func (*EmailParameters) QuestionType() QuestionType          { return Email }
func (*OpinionScaleParameters) QuestionType() QuestionType   { return OpinionScale }
func (*RatingParameters) QuestionType() QuestionType         { return Rating }
func (*DateParameters) QuestionType() QuestionType           { return Date }
func (*NumberParameters) QuestionType() QuestionType         { return Number }
func (*DropdownParameters) QuestionType() QuestionType       { return Dropdown }
func (*LegalParameters) QuestionType() QuestionType          { return Legal }
func (*FileUploadParameters) QuestionType() QuestionType     { return FileUpload }
func (*PaymentParameters) QuestionType() QuestionType        { return Payment }
func (*WebsiteParameters) QuestionType() QuestionType        { return Website }

// DefaultParameters returns the parameters a builder gets when it does not
// configure a question explicitly.
func DefaultParameters(t QuestionType) (Parameters, error) {
	switch t {
	case WelcomeScreen:
		return &WelcomeParameters{ButtonLabel: "Start"}, nil
	case ThankYouScreen:
		return &ThankYouParameters{ShowButton: true, ButtonLabel: "Done", ShowSocialMedia: true}, nil
	case MultipleChoice:
		return &MultipleChoiceParameters{}, nil
	case PhoneNumber:
		return &PhoneNumberParameters{DefaultCountryCode: "1"}, nil
	case ShortText:
		return &ShortTextParameters{}, nil
	case LongText:
		return &LongTextParameters{}, nil
	case Statement:
		return &StatementParameters{ButtonLabel: "Next", ShowQuotationMark: true}, nil
	case PictureChoice:
		return &PictureChoiceParameters{}, nil
	case YesNo:
		return &YesNoParameters{}, nil
	case Email:
		return &EmailParameters{}, nil
	case OpinionScale:
		return &OpinionScaleParameters{StartAtOne: true, NumberOfSteps: 11}, nil
	case Rating:
		return &RatingParameters{NumberOfSteps: 5, Shape: Stars}, nil
	case Date:
		return &DateParameters{DateFormat: YYYYMMDD, DateSeparator: "/"}, nil
	case Number:
		return &NumberParameters{}, nil
	case Dropdown:
		return &DropdownParameters{}, nil
	case Legal:
		return &LegalParameters{}, nil
	case FileUpload:
		return &FileUploadParameters{}, nil
	case Payment:
		return &PaymentParameters{Currency: "USD", ButtonLabel: "Pay"}, nil
	case Website:
		return &WebsiteParameters{}, nil
	}
	return nil, fmt.Errorf("unknown question type %q", t)
}

// DecodeParameters decodes the JSON payload stored for a question of type t.
func DecodeParameters(t QuestionType, data []byte) (Parameters, error) {
	p, err := DefaultParameters(t)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("decode %s parameters: %w", t.Name(), err)
	}
	return p, nil
}

// EncodeParameters is the inverse of DecodeParameters.
func EncodeParameters(p Parameters) ([]byte, error) {
	return json.Marshal(p)
}
