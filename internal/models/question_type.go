package models

import "fmt"

// The type of question being asked.
//
// Values are the two-letter codes persisted with each question.
type QuestionType string

const (
	WelcomeScreen  QuestionType = "WS"
	ThankYouScreen QuestionType = "TS"
	MultipleChoice QuestionType = "MC"
	PhoneNumber    QuestionType = "PN"
	ShortText      QuestionType = "ST"
	LongText       QuestionType = "LT"
	Statement      QuestionType = "S_"
	PictureChoice  QuestionType = "PC"
	YesNo          QuestionType = "YN"
	Email          QuestionType = "E_"
	OpinionScale   QuestionType = "OS"
	Rating         QuestionType = "R_"
	Date           QuestionType = "D_"
	Number         QuestionType = "N_"
	Dropdown       QuestionType = "DD"
	Legal          QuestionType = "L_"
	FileUpload     QuestionType = "FU"
	Payment        QuestionType = "P_"
	Website        QuestionType = "W_"
)

// AllQuestionTypes lists every question type in builder order.
var AllQuestionTypes = []QuestionType{
	WelcomeScreen,
	MultipleChoice,
	PhoneNumber,
	ShortText,
	LongText,
	Statement,
	PictureChoice,
	YesNo,
	Email,
	OpinionScale,
	Rating,
	Date,
	Number,
	Dropdown,
	Legal,
	FileUpload,
	Payment,
	Website,
	ThankYouScreen,
}

var questionTypeNames = map[QuestionType]string{
	WelcomeScreen:  "Welcome Screen",
	MultipleChoice: "Multiple Choice",
	PhoneNumber:    "Phone Number",
	ShortText:      "Short Text",
	LongText:       "Long Text",
	Statement:      "Statement",
	PictureChoice:  "Picture Choice",
	YesNo:          "Yes/No",
	Email:          "Email",
	OpinionScale:   "Opinion Scale",
	Rating:         "Rating",
	Date:           "Date",
	Number:         "Number",
	Dropdown:       "Dropdown",
	Legal:          "Legal",
	FileUpload:     "File Upload",
	Payment:        "Payment",
	Website:        "Website",
	ThankYouScreen: "Thank You Screen",
}

// Name returns the display name, or "Unknown".
func (t QuestionType) Name() string {
	if n, ok := questionTypeNames[t]; ok {
		return n
	}
	return "Unknown"
}

func (t QuestionType) Valid() bool {
	_, ok := questionTypeNames[t]
	return ok
}

// ParseQuestionType accepts a two-letter code.
func ParseQuestionType(s string) (QuestionType, error) {
	t := QuestionType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown question type %q", s)
	}
	return t, nil
}

// Answerable reports whether answers are ever recorded for the type.
func (t QuestionType) Answerable() bool {
	switch t {
	case WelcomeScreen, ThankYouScreen, Statement, Payment:
		return false
	}
	return t.Valid()
}

// HasChoices reports whether questions of this type own Choice rows.
func (t QuestionType) HasChoices() bool {
	return t == MultipleChoice || t == PictureChoice || t == Dropdown
}

// ConditionKind returns the kind of condition that can test answers to a
// question of this type, or false when logic jumps cannot test it.
func (t QuestionType) ConditionKind() (ConditionKind, bool) {
	switch t {
	case YesNo, Legal, FileUpload:
		return BooleanCondition, true
	case MultipleChoice, PictureChoice:
		return ChoiceCondition, true
	case OpinionScale, Rating, Number:
		return NumberCondition, true
	case PhoneNumber, ShortText, LongText, Email, Website, Dropdown:
		return TextCondition, true
	case Date:
		return DateCondition, true
	}
	return "", false
}

// QuestionTypeInfo describes an entry of the builder catalogue.
type QuestionTypeInfo struct {
	Type     QuestionType `json:"type"`
	Name     string       `json:"name"`
	Disabled bool         `json:"disabled"`
}

// QuestionTypes returns the catalogue offered to builders. Payment is not
// offered.
func QuestionTypes() []QuestionTypeInfo {
	out := make([]QuestionTypeInfo, 0, len(AllQuestionTypes))
	for _, t := range AllQuestionTypes {
		if t == Payment {
			continue
		}
		out = append(out, QuestionTypeInfo{Type: t, Name: t.Name()})
	}
	return out
}
