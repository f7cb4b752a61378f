package sqlrepo

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/paulexconde/surveyrun/internal/models"
)

// Rows whose model already carries db tags are declared as conversions.
type (
	surveyRow      models.Survey
	choiceRow      models.Choice
	hiddenFieldRow models.HiddenField
	submissionRow  models.Submission
	filledFieldRow models.FilledField
)

func (r surveyRow) Key() string      { return r.ID }
func (r choiceRow) Key() string      { return r.ID }
func (r hiddenFieldRow) Key() string { return r.ID }
func (r submissionRow) Key() string  { return r.ID }
func (r filledFieldRow) Key() string { return r.ID }

type questionRow struct {
	ID          string    `db:"id"`
	SurveyID    string    `db:"survey_id"`
	Prompt      string    `db:"prompt"`
	Description string    `db:"description"`
	Type        string    `db:"question_type"`
	Required    bool      `db:"required"`
	NextID      string    `db:"next_question_id"`
	Parameters  string    `db:"parameters"`
	Media       string    `db:"media"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r questionRow) Key() string { return r.ID }

func toQuestionRow(q *models.Question) (questionRow, error) {
	params, err := models.EncodeParameters(q.Parameters)
	if err != nil {
		return questionRow{}, err
	}
	media, err := json.Marshal(q.Media)
	if err != nil {
		return questionRow{}, err
	}
	return questionRow{
		ID:          q.ID,
		SurveyID:    q.SurveyID,
		Prompt:      q.Text,
		Description: q.Description,
		Type:        string(q.Type),
		Required:    q.Required,
		NextID:      q.NextID,
		Parameters:  string(params),
		Media:       string(media),
		CreatedAt:   q.CreatedAt.UTC(),
	}, nil
}

func (r questionRow) model() (*models.Question, error) {
	qt, err := models.ParseQuestionType(r.Type)
	if err != nil {
		return nil, err
	}
	params, err := models.DecodeParameters(qt, []byte(r.Parameters))
	if err != nil {
		return nil, err
	}
	q := &models.Question{
		ID:          r.ID,
		SurveyID:    r.SurveyID,
		Text:        r.Prompt,
		Description: r.Description,
		Type:        qt,
		Required:    r.Required,
		NextID:      r.NextID,
		Parameters:  params,
		CreatedAt:   r.CreatedAt,
	}
	if err := json.Unmarshal([]byte(r.Media), &q.Media); err != nil {
		return nil, fmt.Errorf("decode media of question %s: %w", r.ID, err)
	}
	return q, nil
}

type ruleSetRow struct {
	ID         string `db:"id"`
	QuestionID string `db:"question_id"`
	JumpToID   string `db:"jump_to_id"`
	Index      int    `db:"idx"`
}

func (r ruleSetRow) Key() string { return r.ID }

type conditionRow struct {
	ID        string `db:"id"`
	RuleSetID string `db:"ruleset_id"`
	Index     int    `db:"idx"`
	TestedID  string `db:"tested_id"`
	Operand   string `db:"operand"`
	Kind      string `db:"kind"`
	Predicate string `db:"predicate"`
}

func (r conditionRow) Key() string { return r.ID }

func toConditionRow(ruleSetID string, c *models.Condition) (conditionRow, error) {
	pred, err := models.EncodePredicate(c.Predicate)
	if err != nil {
		return conditionRow{}, err
	}
	return conditionRow{
		ID:        c.ID,
		RuleSetID: ruleSetID,
		Index:     c.Index,
		TestedID:  c.TestedID,
		Operand:   string(c.Operand),
		Kind:      string(c.Kind()),
		Predicate: string(pred),
	}, nil
}

func (r conditionRow) model() (*models.Condition, error) {
	pred, err := models.DecodePredicate(models.ConditionKind(r.Kind), []byte(r.Predicate))
	if err != nil {
		return nil, err
	}
	return &models.Condition{
		ID:        r.ID,
		RuleSetID: r.RuleSetID,
		Index:     r.Index,
		TestedID:  r.TestedID,
		Operand:   models.Operand(r.Operand),
		Predicate: pred,
	}, nil
}

type answerRow struct {
	ID           string    `db:"id"`
	QuestionID   string    `db:"question_id"`
	SubmissionID string    `db:"submission_id"`
	Type         string    `db:"question_type"`
	Value        string    `db:"value"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r answerRow) Key() string { return r.ID }

func toAnswerRow(a *models.Answer) (answerRow, error) {
	value, err := models.EncodeAnswerValue(a.Value)
	if err != nil {
		return answerRow{}, err
	}
	return answerRow{
		ID:           a.ID,
		QuestionID:   a.QuestionID,
		SubmissionID: a.SubmissionID,
		Type:         string(a.Type),
		Value:        string(value),
		CreatedAt:    a.CreatedAt.UTC(),
		UpdatedAt:    a.UpdatedAt.UTC(),
	}, nil
}

func (r answerRow) model() (*models.Answer, error) {
	qt := models.QuestionType(r.Type)
	value, err := models.DecodeAnswerValue(qt, []byte(r.Value))
	if err != nil {
		return nil, err
	}
	return &models.Answer{
		ID:           r.ID,
		QuestionID:   r.QuestionID,
		SubmissionID: r.SubmissionID,
		Type:         qt,
		Value:        value,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}, nil
}
