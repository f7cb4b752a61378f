package models

import (
	"fmt"
	"time"
)

type Survey struct {
	ID              string     `db:"id" json:"id"`
	Name            string     `db:"name" json:"name"`
	Published       bool       `db:"published" json:"published"`
	PublishedAt     *time.Time `db:"published_at" json:"published_at,omitempty"`
	FirstQuestionID string     `db:"first_question_id" json:"first_question_id,omitempty"` // empty when the survey has no questions
	LastQuestionID  string     `db:"last_question_id" json:"last_question_id,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}

// Orientation of the question media relative to its text.
type Orientation string

const (
	Stack      Orientation = "S"
	Float      Orientation = "F"
	Split      Orientation = "2"
	Background Orientation = "B"
)

// Media holds the cosmetic placement fields every question accepts. They are
// stored but never interpreted by the runtime.
type Media struct {
	ImageURL    string      `json:"image_url,omitempty"`
	VideoURL    string      `json:"video_url,omitempty"`
	Orientation Orientation `json:"orientation,omitempty"`
	PositionX   *int        `json:"position_x,omitempty"`
	PositionY   *int        `json:"position_y,omitempty"`
	Opacity     *int        `json:"opacity,omitempty"`
}

type Question struct {
	ID          string       `json:"id"`
	SurveyID    string       `json:"survey_id"`
	Text        string       `json:"question"`
	Description string       `json:"description,omitempty"`
	Type        QuestionType `json:"question_type"`
	Required    bool         `json:"required"`
	NextID      string       `json:"next_question_id,omitempty"` // this is the next question id, empty at the end
	Parameters  Parameters   `json:"parameters"`
	Media       Media        `json:"media"`
	CreatedAt   time.Time    `json:"created_at"`
}

func (q *Question) String() string {
	id := q.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("%s %s %s", id, q.Type, q.Text)
}

// Choice is one selectable option of a choice-bearing question.
type Choice struct {
	ID         string `db:"id" json:"id"`
	QuestionID string `db:"question_id" json:"question_id"`
	Label      string `db:"label" json:"label"`
	ImageURL   string `db:"image_url" json:"image_url,omitempty"`
	Position   int    `db:"position" json:"position"`
}

// Submission is one respondent's run through a survey.
type Submission struct {
	ID          string     `db:"id" json:"id"`
	SurveyID    string     `db:"survey_id" json:"survey_id"`
	IsPreview   bool       `db:"is_preview" json:"is_preview"`
	Completed   bool       `db:"completed" json:"completed"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// Complete marks the submission done at the given instant.
func (s *Submission) Complete(at time.Time) {
	s.Completed = true
	s.CompletedAt = &at
}

type HiddenField struct {
	ID       string `db:"id" json:"id"`
	SurveyID string `db:"survey_id" json:"survey_id"`
	Name     string `db:"name" json:"name"`
}

// FilledField is a hidden field value supplied out-of-band for a submission.
type FilledField struct {
	ID           string `db:"id" json:"id"`
	SubmissionID string `db:"submission_id" json:"submission_id"`
	FieldID      string `db:"field_id" json:"field_id"`
	Value        string `db:"value" json:"value"`
}
