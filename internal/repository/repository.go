// Package repository defines the persistence contract of the survey runtime.
//
// Two implementations live in sub packages: memory, used by tests and the
// offline CLI, and sqlrepo, backed by sqlx.
package repository

import (
	"context"

	"github.com/paulexconde/surveyrun/internal/models"
	"github.com/paulexconde/surveyrun/internal/pkg/paginator"
)

// GraphCommit is one atomic change to a survey's question graph. Implementations
// apply every part or none of it.
type GraphCommit struct {
	// Survey carries the new first and last question pointers.
	Survey *models.Survey
	// Insert holds new questions, with their choices in Choices.
	Insert  []*models.Question
	Choices []*models.Choice
	// Relink maps a question id to its new next question id.
	Relink map[string]string
	// Delete lists question ids to remove along with everything they own:
	// choices, rule sets owned by or jumping to them, conditions testing them
	// and their answers.
	Delete []string
}

// Repository is implemented by every storage backend. Lookups of unknown ids
// return an error wrapping fault.ErrNotFound.
type Repository interface {
	CreateSurvey(ctx context.Context, s *models.Survey) error
	GetSurvey(ctx context.Context, id string) (*models.Survey, error)
	// UpdateSurvey writes name and publication state. Graph pointers only
	// change through CommitGraph.
	UpdateSurvey(ctx context.Context, s *models.Survey) error
	DeleteSurvey(ctx context.Context, id string) error
	ListSurveys(ctx context.Context) ([]*models.Survey, error)

	GetQuestion(ctx context.Context, id string) (*models.Question, error)
	// ListQuestions returns the survey's questions in no particular order.
	ListQuestions(ctx context.Context, surveyID string) ([]*models.Question, error)
	CommitGraph(ctx context.Context, c GraphCommit) error

	GetChoice(ctx context.Context, id string) (*models.Choice, error)
	// ListChoices returns the question's choices by ascending position.
	ListChoices(ctx context.Context, questionID string) ([]*models.Choice, error)

	// CreateRuleSet stores the rule set together with its conditions.
	CreateRuleSet(ctx context.Context, rs *models.RuleSet) error
	DeleteRuleSet(ctx context.Context, id string) error
	GetRuleSet(ctx context.Context, id string) (*models.RuleSet, error)
	// ListRuleSets returns the question's rule sets by index, each with its
	// conditions by index.
	ListRuleSets(ctx context.Context, questionID string) ([]*models.RuleSet, error)

	// CreateHiddenField returns fault.ErrUniqueViolation when the survey
	// already has a field with that name.
	CreateHiddenField(ctx context.Context, f *models.HiddenField) error
	FindHiddenField(ctx context.Context, surveyID, name string) (*models.HiddenField, error)
	ListHiddenFields(ctx context.Context, surveyID string) ([]*models.HiddenField, error)

	// CreateSubmission stores the submission and its filled fields together.
	CreateSubmission(ctx context.Context, s *models.Submission, filled []*models.FilledField) error
	GetSubmission(ctx context.Context, id string) (*models.Submission, error)
	UpdateSubmission(ctx context.Context, s *models.Submission) error
	DeletePreviewSubmissions(ctx context.Context, surveyID string) (int, error)
	// ListSubmissions pages through the survey's submissions, newest first.
	ListSubmissions(ctx context.Context, surveyID string, page, limit int) (*paginator.PaginatedResponse[models.Submission], error)
	ListFilledFields(ctx context.Context, submissionID string) ([]*models.FilledField, error)

	// GetAnswer returns the answer for the pair, wrapping fault.ErrNotFound
	// when there is none.
	GetAnswer(ctx context.Context, questionID, submissionID string) (*models.Answer, error)
	// SaveAnswer creates the answer for its pair or overwrites the existing
	// one. The stored row keeps its original id and creation time.
	SaveAnswer(ctx context.Context, a *models.Answer) error
	// ListAnswers returns the submission's answers by creation time.
	ListAnswers(ctx context.Context, submissionID string) ([]*models.Answer, error)
}
