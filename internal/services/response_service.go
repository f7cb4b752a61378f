package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/paulexconde/surveyrun/internal/logic"
	"github.com/paulexconde/surveyrun/internal/models"
	"github.com/paulexconde/surveyrun/internal/pkg/keylock"
	"github.com/paulexconde/surveyrun/internal/pkg/paginator"
	"github.com/paulexconde/surveyrun/internal/repository"
	"github.com/paulexconde/surveyrun/pkg/fault"
)

type StepKind int

const (
	// StepContinue carries the next question to show.
	StepContinue StepKind = iota + 1
	// StepCompleted ends the submission. Question is set when the survey ends
	// on a thank you screen.
	StepCompleted
	// StepValidationFailed re-shows Question; nothing was stored.
	StepValidationFailed
)

func (k StepKind) String() string {
	switch k {
	case StepContinue:
		return "Continue"
	case StepCompleted:
		return "Completed"
	case StepValidationFailed:
		return "ValidationFailed"
	default:
		return "Unknown"
	}
}

// NextStep is the outcome of answering one question.
type NextStep struct {
	Kind     StepKind
	Question *models.Question
	Answer   *models.Answer
	Err      error
}

// ErrorKind classifies Err for a failed step.
func (s *NextStep) ErrorKind() fault.Kind {
	return fault.KindOf(s.Err)
}

// Handles respondents going through a survey.
type SurveyResponseService interface {
	// Start opens a submission and returns the first question, or nil for an
	// empty survey, in which case the submission is already completed. Hidden
	// values whose name is not a hidden field of the survey are ignored.
	Start(ctx context.Context, surveyID string, preview bool, hidden map[string]string) (*models.Submission, *models.Question, error)
	// Answers the question and determines where the submission goes next.
	AnswerQuestion(ctx context.Context, submissionID, questionID string, raw map[string][]string, files map[string][]Upload) (*NextStep, error)
	// Determines what is the next question, nil at the end of the survey.
	GetNextQuestionWithLogic(ctx context.Context, question *models.Question, submissionID string) (*models.Question, error)

	GetSubmission(ctx context.Context, id string) (*models.Submission, error)
	ListSubmissions(ctx context.Context, surveyID string, page, limit int) (*paginator.PaginatedResponse[models.Submission], error)
	ListAnswers(ctx context.Context, submissionID string) ([]*models.Answer, error)
	// GetAnswer returns the previous answer to the question, if any.
	GetAnswer(ctx context.Context, questionID, submissionID string) (*models.Answer, error)
	FilledFields(ctx context.Context, submissionID string) ([]*models.FilledField, error)
}

type surveyResponseServiceImpl struct {
	repo     repository.Repository
	recorder AnswerRecorder
	engine   *logic.Engine
	locks    *keylock.Locker
	logger   *slog.Logger
	clock    Clock
	newID    func() string
}

func NewSurveyResponseService(repo repository.Repository, recorder AnswerRecorder, engine *logic.Engine, opts ...Option) SurveyResponseService {
	cfg := newConfig(opts)
	return &surveyResponseServiceImpl{
		repo:     repo,
		recorder: recorder,
		engine:   engine,
		locks:    keylock.New(),
		logger:   cfg.logger,
		clock:    cfg.clock,
		newID:    cfg.newID,
	}
}

func (s *surveyResponseServiceImpl) Start(ctx context.Context, surveyID string, preview bool, hidden map[string]string) (*models.Submission, *models.Question, error) {
	survey, err := s.repo.GetSurvey(ctx, surveyID)
	if err != nil {
		return nil, nil, err
	}
	if !survey.Published && !preview {
		return nil, nil, fault.NewClientError(fmt.Sprintf("survey %s is not published", surveyID), fault.ErrNotFound)
	}

	sub := &models.Submission{
		ID:        s.newID(),
		SurveyID:  surveyID,
		IsPreview: preview,
		CreatedAt: s.clock().UTC(),
	}

	var filled []*models.FilledField
	if len(hidden) > 0 {
		fields, err := s.repo.ListHiddenFields(ctx, surveyID)
		if err != nil {
			return nil, nil, err
		}
		for _, f := range fields {
			if v, ok := hidden[f.Name]; ok {
				filled = append(filled, &models.FilledField{
					ID:           s.newID(),
					SubmissionID: sub.ID,
					FieldID:      f.ID,
					Value:        v,
				})
			}
		}
	}

	var first *models.Question
	if survey.FirstQuestionID == "" {
		sub.Complete(s.clock().UTC())
	} else if first, err = s.repo.GetQuestion(ctx, survey.FirstQuestionID); err != nil {
		return nil, nil, err
	}

	if err := s.repo.CreateSubmission(ctx, sub, filled); err != nil {
		return nil, nil, fmt.Errorf("create submission: %w", err)
	}
	s.logger.InfoContext(ctx, "submission started", "survey", surveyID, "submission", sub.ID, "preview", preview, "filled_fields", len(filled))
	return sub, first, nil
}

func (s *surveyResponseServiceImpl) AnswerQuestion(ctx context.Context, submissionID, questionID string, raw map[string][]string, files map[string][]Upload) (*NextStep, error) {
	unlock := s.locks.Lock(submissionID)
	defer unlock()

	sub, err := s.repo.GetSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if sub.Completed {
		return nil, fault.NewClientError(fmt.Sprintf("submission %s", sub.ID), fault.ErrSubmissionCompleted)
	}
	q, err := s.repo.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if q.SurveyID != sub.SurveyID {
		return nil, foreign("question", q.ID, sub.SurveyID)
	}

	answer, err := s.recorder.RecordAnswer(ctx, q, sub, raw, files)
	if fault.IsValidation(err) {
		return &NextStep{Kind: StepValidationFailed, Question: q, Err: err}, nil
	}
	if err != nil {
		return nil, err
	}

	next, err := s.GetNextQuestionWithLogic(ctx, q, sub.ID)
	if err != nil {
		return nil, err
	}
	s.logger.DebugContext(ctx, "next question resolved", "submission", sub.ID, "from", q.ID, "to", questionLabel(next))

	if next != nil && next.Type != models.ThankYouScreen {
		return &NextStep{Kind: StepContinue, Question: next, Answer: answer}, nil
	}

	sub.Complete(s.clock().UTC())
	if err := s.repo.UpdateSubmission(ctx, sub); err != nil {
		return nil, fmt.Errorf("complete submission: %w", err)
	}
	return &NextStep{Kind: StepCompleted, Question: next, Answer: answer}, nil
}

func questionLabel(q *models.Question) string {
	if q == nil {
		return "end"
	}
	return q.String()
}

func (s *surveyResponseServiceImpl) GetNextQuestionWithLogic(ctx context.Context, question *models.Question, submissionID string) (*models.Question, error) {
	// the caller's copy may predate later appends or moves
	question, err := s.repo.GetQuestion(ctx, question.ID)
	if err != nil {
		return nil, err
	}
	ruleSets, err := s.repo.ListRuleSets(ctx, question.ID)
	if err != nil {
		return nil, err
	}

	var answers map[string]*models.Answer
	if len(ruleSets) > 0 {
		list, err := s.repo.ListAnswers(ctx, submissionID)
		if err != nil {
			return nil, err
		}
		answers = make(map[string]*models.Answer, len(list))
		for _, a := range list {
			answers[a.QuestionID] = a
		}
	}

	nextID, err := s.engine.Next(question, ruleSets, func(id string) *models.Answer { return answers[id] })
	if err != nil {
		return nil, fmt.Errorf("evaluate logic of question %s: %w", question.ID, err)
	}
	if nextID == "" {
		return nil, nil
	}
	return s.repo.GetQuestion(ctx, nextID)
}

func (s *surveyResponseServiceImpl) GetSubmission(ctx context.Context, id string) (*models.Submission, error) {
	return s.repo.GetSubmission(ctx, id)
}

func (s *surveyResponseServiceImpl) ListSubmissions(ctx context.Context, surveyID string, page, limit int) (*paginator.PaginatedResponse[models.Submission], error) {
	if _, err := s.repo.GetSurvey(ctx, surveyID); err != nil {
		return nil, err
	}
	return s.repo.ListSubmissions(ctx, surveyID, page, limit)
}

func (s *surveyResponseServiceImpl) ListAnswers(ctx context.Context, submissionID string) ([]*models.Answer, error) {
	if _, err := s.repo.GetSubmission(ctx, submissionID); err != nil {
		return nil, err
	}
	return s.repo.ListAnswers(ctx, submissionID)
}

func (s *surveyResponseServiceImpl) GetAnswer(ctx context.Context, questionID, submissionID string) (*models.Answer, error) {
	a, err := s.repo.GetAnswer(ctx, questionID, submissionID)
	if errors.Is(err, fault.ErrNotFound) {
		return nil, nil
	}
	return a, err
}

func (s *surveyResponseServiceImpl) FilledFields(ctx context.Context, submissionID string) ([]*models.FilledField, error) {
	return s.repo.ListFilledFields(ctx, submissionID)
}
