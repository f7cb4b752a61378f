package services

import (
	"context"

	"github.com/paulexconde/surveyrun/internal/models"
)

// The typed add operations below are thin wrappers over AddQuestion. A nil
// parameter struct means the type defaults.

// orDefault keeps a typed nil pointer from reaching AddQuestion as a non-nil
// interface.
func orDefault[P models.Parameters](p P, isNil bool) models.Parameters {
	if isNil {
		return nil
	}
	return p
}

func (s *surveyServiceImpl) AddWelcomeScreen(ctx context.Context, surveyID string, in QuestionInput, p *models.WelcomeParameters) (*models.Question, error) {
	return s.AddQuestion(ctx, surveyID, models.WelcomeScreen, in, orDefault(p, p == nil), nil)
}

func (s *surveyServiceImpl) AddThankYouScreen(ctx context.Context, surveyID string, in QuestionInput, p *models.ThankYouParameters) (*models.Question, error) {
	return s.AddQuestion(ctx, surveyID, models.ThankYouScreen, in, orDefault(p, p == nil), nil)
}

func (s *surveyServiceImpl) AddMultipleChoice(ctx context.Context, surveyID string, in QuestionInput, p *models.MultipleChoiceParameters, choices []ChoiceInput) (*models.Question, error) {
	return s.AddQuestion(ctx, surveyID, models.MultipleChoice, in, orDefault(p, p == nil), choices)
}

func (s *surveyServiceImpl) AddPhoneNumber(ctx context.Context, surveyID string, in QuestionInput, p *models.PhoneNumberParameters) (*models.Question, error) {
	return s.AddQuestion(ctx, surveyID, models.PhoneNumber, in, orDefault(p, p == nil), nil)
}

func (s *surveyServiceImpl) AddShortText(ctx context.Context, surveyID string, in QuestionInput, p *models.ShortTextParameters) (*models.Question, error) {
	return s.AddQuestion(ctx, surveyID, models.ShortText, in, orDefault(p, p == nil), nil)
}

func (s *surveyServiceImpl) AddLongText(ctx context.Context, surveyID string, in QuestionInput, p *models.LongTextParameters) (*models.Question, error) {
	return s.AddQuestion(ctx, surveyID, models.LongText, in, orDefault(p, p == nil), nil)
}

func (s *surveyServiceImpl) AddStatement(ctx context.Context, surveyID string, in QuestionInput, p *models.StatementParameters) (*models.Question, error) {
	return s.AddQuestion(ctx, surveyID, models.Statement, in, orDefault(p, p == nil), nil)
}

func (s *surveyServiceImpl) AddPictureChoice(ctx context.Context, surveyID string, in QuestionInput, p *models.PictureChoiceParameters, choices []ChoiceInput) (*models.Question, error) {
	return s.AddQuestion(ctx, surveyID, models.PictureChoice, in, orDefault(p, p == nil), choices)
}

func (s *surveyServiceImpl) AddYesNo(ctx context.Context, surveyID string, in QuestionInput) (*models.Question, error) {
	return s.AddQuestion(ctx, surveyID, models.YesNo, in, nil, nil)
}

func (s *surveyServiceImpl) AddEmail(ctx context.Context, surveyID string, in QuestionInput) (*models.Question, error) {
	return s.AddQuestion(ctx, surveyID, models.Email, in, nil, nil)
}

func (s *surveyServiceImpl) AddOpinionScale(ctx context.Context, surveyID string, in QuestionInput, p *models.OpinionScaleParameters) (*models.Question, error) {
	return s.AddQuestion(ctx, surveyID, models.OpinionScale, in, orDefault(p, p == nil), nil)
}

func (s *surveyServiceImpl) AddRating(ctx context.Context, surveyID string, in QuestionInput, p *models.RatingParameters) (*models.Question, error) {
	return s.AddQuestion(ctx, surveyID, models.Rating, in, orDefault(p, p == nil), nil)
}

func (s *surveyServiceImpl) AddDate(ctx context.Context, surveyID string, in QuestionInput, p *models.DateParameters) (*models.Question, error) {
	return s.AddQuestion(ctx, surveyID, models.Date, in, orDefault(p, p == nil), nil)
}

func (s *surveyServiceImpl) AddNumber(ctx context.Context, surveyID string, in QuestionInput, p *models.NumberParameters) (*models.Question, error) {
	return s.AddQuestion(ctx, surveyID, models.Number, in, orDefault(p, p == nil), nil)
}

func (s *surveyServiceImpl) AddDropdown(ctx context.Context, surveyID string, in QuestionInput, p *models.DropdownParameters, choices []ChoiceInput) (*models.Question, error) {
	return s.AddQuestion(ctx, surveyID, models.Dropdown, in, orDefault(p, p == nil), choices)
}

func (s *surveyServiceImpl) AddLegal(ctx context.Context, surveyID string, in QuestionInput) (*models.Question, error) {
	return s.AddQuestion(ctx, surveyID, models.Legal, in, nil, nil)
}

func (s *surveyServiceImpl) AddFileUpload(ctx context.Context, surveyID string, in QuestionInput) (*models.Question, error) {
	return s.AddQuestion(ctx, surveyID, models.FileUpload, in, nil, nil)
}

func (s *surveyServiceImpl) AddPayment(ctx context.Context, surveyID string, in QuestionInput, p *models.PaymentParameters) (*models.Question, error) {
	return s.AddQuestion(ctx, surveyID, models.Payment, in, orDefault(p, p == nil), nil)
}

func (s *surveyServiceImpl) AddWebsite(ctx context.Context, surveyID string, in QuestionInput) (*models.Question, error) {
	return s.AddQuestion(ctx, surveyID, models.Website, in, nil, nil)
}
