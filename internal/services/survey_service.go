package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/paulexconde/surveyrun/internal/graph"
	"github.com/paulexconde/surveyrun/internal/models"
	"github.com/paulexconde/surveyrun/internal/pkg/keylock"
	"github.com/paulexconde/surveyrun/internal/repository"
	"github.com/paulexconde/surveyrun/pkg/fault"
)

// QuestionInput holds the fields every add operation accepts.
type QuestionInput struct {
	Text        string
	Description string
	Required    bool
	Media       models.Media
}

type ChoiceInput struct {
	Label    string
	ImageURL string
}

// ConditionInput is one condition of a new rule set. The operand of the first
// condition is ignored.
type ConditionInput struct {
	TestedID  string
	Operand   models.Operand
	Predicate models.Predicate
}

// Handles survey authoring.
//
// Every change to the question order is staged on a copy of the graph,
// validated, and then committed in one repository call while the survey is
// locked.
type SurveyService interface {
	CreateSurvey(ctx context.Context, name string) (*models.Survey, error)
	GetSurvey(ctx context.Context, id string) (*models.Survey, error)
	ListSurveys(ctx context.Context) ([]*models.Survey, error)
	DeleteSurvey(ctx context.Context, id string) error
	// Publish drops preview submissions and freezes the question graph.
	Publish(ctx context.Context, id string) (*models.Survey, error)
	QuestionTypes() []models.QuestionTypeInfo

	// AddQuestion appends a question of any type. A nil params gets the type
	// defaults.
	AddQuestion(ctx context.Context, surveyID string, t models.QuestionType, in QuestionInput, params models.Parameters, choices []ChoiceInput) (*models.Question, error)
	// AddWelcomeScreen returns the survey's existing welcome screen unchanged
	// when there is one.
	AddWelcomeScreen(ctx context.Context, surveyID string, in QuestionInput, p *models.WelcomeParameters) (*models.Question, error)
	AddThankYouScreen(ctx context.Context, surveyID string, in QuestionInput, p *models.ThankYouParameters) (*models.Question, error)
	AddMultipleChoice(ctx context.Context, surveyID string, in QuestionInput, p *models.MultipleChoiceParameters, choices []ChoiceInput) (*models.Question, error)
	AddPhoneNumber(ctx context.Context, surveyID string, in QuestionInput, p *models.PhoneNumberParameters) (*models.Question, error)
	AddShortText(ctx context.Context, surveyID string, in QuestionInput, p *models.ShortTextParameters) (*models.Question, error)
	AddLongText(ctx context.Context, surveyID string, in QuestionInput, p *models.LongTextParameters) (*models.Question, error)
	AddStatement(ctx context.Context, surveyID string, in QuestionInput, p *models.StatementParameters) (*models.Question, error)
	AddPictureChoice(ctx context.Context, surveyID string, in QuestionInput, p *models.PictureChoiceParameters, choices []ChoiceInput) (*models.Question, error)
	AddYesNo(ctx context.Context, surveyID string, in QuestionInput) (*models.Question, error)
	AddEmail(ctx context.Context, surveyID string, in QuestionInput) (*models.Question, error)
	AddOpinionScale(ctx context.Context, surveyID string, in QuestionInput, p *models.OpinionScaleParameters) (*models.Question, error)
	AddRating(ctx context.Context, surveyID string, in QuestionInput, p *models.RatingParameters) (*models.Question, error)
	AddDate(ctx context.Context, surveyID string, in QuestionInput, p *models.DateParameters) (*models.Question, error)
	AddNumber(ctx context.Context, surveyID string, in QuestionInput, p *models.NumberParameters) (*models.Question, error)
	AddDropdown(ctx context.Context, surveyID string, in QuestionInput, p *models.DropdownParameters, choices []ChoiceInput) (*models.Question, error)
	AddLegal(ctx context.Context, surveyID string, in QuestionInput) (*models.Question, error)
	AddFileUpload(ctx context.Context, surveyID string, in QuestionInput) (*models.Question, error)
	AddPayment(ctx context.Context, surveyID string, in QuestionInput, p *models.PaymentParameters) (*models.Question, error)
	AddWebsite(ctx context.Context, surveyID string, in QuestionInput) (*models.Question, error)

	GetQuestion(ctx context.Context, id string) (*models.Question, error)
	DeleteQuestion(ctx context.Context, questionID string) error
	// MoveQuestionUp reports false when the question already comes first.
	MoveQuestionUp(ctx context.Context, questionID string) (bool, error)
	// MoveQuestionDown reports false when the question already comes last.
	MoveQuestionDown(ctx context.Context, questionID string) (bool, error)
	// OrderedQuestions walks the graph from the first question.
	OrderedQuestions(ctx context.Context, surveyID string) ([]*models.Question, error)
	Choices(ctx context.Context, questionID string) ([]*models.Choice, error)

	// AddHiddenField returns the field with that name, creating it if needed.
	AddHiddenField(ctx context.Context, surveyID, name string) (*models.HiddenField, error)
	HiddenFields(ctx context.Context, surveyID string) ([]*models.HiddenField, error)

	AddRuleSet(ctx context.Context, questionID, jumpToID string, conditions []ConditionInput) (*models.RuleSet, error)
	DeleteRuleSet(ctx context.Context, id string) error
	RuleSets(ctx context.Context, questionID string) ([]*models.RuleSet, error)
}

type surveyServiceImpl struct {
	repo   repository.Repository
	locks  *keylock.Locker
	logger *slog.Logger
	clock  Clock
	newID  func() string
}

// Instantiate the SurveyService.
func NewSurveyService(repo repository.Repository, opts ...Option) SurveyService {
	cfg := newConfig(opts)
	return &surveyServiceImpl{
		repo:   repo,
		locks:  keylock.New(),
		logger: cfg.logger,
		clock:  cfg.clock,
		newID:  cfg.newID,
	}
}

func published(s *models.Survey) error {
	return fault.NewClientError(fmt.Sprintf("survey %s is published", s.ID), fault.ErrStructuralViolation)
}

func (s *surveyServiceImpl) CreateSurvey(ctx context.Context, name string) (*models.Survey, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fault.Invalid("survey name is required")
	}

	survey := &models.Survey{
		ID:        s.newID(),
		Name:      name,
		CreatedAt: s.clock().UTC(),
	}
	if err := s.repo.CreateSurvey(ctx, survey); err != nil {
		return nil, fmt.Errorf("create survey: %w", err)
	}
	s.logger.InfoContext(ctx, "survey created", "survey", survey.ID, "name", survey.Name)
	return survey, nil
}

func (s *surveyServiceImpl) GetSurvey(ctx context.Context, id string) (*models.Survey, error) {
	return s.repo.GetSurvey(ctx, id)
}

func (s *surveyServiceImpl) ListSurveys(ctx context.Context) ([]*models.Survey, error) {
	return s.repo.ListSurveys(ctx)
}

func (s *surveyServiceImpl) DeleteSurvey(ctx context.Context, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	if err := s.repo.DeleteSurvey(ctx, id); err != nil {
		return fmt.Errorf("delete survey: %w", err)
	}
	s.logger.InfoContext(ctx, "survey deleted", "survey", id)
	return nil
}

func (s *surveyServiceImpl) Publish(ctx context.Context, id string) (*models.Survey, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	survey, err := s.repo.GetSurvey(ctx, id)
	if err != nil {
		return nil, err
	}

	dropped, err := s.repo.DeletePreviewSubmissions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("delete preview submissions: %w", err)
	}

	now := s.clock().UTC()
	survey.Published = true
	survey.PublishedAt = &now
	if err := s.repo.UpdateSurvey(ctx, survey); err != nil {
		return nil, fmt.Errorf("publish survey: %w", err)
	}
	s.logger.InfoContext(ctx, "survey published", "survey", id, "previews_dropped", dropped)
	return survey, nil
}

func (s *surveyServiceImpl) QuestionTypes() []models.QuestionTypeInfo {
	return models.QuestionTypes()
}

func (s *surveyServiceImpl) AddQuestion(ctx context.Context, surveyID string, t models.QuestionType, in QuestionInput, params models.Parameters, choices []ChoiceInput) (*models.Question, error) {
	if !t.Valid() {
		return nil, fault.Invalid("unknown question type %q", t)
	}
	if params == nil {
		var err error
		if params, err = models.DefaultParameters(t); err != nil {
			return nil, err
		}
	}
	if params.QuestionType() != t {
		return nil, fault.Invalid("%s parameters given for a %s question", params.QuestionType().Name(), t.Name())
	}
	if err := validateParameters(params); err != nil {
		return nil, err
	}
	if err := validateMedia(in.Media); err != nil {
		return nil, err
	}
	if len(choices) > 0 && !t.HasChoices() {
		return nil, fault.Invalid("%s questions have no choices", t.Name())
	}
	for _, c := range choices {
		if strings.TrimSpace(c.Label) == "" {
			return nil, fault.Invalid("choice label is required")
		}
		if c.ImageURL != "" && !wellFormed(c.ImageURL) {
			return nil, fault.Invalid("choice image url %q is not well formed", c.ImageURL)
		}
	}

	unlock := s.locks.Lock(surveyID)
	defer unlock()

	survey, err := s.repo.GetSurvey(ctx, surveyID)
	if err != nil {
		return nil, err
	}
	if survey.Published {
		return nil, published(survey)
	}

	questions, err := s.repo.ListQuestions(ctx, surveyID)
	if err != nil {
		return nil, err
	}
	if t == models.WelcomeScreen {
		for _, q := range questions {
			if q.Type == models.WelcomeScreen {
				s.logger.DebugContext(ctx, "welcome screen already present", "survey", surveyID, "question", q.ID)
				return q, nil
			}
		}
	}

	q := &models.Question{
		ID:          s.newID(),
		SurveyID:    surveyID,
		Text:        in.Text,
		Description: in.Description,
		Type:        t,
		Required:    in.Required && t.Answerable(),
		Parameters:  params,
		Media:       in.Media,
		CreatedAt:   s.clock().UTC(),
	}
	rows := make([]*models.Choice, 0, len(choices))
	for i, c := range choices {
		rows = append(rows, &models.Choice{
			ID:         s.newID(),
			QuestionID: q.ID,
			Label:      c.Label,
			ImageURL:   c.ImageURL,
			Position:   i,
		})
	}

	base := s.chain(survey, questions)
	staged := base.Clone()
	staged.Append(q.ID)

	err = s.commit(ctx, survey, base, staged, repository.GraphCommit{
		Insert:  []*models.Question{q},
		Choices: rows,
	})
	if err != nil {
		return nil, fmt.Errorf("add %s question: %w", t.Name(), err)
	}
	s.logger.DebugContext(ctx, "question appended", "survey", surveyID, "question", q.ID, "type", t)
	return q, nil
}

func (s *surveyServiceImpl) GetQuestion(ctx context.Context, id string) (*models.Question, error) {
	return s.repo.GetQuestion(ctx, id)
}

func (s *surveyServiceImpl) DeleteQuestion(ctx context.Context, questionID string) error {
	return s.mutate(ctx, questionID, "delete", func(c *graph.Chain) (bool, error) {
		return true, c.Remove(questionID)
	})
}

func (s *surveyServiceImpl) MoveQuestionUp(ctx context.Context, questionID string) (bool, error) {
	var moved bool
	err := s.mutate(ctx, questionID, "move up", func(c *graph.Chain) (bool, error) {
		var err error
		moved, err = c.MoveUp(questionID)
		return moved, err
	})
	return moved, err
}

func (s *surveyServiceImpl) MoveQuestionDown(ctx context.Context, questionID string) (bool, error) {
	var moved bool
	err := s.mutate(ctx, questionID, "move down", func(c *graph.Chain) (bool, error) {
		var err error
		moved, err = c.MoveDown(questionID)
		return moved, err
	})
	return moved, err
}

// mutate stages fn on a copy of the question's survey graph and commits the
// result. fn reports whether anything changed.
func (s *surveyServiceImpl) mutate(ctx context.Context, questionID, op string, fn func(*graph.Chain) (bool, error)) error {
	q, err := s.repo.GetQuestion(ctx, questionID)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(q.SurveyID)
	defer unlock()

	survey, err := s.repo.GetSurvey(ctx, q.SurveyID)
	if err != nil {
		return err
	}
	if survey.Published {
		return published(survey)
	}
	questions, err := s.repo.ListQuestions(ctx, survey.ID)
	if err != nil {
		return err
	}

	base := s.chain(survey, questions)
	staged := base.Clone()
	changed, err := fn(staged)
	if err != nil {
		return fault.NewClientError(fmt.Sprintf("%s question %s", op, questionID), fmt.Errorf("%w: %w", fault.ErrNotFound, err))
	}
	if !changed {
		s.logger.DebugContext(ctx, "question graph unchanged", "op", op, "question", questionID)
		return nil
	}

	var c repository.GraphCommit
	if !staged.Contains(questionID) {
		c.Delete = []string{questionID}
	}
	if err := s.commit(ctx, survey, base, staged, c); err != nil {
		return fmt.Errorf("%s question: %w", op, err)
	}
	s.logger.DebugContext(ctx, "question graph relinked", "op", op, "survey", survey.ID, "question", questionID)
	return nil
}

// chain rebuilds the persisted graph. A persisted graph that does not validate
// was corrupted outside the service.
func (s *surveyServiceImpl) chain(survey *models.Survey, questions []*models.Question) *graph.Chain {
	c := graph.FromQuestions(survey, questions)
	if err := c.Validate(); err != nil {
		panic(fmt.Sprintf("survey %s: persisted question graph is invalid: %v", survey.ID, err))
	}
	return c
}

// commit writes the pointers that differ between base and staged, together
// with the inserts and deletes in c.
func (s *surveyServiceImpl) commit(ctx context.Context, survey *models.Survey, base, staged *graph.Chain, c repository.GraphCommit) error {
	if err := staged.Validate(); err != nil {
		panic(fmt.Sprintf("survey %s: staged question graph is invalid: %v", survey.ID, err))
	}

	relink, _ := staged.Changes(base)
	next := *survey
	next.FirstQuestionID, next.LastQuestionID = staged.First, staged.Last
	c.Survey = &next
	c.Relink = relink

	if err := s.repo.CommitGraph(ctx, c); err != nil {
		return err
	}
	survey.FirstQuestionID, survey.LastQuestionID = staged.First, staged.Last
	return nil
}

func (s *surveyServiceImpl) OrderedQuestions(ctx context.Context, surveyID string) ([]*models.Question, error) {
	survey, err := s.repo.GetSurvey(ctx, surveyID)
	if err != nil {
		return nil, err
	}
	questions, err := s.repo.ListQuestions(ctx, surveyID)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*models.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	order := graph.FromQuestions(survey, questions).Order()
	out := make([]*models.Question, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	return out, nil
}

func (s *surveyServiceImpl) Choices(ctx context.Context, questionID string) ([]*models.Choice, error) {
	if _, err := s.repo.GetQuestion(ctx, questionID); err != nil {
		return nil, err
	}
	return s.repo.ListChoices(ctx, questionID)
}

func (s *surveyServiceImpl) AddHiddenField(ctx context.Context, surveyID, name string) (*models.HiddenField, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fault.Invalid("hidden field name is required")
	}
	if _, err := s.repo.GetSurvey(ctx, surveyID); err != nil {
		return nil, err
	}

	field, err := s.repo.FindHiddenField(ctx, surveyID, name)
	if err == nil {
		return field, nil
	}
	if !errors.Is(err, fault.ErrNotFound) {
		return nil, err
	}

	field = &models.HiddenField{ID: s.newID(), SurveyID: surveyID, Name: name}
	err = s.repo.CreateHiddenField(ctx, field)
	if errors.Is(err, fault.ErrUniqueViolation) {
		// created by a concurrent caller
		return s.repo.FindHiddenField(ctx, surveyID, name)
	}
	if err != nil {
		return nil, fmt.Errorf("create hidden field: %w", err)
	}
	return field, nil
}

func (s *surveyServiceImpl) HiddenFields(ctx context.Context, surveyID string) ([]*models.HiddenField, error) {
	return s.repo.ListHiddenFields(ctx, surveyID)
}

func validateMedia(m models.Media) error {
	if m.ImageURL != "" && !wellFormed(m.ImageURL) {
		return fault.Invalid("image url %q is not well formed", m.ImageURL)
	}
	if m.VideoURL != "" && !wellFormed(m.VideoURL) {
		return fault.Invalid("video url %q is not well formed", m.VideoURL)
	}
	switch m.Orientation {
	case "", models.Stack, models.Float, models.Split, models.Background:
	default:
		return fault.Invalid("unknown orientation %q", m.Orientation)
	}
	if m.Opacity != nil && (*m.Opacity < 0 || *m.Opacity > 100) {
		return fault.Invalid("opacity %d is not a percentage", *m.Opacity)
	}
	return nil
}

// wellFormed accepts absolute http and https URLs. Nothing is fetched.
func wellFormed(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func validateParameters(p models.Parameters) error {
	switch p := p.(type) {
	case *models.ThankYouParameters:
		if p.ButtonLink != "" && !wellFormed(p.ButtonLink) {
			return fault.Invalid("button link %q is not well formed", p.ButtonLink)
		}
	case *models.ShortTextParameters:
		return validateLimit(p.TextLimit)
	case *models.LongTextParameters:
		return validateLimit(p.TextLimit)
	case *models.OpinionScaleParameters:
		if p.NumberOfSteps < 1 {
			return fault.Invalid("opinion scale needs at least one step")
		}
	case *models.RatingParameters:
		if p.NumberOfSteps < 1 {
			return fault.Invalid("rating needs at least one step")
		}
		if _, ok := models.RatingShapes[p.Shape]; !ok {
			return fault.Invalid("unknown rating shape %q", p.Shape)
		}
	case *models.DateParameters:
		switch p.DateFormat {
		case models.YYYYMMDD, models.DDMMYYYY, models.MMDDYYYY:
		default:
			return fault.Invalid("unknown date format %q", p.DateFormat)
		}
	case *models.NumberParameters:
		if p.EnableMin && !p.MinValue.Valid {
			return fault.Invalid("minimum enabled without a value")
		}
		if p.EnableMax && !p.MaxValue.Valid {
			return fault.Invalid("maximum enabled without a value")
		}
		if p.EnableMin && p.EnableMax && p.MinValue.Decimal.GreaterThan(p.MaxValue.Decimal) {
			return fault.Invalid("minimum %s is above maximum %s", p.MinValue.Decimal, p.MaxValue.Decimal)
		}
	case *models.PaymentParameters:
		if p.Price.IsNegative() {
			return fault.Invalid("price cannot be negative")
		}
	}
	return nil
}

func validateLimit(l models.TextLimit) error {
	if l.LimitCharacter && l.Limit < 1 {
		return fault.Invalid("character limit must be positive")
	}
	return nil
}
