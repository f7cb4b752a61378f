package definition

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/shopspring/decimal"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	ctyjson "github.com/zclconf/go-cty/cty/json"

	"github.com/paulexconde/surveyrun/internal/models"
	"github.com/paulexconde/surveyrun/internal/services"
)

// Loader builds the surveys of a definition through the survey service.
type Loader struct {
	surveys services.SurveyService
	logger  *slog.Logger
}

func NewLoader(surveys services.SurveyService, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Loader{surveys: surveys, logger: logger}
}

// Load creates every survey of f. Surveys created before an error are kept.
func (l *Loader) Load(ctx context.Context, f *File) ([]*models.Survey, error) {
	out := make([]*models.Survey, 0, len(f.Surveys))
	for _, def := range f.Surveys {
		s, err := l.loadSurvey(ctx, def)
		if err != nil {
			return out, fmt.Errorf("survey %q: %w", def.Name, err)
		}
		out = append(out, s)
	}
	return out, nil
}

func (l *Loader) loadSurvey(ctx context.Context, def *Survey) (*models.Survey, error) {
	s, err := l.surveys.CreateSurvey(ctx, def.Name)
	if err != nil {
		return nil, err
	}
	for _, name := range def.HiddenFields {
		if _, err := l.surveys.AddHiddenField(ctx, s.ID, name); err != nil {
			return nil, err
		}
	}

	byKey := make(map[string]*models.Question, len(def.Questions))
	for _, qd := range def.Questions {
		q, err := l.addQuestion(ctx, s.ID, qd)
		if err != nil {
			return nil, fmt.Errorf("question %q: %w", qd.Key, err)
		}
		byKey[qd.Key] = q
	}

	// rules go last, they may point forward
	for _, qd := range def.Questions {
		for i, r := range qd.Rules {
			conds := make([]services.ConditionInput, 0, len(r.Conditions))
			for _, cd := range r.Conditions {
				c, err := l.condition(ctx, byKey[cd.Tested], cd)
				if err != nil {
					return nil, fmt.Errorf("question %q rule %d: %w", qd.Key, i, err)
				}
				conds = append(conds, c)
			}
			if _, err := l.surveys.AddRuleSet(ctx, byKey[qd.Key].ID, byKey[r.JumpTo].ID, conds); err != nil {
				return nil, fmt.Errorf("question %q rule %d: %w", qd.Key, i, err)
			}
		}
	}

	if def.Publish {
		if s, err = l.surveys.Publish(ctx, s.ID); err != nil {
			return nil, err
		}
	} else if s, err = l.surveys.GetSurvey(ctx, s.ID); err != nil {
		return nil, err
	}

	l.logger.InfoContext(ctx, "survey loaded", "survey", s.ID, "name", s.Name, "questions", len(def.Questions), "published", s.Published)
	return s, nil
}

func (l *Loader) addQuestion(ctx context.Context, surveyID string, qd *Question) (*models.Question, error) {
	t, err := models.ParseQuestionType(qd.Type)
	if err != nil {
		return nil, err
	}
	params, err := parameters(t, qd.Parameters)
	if err != nil {
		return nil, err
	}

	in := services.QuestionInput{
		Text:        qd.Text,
		Description: qd.Description,
		Required:    qd.Required,
		Media: models.Media{
			ImageURL:    qd.ImageURL,
			VideoURL:    qd.VideoURL,
			Orientation: models.Orientation(qd.Orientation),
			PositionX:   qd.PositionX,
			PositionY:   qd.PositionY,
			Opacity:     qd.Opacity,
		},
	}
	choices := make([]services.ChoiceInput, 0, len(qd.Choices))
	for _, c := range qd.Choices {
		choices = append(choices, services.ChoiceInput{Label: c.Label, ImageURL: c.ImageURL})
	}
	return l.surveys.AddQuestion(ctx, surveyID, t, in, params, choices)
}

// parameters decodes the parameters object over the type defaults. A missing
// attribute keeps the defaults.
func parameters(t models.QuestionType, expr hcl.Expression) (models.Parameters, error) {
	val, err := evaluate(expr)
	if err != nil {
		return nil, err
	}
	if val.IsNull() {
		return models.DefaultParameters(t)
	}
	if !val.Type().IsObjectType() && !val.Type().IsMapType() {
		return nil, fmt.Errorf("parameters must be an object, got %s", val.Type().FriendlyName())
	}

	data, err := ctyjson.Marshal(val, val.Type())
	if err != nil {
		return nil, fmt.Errorf("encode parameters: %w", err)
	}
	return models.DecodeParameters(t, data)
}

func evaluate(expr hcl.Expression) (cty.Value, error) {
	if expr == nil {
		return cty.NullVal(cty.DynamicPseudoType), nil
	}
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return cty.NilVal, diags
	}
	return val, nil
}

func (l *Loader) condition(ctx context.Context, tested *models.Question, cd *Condition) (services.ConditionInput, error) {
	in := services.ConditionInput{TestedID: tested.ID, Operand: models.Operand(cd.Operand)}

	kind, ok := tested.Type.ConditionKind()
	if !ok {
		return in, fmt.Errorf("%s questions cannot be tested", tested.Type.Name())
	}
	val, err := evaluate(cd.Value)
	if err != nil {
		return in, err
	}
	if val.IsNull() {
		return in, fmt.Errorf("condition on %s has no value", tested.ID)
	}

	switch kind {
	case models.TextCondition:
		s, err := asString(val)
		if err != nil {
			return in, err
		}
		in.Predicate = models.TextPredicate{Op: models.TextMatch(cd.Match), Pattern: s}
	case models.NumberCondition:
		s, err := asString(val)
		if err != nil {
			return in, err
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return in, fmt.Errorf("condition value %q is not a number", s)
		}
		in.Predicate = models.NumberPredicate{Op: models.NumberMatch(cd.Match), Pattern: d}
	case models.BooleanCondition:
		b, err := convert.Convert(val, cty.Bool)
		if err != nil {
			return in, fmt.Errorf("condition value: %w", err)
		}
		in.Predicate = models.BooleanPredicate{Op: models.IsMatch(cd.Match), Value: b.True()}
	case models.DateCondition:
		s, err := asString(val)
		if err != nil {
			return in, err
		}
		d, err := time.Parse(time.DateOnly, s)
		if err != nil {
			return in, fmt.Errorf("condition value %q is not a YYYY-MM-DD date", s)
		}
		in.Predicate = models.DatePredicate{Op: models.DateMatch(cd.Match), Date: d}
	case models.ChoiceCondition:
		label, err := asString(val)
		if err != nil {
			return in, err
		}
		id, err := l.choiceID(ctx, tested, label)
		if err != nil {
			return in, err
		}
		in.Predicate = models.ChoicePredicate{Op: models.IsMatch(cd.Match), ChoiceID: id}
	}
	return in, nil
}

func asString(val cty.Value) (string, error) {
	s, err := convert.Convert(val, cty.String)
	if err != nil {
		return "", fmt.Errorf("condition value: %w", err)
	}
	return s.AsString(), nil
}

func (l *Loader) choiceID(ctx context.Context, q *models.Question, label string) (string, error) {
	choices, err := l.surveys.Choices(ctx, q.ID)
	if err != nil {
		return "", err
	}
	for _, c := range choices {
		if c.Label == label {
			return c.ID, nil
		}
	}
	return "", fmt.Errorf("question %s has no choice %q", q.ID, label)
}
