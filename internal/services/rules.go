package services

import (
	"context"
	"fmt"

	"github.com/paulexconde/surveyrun/internal/models"
	"github.com/paulexconde/surveyrun/pkg/fault"
)

func foreign(what, id, surveyID string) error {
	return fault.NewClientError(fmt.Sprintf("%s %s does not belong to survey %s", what, id, surveyID), fault.ErrNotFound)
}

func (s *surveyServiceImpl) AddRuleSet(ctx context.Context, questionID, jumpToID string, inputs []ConditionInput) (*models.RuleSet, error) {
	if len(inputs) == 0 {
		return nil, fault.Invalid("a rule set needs at least one condition")
	}

	q, err := s.repo.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}
	jump, err := s.repo.GetQuestion(ctx, jumpToID)
	if err != nil {
		return nil, err
	}
	if jump.SurveyID != q.SurveyID {
		return nil, foreign("jump target", jump.ID, q.SurveyID)
	}

	unlock := s.locks.Lock(q.SurveyID)
	defer unlock()

	survey, err := s.repo.GetSurvey(ctx, q.SurveyID)
	if err != nil {
		return nil, err
	}
	if survey.Published {
		return nil, published(survey)
	}

	existing, err := s.repo.ListRuleSets(ctx, q.ID)
	if err != nil {
		return nil, err
	}
	index := 0
	for _, rs := range existing {
		if rs.Index >= index {
			index = rs.Index + 1
		}
	}

	rs := &models.RuleSet{
		ID:         s.newID(),
		QuestionID: q.ID,
		JumpToID:   jump.ID,
		Index:      index,
	}
	for i, in := range inputs {
		c, err := s.condition(ctx, q.SurveyID, i, in)
		if err != nil {
			return nil, err
		}
		c.RuleSetID = rs.ID
		rs.Conditions = append(rs.Conditions, c)
	}

	if err := s.repo.CreateRuleSet(ctx, rs); err != nil {
		return nil, fmt.Errorf("create rule set: %w", err)
	}
	s.logger.DebugContext(ctx, "rule set added", "question", q.ID, "jump_to", jump.ID, "index", index, "conditions", len(rs.Conditions))
	return rs, nil
}

// condition checks that in can test its question and builds the row.
func (s *surveyServiceImpl) condition(ctx context.Context, surveyID string, index int, in ConditionInput) (*models.Condition, error) {
	if in.Predicate == nil {
		return nil, fault.Invalid("condition %d has no predicate", index)
	}
	if !models.ValidMatch(in.Predicate) {
		return nil, fault.Invalid("condition %d: %q is not a %s match", index, in.Predicate.Match(), in.Predicate.Kind())
	}

	tested, err := s.repo.GetQuestion(ctx, in.TestedID)
	if err != nil {
		return nil, err
	}
	if tested.SurveyID != surveyID {
		return nil, foreign("tested question", tested.ID, surveyID)
	}
	kind, ok := tested.Type.ConditionKind()
	if !ok || kind != in.Predicate.Kind() {
		return nil, fault.Invalid("condition %d: %s questions cannot be tested by a %s condition", index, tested.Type.Name(), in.Predicate.Kind())
	}

	if p, isChoice := in.Predicate.(models.ChoicePredicate); isChoice {
		choice, err := s.repo.GetChoice(ctx, p.ChoiceID)
		if err != nil {
			return nil, err
		}
		if choice.QuestionID != tested.ID {
			return nil, fault.NewClientError(fmt.Sprintf("choice %s does not belong to question %s", choice.ID, tested.ID), fault.ErrNotFound)
		}
	}

	c := &models.Condition{
		ID:        s.newID(),
		Index:     index,
		TestedID:  tested.ID,
		Predicate: in.Predicate,
	}
	if index > 0 {
		switch in.Operand {
		case models.And, models.Or:
			c.Operand = in.Operand
		default:
			return nil, fault.Invalid("condition %d needs an AND or OR operand", index)
		}
	}
	return c, nil
}

func (s *surveyServiceImpl) DeleteRuleSet(ctx context.Context, id string) error {
	rs, err := s.repo.GetRuleSet(ctx, id)
	if err != nil {
		return err
	}
	q, err := s.repo.GetQuestion(ctx, rs.QuestionID)
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
	return s.repo.DeleteRuleSet(ctx, id)
}

func (s *surveyServiceImpl) RuleSets(ctx context.Context, questionID string) ([]*models.RuleSet, error) {
	return s.repo.ListRuleSets(ctx, questionID)
}
