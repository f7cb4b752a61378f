// Package logic evaluates logic-jump rule sets against the answers recorded
// for a submission.
package logic

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/shopspring/decimal"

	"github.com/paulexconde/surveyrun/internal/models"
)

// Environments the predicate programs run against. The pattern is the value
// stored on the condition.
type textEnv struct {
	Answer  string `expr:"answer"`
	Pattern string `expr:"pattern"`
}

type numberEnv struct {
	Answer  decimal.Decimal `expr:"answer"`
	Pattern decimal.Decimal `expr:"pattern"`
}

type choiceEnv struct {
	Answer  []string `expr:"answer"`
	Pattern string   `expr:"pattern"`
}

type booleanEnv struct {
	Answer  bool `expr:"answer"`
	Pattern bool `expr:"pattern"`
}

type dateEnv struct {
	Answer  time.Time `expr:"answer"`
	Pattern time.Time `expr:"pattern"`
}

var sources = map[models.ConditionKind]struct {
	env      any
	programs map[string]string
}{
	models.TextCondition: {textEnv{}, map[string]string{
		string(models.TextEqual):          `answer == pattern`,
		string(models.TextNotEqual):       `answer != pattern`,
		string(models.TextStartsWith):     `answer startsWith pattern`,
		string(models.TextEndsWith):       `answer endsWith pattern`,
		string(models.TextContains):       `answer contains pattern`,
		string(models.TextDoesNotContain): `not (answer contains pattern)`,
	}},
	models.NumberCondition: {numberEnv{}, map[string]string{
		string(models.NumberEqual):              `answer.Cmp(pattern) == 0`,
		string(models.NumberNotEqual):           `answer.Cmp(pattern) != 0`,
		string(models.NumberLowerThan):          `answer.Cmp(pattern) < 0`,
		string(models.NumberLowerThanOrEqual):   `answer.Cmp(pattern) <= 0`,
		string(models.NumberGreaterThan):        `answer.Cmp(pattern) > 0`,
		string(models.NumberGreaterThanOrEqual): `answer.Cmp(pattern) >= 0`,
	}},
	models.ChoiceCondition: {choiceEnv{}, map[string]string{
		string(models.Is):    `pattern in answer`,
		string(models.IsNot): `not (pattern in answer)`,
	}},
	models.BooleanCondition: {booleanEnv{}, map[string]string{
		string(models.Is):    `answer == pattern`,
		string(models.IsNot): `answer != pattern`,
	}},
	models.DateCondition: {dateEnv{}, map[string]string{
		string(models.DateIsOn):         `answer.Equal(pattern)`,
		string(models.DateIsNotOn):      `not answer.Equal(pattern)`,
		string(models.DateIsBefore):     `answer.Before(pattern)`,
		string(models.DateIsBeforeOrOn): `not answer.After(pattern)`,
		string(models.DateIsAfter):      `answer.After(pattern)`,
		string(models.DateIsAfterOrOn):  `not answer.Before(pattern)`,
	}},
}

type programKey struct {
	kind  models.ConditionKind
	match string
}

// ErrUnknownMatch is returned for a condition whose operator does not belong
// to its kind.
var ErrUnknownMatch = errors.New("unknown condition match")

// AnswerLookup returns the submission's answer to a question, or nil.
type AnswerLookup func(questionID string) *models.Answer

// Engine holds the compiled predicate programs. It is safe for concurrent use.
type Engine struct {
	programs map[programKey]*vm.Program
	logger   *slog.Logger
}

// NewEngine compiles every predicate program once.
func NewEngine(logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	e := &Engine{programs: make(map[programKey]*vm.Program), logger: logger}

	for kind, src := range sources {
		for match, code := range src.programs {
			program, err := expr.Compile(code, expr.Env(src.env), expr.AsBool())
			if err != nil {
				return nil, fmt.Errorf("compile %s %s predicate: %w", kind, match, err)
			}
			e.programs[programKey{kind, match}] = program
		}
	}
	return e, nil
}

// Evaluate runs the condition's predicate against an answer. ok is false when
// the answer has no accessor for the condition's kind, or when a null value
// cannot be ordered or searched, in which case the condition does not take
// part in its chain. A null value is never equal to the pattern.
func (e *Engine) Evaluate(c *models.Condition, a *models.Answer) (result, ok bool, err error) {
	if c.Predicate == nil || a == nil || a.Value == nil {
		return false, false, nil
	}

	program, found := e.programs[programKey{c.Kind(), c.Predicate.Match()}]
	if !found {
		return false, false, fmt.Errorf("%w: %s %s", ErrUnknownMatch, c.Kind(), c.Predicate.Match())
	}

	var (
		env any
		st  state
	)
	switch p := c.Predicate.(type) {
	case models.TextPredicate:
		var v string
		v, st = textOf(a.Value)
		env = textEnv{Answer: v, Pattern: p.Pattern}
	case models.NumberPredicate:
		var v decimal.Decimal
		v, st = numberOf(a.Value)
		env = numberEnv{Answer: v, Pattern: p.Pattern}
	case models.ChoicePredicate:
		var v []string
		v, st = choicesOf(a.Value)
		env = choiceEnv{Answer: v, Pattern: p.ChoiceID}
	case models.BooleanPredicate:
		var v bool
		v, st = booleanOf(a.Value)
		env = booleanEnv{Answer: v, Pattern: p.Value}
	case models.DatePredicate:
		var v time.Time
		v, st = dateOf(a.Value)
		env = dateEnv{Answer: v, Pattern: CalendarDate(p.Date)}
	default:
		return false, false, fmt.Errorf("unsupported predicate %T", c.Predicate)
	}

	switch st {
	case noAccessor:
		return false, false, nil
	case null:
		result, ok = nullResult(c.Predicate)
		return result, ok, nil
	}

	output, err := expr.Run(program, env)
	if err != nil {
		return false, false, fmt.Errorf("evaluate condition %s: %w", c.ID, err)
	}

	result, isBool := output.(bool)
	if !isBool {
		return false, false, errors.New("expression did not return a boolean")
	}
	return result, true, nil
}

// EvaluateRuleSet folds the rule set's conditions left to right. The first
// contributing condition seeds the result, each later one combines with it
// through its own operand. Every condition is evaluated; there is no short
// circuit. Conditions with no answer to test are skipped.
func (e *Engine) EvaluateRuleSet(rs *models.RuleSet, answers AnswerLookup) (bool, error) {
	conditions := append([]*models.Condition(nil), rs.Conditions...)
	sort.SliceStable(conditions, func(i, j int) bool { return conditions[i].Index < conditions[j].Index })

	var value *bool
	for _, c := range conditions {
		a := answers(c.TestedID)
		if a == nil {
			e.logger.Debug("condition skipped, no answer", "ruleset", rs.ID, "condition", c.ID, "tested", c.TestedID)
			continue
		}

		current, ok, err := e.Evaluate(c, a)
		if err != nil {
			return false, err
		}
		if !ok {
			e.logger.Debug("condition skipped, no comparable value", "ruleset", rs.ID, "condition", c.ID)
			continue
		}
		e.logger.Debug("condition evaluated", "ruleset", rs.ID, "condition", c.ID, "result", current)

		if value == nil {
			value = &current
			continue
		}
		var combined bool
		if c.Operand == models.Or {
			combined = *value || current
		} else {
			combined = *value && current
		}
		value = &combined
	}
	return value != nil && *value, nil
}

// Next resolves the successor of q. Rule sets are tried by ascending index and
// the first one that holds wins. Without a match the default pointer is used.
func (e *Engine) Next(q *models.Question, ruleSets []*models.RuleSet, answers AnswerLookup) (string, error) {
	if len(ruleSets) == 0 {
		return q.NextID, nil
	}

	ordered := append([]*models.RuleSet(nil), ruleSets...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	for _, rs := range ordered {
		match, err := e.EvaluateRuleSet(rs, answers)
		if err != nil {
			return "", err
		}
		if match {
			e.logger.Debug("logic jump", "question", q.ID, "ruleset", rs.ID, "jump_to", rs.JumpToID)
			return rs.JumpToID, nil
		}
	}

	e.logger.Debug("no rule set matched, using default", "question", q.ID, "next", q.NextID)
	return q.NextID, nil
}
