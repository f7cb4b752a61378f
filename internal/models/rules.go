package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RuleSet overrides a question's default next question with JumpToID when its
// conditions hold. Rule sets of a question are evaluated by ascending Index.
type RuleSet struct {
	ID         string       `json:"id"`
	QuestionID string       `json:"question_id"`
	JumpToID   string       `json:"jump_to_id"`
	Index      int          `json:"index"`
	Conditions []*Condition `json:"conditions"`
}

// Operand chains a condition onto the result of the conditions before it.
type Operand string

const (
	Or  Operand = "OR"
	And Operand = "AND"
)

type ConditionKind string

const (
	TextCondition    ConditionKind = "T"
	NumberCondition  ConditionKind = "N"
	ChoiceCondition  ConditionKind = "C"
	BooleanCondition ConditionKind = "B"
	DateCondition    ConditionKind = "D"
)

// Condition is a single typed predicate tested against the answer given to
// the TestedID question.
type Condition struct {
	ID        string    `json:"id"`
	RuleSetID string    `json:"ruleset_id"`
	Index     int       `json:"index"`
	TestedID  string    `json:"tested_id"`
	Operand   Operand   `json:"operand,omitempty"` // empty for the first condition of a chain
	Predicate Predicate `json:"predicate"`
}

// Kind returns the kind of the condition's predicate.
func (c *Condition) Kind() ConditionKind {
	if c.Predicate == nil {
		return ""
	}
	return c.Predicate.Kind()
}

func (c *Condition) String() string {
	return fmt.Sprintf("#%d %s %v %s", c.Index, c.Kind(), c.Predicate, c.Operand)
}

// Predicate is the kind-specific part of a Condition.
type Predicate interface {
	Kind() ConditionKind
	Match() string
}

type TextMatch string

const (
	TextEqual          TextMatch = "EQ"
	TextNotEqual       TextMatch = "NEQ"
	TextStartsWith     TextMatch = "SW"
	TextEndsWith       TextMatch = "EW"
	TextContains       TextMatch = "C"
	TextDoesNotContain TextMatch = "DNC"
)

type NumberMatch string

const (
	NumberEqual              NumberMatch = "EQ"
	NumberNotEqual           NumberMatch = "NEQ"
	NumberLowerThan          NumberMatch = "LT"
	NumberLowerThanOrEqual   NumberMatch = "LTOEQ"
	NumberGreaterThan        NumberMatch = "GT"
	NumberGreaterThanOrEqual NumberMatch = "GTOEQ"
)

// IsMatch is shared by the choice and boolean predicates.
type IsMatch string

const (
	Is    IsMatch = "IS"
	IsNot IsMatch = "ISN"
)

type DateMatch string

const (
	DateIsOn         DateMatch = "IS"
	DateIsNotOn      DateMatch = "ISN"
	DateIsBefore     DateMatch = "ISB"
	DateIsBeforeOrOn DateMatch = "ISBOO"
	DateIsAfter      DateMatch = "ISA"
	DateIsAfterOrOn  DateMatch = "ISAOO"
)

type TextPredicate struct {
	Op      TextMatch `json:"match"`
	Pattern string    `json:"pattern"`
}

type NumberPredicate struct {
	Op      NumberMatch     `json:"match"`
	Pattern decimal.Decimal `json:"pattern"`
}

type ChoicePredicate struct {
	Op       IsMatch `json:"match"`
	ChoiceID string  `json:"choice_id"`
}

type BooleanPredicate struct {
	Op    IsMatch `json:"match"`
	Value bool    `json:"boolean"`
}

type DatePredicate struct {
	Op   DateMatch `json:"match"`
	Date time.Time `json:"date"`
}

func (TextPredicate) Kind() ConditionKind    { return TextCondition }
func (NumberPredicate) Kind() ConditionKind  { return NumberCondition }
func (ChoicePredicate) Kind() ConditionKind  { return ChoiceCondition }
func (BooleanPredicate) Kind() ConditionKind { return BooleanCondition }
func (DatePredicate) Kind() ConditionKind    { return DateCondition }

func (p TextPredicate) Match() string    { return string(p.Op) }
func (p NumberPredicate) Match() string  { return string(p.Op) }
func (p ChoicePredicate) Match() string  { return string(p.Op) }
func (p BooleanPredicate) Match() string { return string(p.Op) }
func (p DatePredicate) Match() string    { return string(p.Op) }

var validMatches = map[ConditionKind]map[string]bool{
	TextCondition: {
		string(TextEqual): true, string(TextNotEqual): true, string(TextStartsWith): true,
		string(TextEndsWith): true, string(TextContains): true, string(TextDoesNotContain): true,
	},
	NumberCondition: {
		string(NumberEqual): true, string(NumberNotEqual): true, string(NumberLowerThan): true,
		string(NumberLowerThanOrEqual): true, string(NumberGreaterThan): true, string(NumberGreaterThanOrEqual): true,
	},
	ChoiceCondition:  {string(Is): true, string(IsNot): true},
	BooleanCondition: {string(Is): true, string(IsNot): true},
	DateCondition: {
		string(DateIsOn): true, string(DateIsNotOn): true, string(DateIsBefore): true,
		string(DateIsBeforeOrOn): true, string(DateIsAfter): true, string(DateIsAfterOrOn): true,
	},
}

// ValidMatch reports whether p's operator belongs to its kind.
func ValidMatch(p Predicate) bool {
	return validMatches[p.Kind()][p.Match()]
}

// DecodePredicate decodes a stored predicate payload of the given kind.
func DecodePredicate(kind ConditionKind, data []byte) (Predicate, error) {
	var (
		p   Predicate
		err error
	)
	switch kind {
	case TextCondition:
		var v TextPredicate
		err = json.Unmarshal(data, &v)
		p = v
	case NumberCondition:
		var v NumberPredicate
		err = json.Unmarshal(data, &v)
		p = v
	case ChoiceCondition:
		var v ChoicePredicate
		err = json.Unmarshal(data, &v)
		p = v
	case BooleanCondition:
		var v BooleanPredicate
		err = json.Unmarshal(data, &v)
		p = v
	case DateCondition:
		var v DatePredicate
		err = json.Unmarshal(data, &v)
		p = v
	default:
		return nil, fmt.Errorf("unknown condition kind %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s predicate: %w", kind, err)
	}
	return p, nil
}

func EncodePredicate(p Predicate) ([]byte, error) {
	return json.Marshal(p)
}
