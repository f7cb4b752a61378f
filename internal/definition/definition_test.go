package definition

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paulexconde/surveyrun/internal/models"
	"github.com/paulexconde/surveyrun/internal/repository/memory"
	"github.com/paulexconde/surveyrun/internal/services"
)

func TestParseFile(t *testing.T) {
	f, err := ParseFile("testdata/icecream.hcl")
	require.NoError(t, err)
	require.Len(t, f.Surveys, 1)

	s := f.Surveys[0]
	assert.Equal(t, "Ice cream", s.Name)
	assert.True(t, s.Publish)
	assert.Equal(t, []string{"utm_source", "store"}, s.HiddenFields)
	require.Len(t, s.Questions, 7)

	flavour := s.Questions[1]
	assert.Equal(t, "flavour", flavour.Key)
	assert.Equal(t, "MC", flavour.Type)
	assert.True(t, flavour.Required)
	require.Len(t, flavour.Choices, 3)
	assert.Equal(t, "https://example.com/strawberry.jpg", flavour.Choices[2].ImageURL)
	require.Len(t, flavour.Rules, 1)
	assert.Len(t, flavour.Rules[0].Conditions, 2)
}

func TestParseFileMissing(t *testing.T) {
	_, err := ParseFile("testdata/nope.hcl")
	assert.Error(t, err)
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		src  string
		msg  string
	}{
		{"syntax", `survey "x" {`, "failed to parse"},
		{"missing type", `survey "x" {
			question "a" {
				text = "A"
			}
		}`, "failed to decode"},
		{"duplicate key", `survey "x" {
			question "a" {
				type = "ST"
				text = "A"
			}
			question "a" {
				type = "ST"
				text = "B"
			}
		}`, "duplicate question"},
		{"unknown jump", `survey "x" {
			question "a" {
				type = "YN"
				text = "A"
				rule {
					jump_to = "b"
					condition {
						tested = "a"
						match  = "IS"
						value  = true
					}
				}
			}
		}`, "unknown question \"b\""},
		{"unknown tested", `survey "x" {
			question "a" {
				type = "YN"
				text = "A"
				rule {
					jump_to = "a"
					condition {
						tested = "z"
						match  = "IS"
						value  = true
					}
				}
			}
		}`, "tests unknown question"},
		{"rule without condition", `survey "x" {
			question "a" {
				type = "YN"
				text = "A"
				rule {
					jump_to = "a"
				}
			}
		}`, "no condition"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("test.hcl", []byte(tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func newLoader(t *testing.T) (*Loader, services.SurveyService) {
	t.Helper()
	surveys := services.NewSurveyService(memory.New())
	return NewLoader(surveys, nil), surveys
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	f, err := ParseFile("testdata/icecream.hcl")
	require.NoError(t, err)

	loader, surveys := newLoader(t)
	loaded, err := loader.Load(ctx, f)
	require.NoError(t, err)
	require.Len(t, loaded, 1)

	s := loaded[0]
	assert.True(t, s.Published)

	qs, err := surveys.OrderedQuestions(ctx, s.ID)
	require.NoError(t, err)
	var types []models.QuestionType
	for _, q := range qs {
		types = append(types, q.Type)
	}
	assert.Equal(t, []models.QuestionType{
		models.WelcomeScreen, models.MultipleChoice, models.YesNo, models.Number,
		models.Rating, models.Date, models.ThankYouScreen,
	}, types)

	welcome := qs[0]
	assert.Equal(t, "Let's go", welcome.Parameters.(*models.WelcomeParameters).ButtonLabel)
	assert.Equal(t, models.Stack, welcome.Media.Orientation)

	mc := qs[1].Parameters.(*models.MultipleChoiceParameters)
	assert.True(t, mc.OtherOption)
	assert.False(t, mc.MultipleSelection)

	number := qs[3].Parameters.(*models.NumberParameters)
	assert.True(t, number.EnableMin)
	assert.True(t, number.MinValue.Decimal.Equal(decimal.NewFromInt(1)))
	assert.True(t, number.MaxValue.Decimal.Equal(decimal.NewFromInt(5)))

	rating := qs[4].Parameters.(*models.RatingParameters)
	assert.Equal(t, 10, rating.NumberOfSteps)
	assert.Equal(t, models.Hearts, rating.Shape)

	date := qs[5].Parameters.(*models.DateParameters)
	assert.Equal(t, "DD-MM-YYYY", date.Format())

	choices, err := surveys.Choices(ctx, qs[1].ID)
	require.NoError(t, err)
	rules, err := surveys.RuleSets(ctx, qs[1].ID)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, qs[3].ID, rules[0].JumpToID)
	require.Len(t, rules[0].Conditions, 2)
	assert.Equal(t, models.ChoicePredicate{Op: models.Is, ChoiceID: choices[1].ID}, rules[0].Conditions[0].Predicate)
	assert.Equal(t, models.Or, rules[0].Conditions[1].Operand)

	rules, err = surveys.RuleSets(ctx, qs[4].ID)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	p := rules[0].Conditions[0].Predicate.(models.NumberPredicate)
	assert.Equal(t, models.NumberGreaterThan, p.Op)
	assert.True(t, p.Pattern.Equal(decimal.NewFromInt(3)))

	fields, err := surveys.HiddenFields(ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, fields, 2)
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		src  string
		msg  string
	}{
		{"unknown type", `survey "x" {
			question "a" {
				type = "ZZ"
				text = "A"
			}
		}`, "unknown question type"},
		{"parameters not an object", `survey "x" {
			question "a" {
				type       = "R_"
				text       = "A"
				parameters = "five"
			}
		}`, "must be an object"},
		{"unknown choice", `survey "x" {
			question "a" {
				type = "MC"
				text = "A"
				choice "Small" {}
				rule {
					jump_to = "a"
					condition {
						tested = "a"
						match  = "IS"
						value  = "Large"
					}
				}
			}
		}`, "no choice \"Large\""},
		{"bad date", `survey "x" {
			question "a" {
				type = "D_"
				text = "A"
				rule {
					jump_to = "a"
					condition {
						tested = "a"
						match  = "ISB"
						value  = "next week"
					}
				}
			}
		}`, "not a YYYY-MM-DD date"},
		{"untestable", `survey "x" {
			question "a" {
				type = "S_"
				text = "A"
				rule {
					jump_to = "a"
					condition {
						tested = "a"
						match  = "EQ"
						value  = "x"
					}
				}
			}
		}`, "cannot be tested"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Parse("test.hcl", []byte(tt.src))
			require.NoError(t, err)

			loader, _ := newLoader(t)
			_, err = loader.Load(context.Background(), f)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}
