package memory

import (
	"github.com/paulexconde/surveyrun/internal/models"
)

func cloneSurvey(s *models.Survey) *models.Survey {
	out := *s
	if s.PublishedAt != nil {
		at := *s.PublishedAt
		out.PublishedAt = &at
	}
	return &out
}

func cloneSubmission(s *models.Submission) *models.Submission {
	out := *s
	if s.CompletedAt != nil {
		at := *s.CompletedAt
		out.CompletedAt = &at
	}
	return &out
}

// Parameters and answer values are variant payloads behind an interface, so
// they are copied through their stored encoding.

func cloneQuestion(q *models.Question) (*models.Question, error) {
	out := *q
	if q.Parameters != nil {
		data, err := models.EncodeParameters(q.Parameters)
		if err != nil {
			return nil, err
		}
		if out.Parameters, err = models.DecodeParameters(q.Parameters.QuestionType(), data); err != nil {
			return nil, err
		}
	}
	return &out, nil
}

func cloneAnswer(a *models.Answer) (*models.Answer, error) {
	out := *a
	if a.Value != nil {
		data, err := models.EncodeAnswerValue(a.Value)
		if err != nil {
			return nil, err
		}
		if out.Value, err = models.DecodeAnswerValue(a.Value.QuestionType(), data); err != nil {
			return nil, err
		}
	}
	return &out, nil
}
