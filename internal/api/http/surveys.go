package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/paulexconde/surveyrun/internal/models"
	"github.com/paulexconde/surveyrun/internal/services"
)

type createSurveyReq struct {
	Name string `json:"name"`
}

// POST /surveys
func CreateSurveyHandler(surveys services.SurveyService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createSurveyReq
		if !decodeJSON(w, r, &req) {
			return
		}
		s, err := surveys.CreateSurvey(r.Context(), req.Name)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, s)
	}
}

// GET /surveys
func ListSurveysHandler(surveys services.SurveyService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := surveys.ListSurveys(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// GET /surveys/{surveyID}
func GetSurveyHandler(surveys services.SurveyService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := surveys.GetSurvey(r.Context(), chi.URLParam(r, "surveyID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

// DELETE /surveys/{surveyID}
func DeleteSurveyHandler(surveys services.SurveyService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := surveys.DeleteSurvey(r.Context(), chi.URLParam(r, "surveyID")); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// POST /surveys/{surveyID}/publish
func PublishHandler(surveys services.SurveyService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := surveys.Publish(r.Context(), chi.URLParam(r, "surveyID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

// GET /question-types
func QuestionTypesHandler(surveys services.SurveyService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, surveys.QuestionTypes())
	}
}

type choiceReq struct {
	Label    string `json:"label"`
	ImageURL string `json:"image_url"`
}

type addQuestionReq struct {
	Type        string          `json:"question_type"`
	Text        string          `json:"question"`
	Description string          `json:"description"`
	Required    bool            `json:"required"`
	Media       models.Media    `json:"media"`
	Parameters  json.RawMessage `json:"parameters"` // type specific, defaults when absent
	Choices     []choiceReq     `json:"choices"`
}

// POST /surveys/{surveyID}/questions
func AddQuestionHandler(surveys services.SurveyService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addQuestionReq
		if !decodeJSON(w, r, &req) {
			return
		}
		t, err := models.ParseQuestionType(strings.TrimSpace(req.Type))
		if err != nil {
			badRequest(w, "%v", err)
			return
		}
		params, err := models.DecodeParameters(t, req.Parameters)
		if err != nil {
			badRequest(w, "%v", err)
			return
		}
		choices := make([]services.ChoiceInput, 0, len(req.Choices))
		for _, c := range req.Choices {
			choices = append(choices, services.ChoiceInput{Label: c.Label, ImageURL: c.ImageURL})
		}

		in := services.QuestionInput{Text: req.Text, Description: req.Description, Required: req.Required, Media: req.Media}
		q, err := surveys.AddQuestion(r.Context(), chi.URLParam(r, "surveyID"), t, in, params, choices)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, q)
	}
}

// GET /surveys/{surveyID}/questions, in traversal order
func OrderedQuestionsHandler(surveys services.SurveyService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qs, err := surveys.OrderedQuestions(r.Context(), chi.URLParam(r, "surveyID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, qs)
	}
}

// GET /questions/{questionID}
func GetQuestionHandler(surveys services.SurveyService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := surveys.GetQuestion(r.Context(), chi.URLParam(r, "questionID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, q)
	}
}

// DELETE /questions/{questionID}
func DeleteQuestionHandler(surveys services.SurveyService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := surveys.DeleteQuestion(r.Context(), chi.URLParam(r, "questionID")); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type moveResp struct {
	Moved bool `json:"moved"`
}

// POST /questions/{questionID}/move-up and /move-down
func MoveQuestionHandler(surveys services.SurveyService, up bool) http.HandlerFunc {
	move := surveys.MoveQuestionDown
	if up {
		move = surveys.MoveQuestionUp
	}
	return func(w http.ResponseWriter, r *http.Request) {
		moved, err := move(r.Context(), chi.URLParam(r, "questionID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, moveResp{Moved: moved})
	}
}

// GET /questions/{questionID}/choices
func ChoicesHandler(surveys services.SurveyService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		choices, err := surveys.Choices(r.Context(), chi.URLParam(r, "questionID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, choices)
	}
}

type hiddenFieldReq struct {
	Name string `json:"name"`
}

// POST /surveys/{surveyID}/hidden-fields
func AddHiddenFieldHandler(surveys services.SurveyService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req hiddenFieldReq
		if !decodeJSON(w, r, &req) {
			return
		}
		f, err := surveys.AddHiddenField(r.Context(), chi.URLParam(r, "surveyID"), req.Name)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, f)
	}
}

// GET /surveys/{surveyID}/hidden-fields
func HiddenFieldsHandler(surveys services.SurveyService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fields, err := surveys.HiddenFields(r.Context(), chi.URLParam(r, "surveyID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, fields)
	}
}

// conditionReq carries its value as a string whatever the kind: text, a
// decimal literal, true or false, a YYYY-MM-DD date or a choice id.
type conditionReq struct {
	TestedID string `json:"tested_id"`
	Operand  string `json:"operand"`
	Match    string `json:"match"`
	Value    string `json:"value"`
}

type addRuleSetReq struct {
	JumpToID   string         `json:"jump_to_id"`
	Conditions []conditionReq `json:"conditions"`
}

// POST /questions/{questionID}/rule-sets
func AddRuleSetHandler(surveys services.SurveyService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addRuleSetReq
		if !decodeJSON(w, r, &req) {
			return
		}
		conds := make([]services.ConditionInput, 0, len(req.Conditions))
		for i, c := range req.Conditions {
			tested, err := surveys.GetQuestion(r.Context(), c.TestedID)
			if err != nil {
				writeError(w, r, err)
				return
			}
			kind, ok := tested.Type.ConditionKind()
			if !ok {
				badRequest(w, "condition %d: %s questions cannot be tested", i, tested.Type.Name())
				return
			}
			p, err := predicate(kind, c.Match, c.Value)
			if err != nil {
				badRequest(w, "condition %d: %v", i, err)
				return
			}
			conds = append(conds, services.ConditionInput{TestedID: c.TestedID, Operand: models.Operand(c.Operand), Predicate: p})
		}

		rs, err := surveys.AddRuleSet(r.Context(), chi.URLParam(r, "questionID"), req.JumpToID, conds)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, rs)
	}
}

func predicate(kind models.ConditionKind, match, value string) (models.Predicate, error) {
	switch kind {
	case models.TextCondition:
		return models.TextPredicate{Op: models.TextMatch(match), Pattern: value}, nil
	case models.NumberCondition:
		d, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil {
			return nil, err
		}
		return models.NumberPredicate{Op: models.NumberMatch(match), Pattern: d}, nil
	case models.BooleanCondition:
		b, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return nil, err
		}
		return models.BooleanPredicate{Op: models.IsMatch(match), Value: b}, nil
	case models.DateCondition:
		d, err := time.Parse(time.DateOnly, strings.TrimSpace(value))
		if err != nil {
			return nil, err
		}
		return models.DatePredicate{Op: models.DateMatch(match), Date: d}, nil
	default:
		return models.ChoicePredicate{Op: models.IsMatch(match), ChoiceID: value}, nil
	}
}

// GET /questions/{questionID}/rule-sets
func RuleSetsHandler(surveys services.SurveyService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := surveys.RuleSets(r.Context(), chi.URLParam(r, "questionID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// DELETE /rule-sets/{ruleSetID}
func DeleteRuleSetHandler(surveys services.SurveyService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := surveys.DeleteRuleSet(r.Context(), chi.URLParam(r, "ruleSetID")); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
