package http

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paulexconde/surveyrun/internal/logic"
	"github.com/paulexconde/surveyrun/internal/models"
	"github.com/paulexconde/surveyrun/internal/repository/memory"
	"github.com/paulexconde/surveyrun/internal/services"
	"github.com/paulexconde/surveyrun/pkg/fault"
)

const maxUpload = 16

func newServer(t *testing.T) http.Handler {
	t.Helper()
	repo := memory.New()
	engine, err := logic.NewEngine(nil)
	require.NoError(t, err)
	clock := services.WithClock(func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) })

	recorder := services.NewAnswerRecorder(repo, clock, services.WithMaxUploadBytes(maxUpload))
	return NewRouter(Deps{
		Surveys:        services.NewSurveyService(repo, clock),
		Responses:      services.NewSurveyResponseService(repo, recorder, engine, clock),
		CORSOrigins:    []string{"*"},
		MaxUploadBytes: maxUpload,
		PageSize:       2,
	})
}

func send(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func sendForm(t *testing.T, h http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type idResp struct {
	ID string `json:"id"`
}

type stepBody struct {
	Kind     string `json:"kind"`
	Question *struct {
		ID   string `json:"id"`
		Text string `json:"question"`
	} `json:"question"`
	Answer *struct {
		Display string `json:"display"`
	} `json:"answer"`
	Error *errorBody `json:"error"`
}

func createSurvey(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := send(t, h, http.MethodPost, "/surveys", map[string]any{"name": "Ice cream"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[idResp](t, rec).ID
}

func addQuestion(t *testing.T, h http.Handler, surveyID string, body map[string]any) string {
	t.Helper()
	rec := send(t, h, http.MethodPost, "/surveys/"+surveyID+"/questions", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[idResp](t, rec).ID
}

func TestRespondentFlow(t *testing.T) {
	h := newServer(t)
	surveyID := createSurvey(t, h)

	cone := addQuestion(t, h, surveyID, map[string]any{"question_type": "YN", "question": "Cone?", "required": true})
	scoops := addQuestion(t, h, surveyID, map[string]any{
		"question_type": "N_",
		"question":      "How many scoops?",
		"parameters":    map[string]any{"enable_min": true, "min_value": "1"},
	})
	bye := addQuestion(t, h, surveyID, map[string]any{"question_type": "TS", "question": "Thanks!"})

	rec := send(t, h, http.MethodPost, "/questions/"+cone+"/rule-sets", map[string]any{
		"jump_to_id": bye,
		"conditions": []map[string]any{{"tested_id": cone, "match": "IS", "value": "false"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = send(t, h, http.MethodPost, "/surveys/"+surveyID+"/hidden-fields", map[string]any{"name": "store"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = send(t, h, http.MethodPost, "/surveys/"+surveyID+"/publish", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = send(t, h, http.MethodPost, "/surveys/"+surveyID+"/submissions?store=paris", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	start := decode[struct {
		Submission idResp `json:"submission"`
		Question   idResp `json:"question"`
	}](t, rec)
	assert.Equal(t, cone, start.Question.ID)
	subID := start.Submission.ID

	rec = send(t, h, http.MethodGet, "/submissions/"+subID+"/fields", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"value":"paris"`)

	// required and blank
	rec = sendForm(t, h, "/submissions/"+subID+"/answers/"+cone, url.Values{"answer": {" "}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	step := decode[stepBody](t, rec)
	assert.Equal(t, "ValidationFailed", step.Kind)
	assert.Equal(t, "MissingRequiredAnswer", step.Error.Kind)
	assert.Equal(t, cone, step.Question.ID)

	rec = sendForm(t, h, "/submissions/"+subID+"/answers/"+cone, url.Values{"answer": {"Yes"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	step = decode[stepBody](t, rec)
	assert.Equal(t, "Continue", step.Kind)
	assert.Equal(t, scoops, step.Question.ID)
	assert.Equal(t, "Yes", step.Answer.Display)

	rec = sendForm(t, h, "/submissions/"+subID+"/answers/"+scoops, url.Values{"answer": {"0"}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "OutOfRangeAnswer", decode[stepBody](t, rec).Error.Kind)

	rec = sendForm(t, h, "/submissions/"+subID+"/answers/"+scoops, url.Values{"answer": {"2"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	step = decode[stepBody](t, rec)
	assert.Equal(t, "Completed", step.Kind)
	assert.Equal(t, bye, step.Question.ID)

	rec = sendForm(t, h, "/submissions/"+subID+"/answers/"+scoops, url.Values{"answer": {"3"}})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "SubmissionCompleted", decode[errorBody](t, rec).Kind)

	rec = send(t, h, http.MethodGet, "/submissions/"+subID+"/answers", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	answers := decode[[]struct {
		QuestionID string `json:"question_id"`
		Display    string `json:"display"`
	}](t, rec)
	require.Len(t, answers, 2)
	assert.Equal(t, "2", answers[1].Display)

	rec = send(t, h, http.MethodGet, "/submissions/"+subID+"/answers/"+bye, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLogicJumpOverHTTP(t *testing.T) {
	h := newServer(t)
	surveyID := createSurvey(t, h)
	cone := addQuestion(t, h, surveyID, map[string]any{"question_type": "YN", "question": "Cone?"})
	addQuestion(t, h, surveyID, map[string]any{"question_type": "ST", "question": "Why?"})
	bye := addQuestion(t, h, surveyID, map[string]any{"question_type": "TS", "question": "Thanks!"})

	rec := send(t, h, http.MethodPost, "/questions/"+cone+"/rule-sets", map[string]any{
		"jump_to_id": bye,
		"conditions": []map[string]any{{"tested_id": cone, "match": "IS", "value": "false"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = send(t, h, http.MethodPost, "/surveys/"+surveyID+"/submissions?preview=true", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	subID := decode[struct {
		Submission idResp `json:"submission"`
	}](t, rec).Submission.ID

	rec = sendForm(t, h, "/submissions/"+subID+"/answers/"+cone, url.Values{"answer": {"No"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	step := decode[stepBody](t, rec)
	assert.Equal(t, "Completed", step.Kind)
	assert.Equal(t, bye, step.Question.ID)
}

func TestAuthoring(t *testing.T) {
	h := newServer(t)
	surveyID := createSurvey(t, h)
	a := addQuestion(t, h, surveyID, map[string]any{"question_type": "ST", "question": "A"})
	addQuestion(t, h, surveyID, map[string]any{"question_type": "ST", "question": "B"})
	mc := addQuestion(t, h, surveyID, map[string]any{
		"question_type": "MC",
		"question":      "Flavour",
		"choices":       []map[string]any{{"label": "Vanilla"}, {"label": "Chocolate"}},
	})

	rec := send(t, h, http.MethodPost, "/questions/"+mc+"/move-up", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[moveResp](t, rec).Moved)
	rec = send(t, h, http.MethodPost, "/questions/"+a+"/move-up", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[moveResp](t, rec).Moved)

	rec = send(t, h, http.MethodGet, "/surveys/"+surveyID+"/questions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decode[[]struct {
		Text string `json:"question"`
	}](t, rec)
	var texts []string
	for _, q := range listed {
		texts = append(texts, q.Text)
	}
	assert.Equal(t, []string{"A", "Flavour", "B"}, texts)

	rec = send(t, h, http.MethodGet, "/questions/"+mc+"/choices", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	choices := decode[[]models.Choice](t, rec)
	require.Len(t, choices, 2)

	rec = send(t, h, http.MethodPost, "/questions/"+mc+"/rule-sets", map[string]any{
		"jump_to_id": a,
		"conditions": []map[string]any{{"tested_id": mc, "match": "IS", "value": choices[1].ID}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	ruleSetID := decode[idResp](t, rec).ID

	rec = send(t, h, http.MethodDelete, "/rule-sets/"+ruleSetID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = send(t, h, http.MethodGet, "/questions/"+mc+"/rule-sets", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]idResp](t, rec))

	rec = send(t, h, http.MethodDelete, "/questions/"+a, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = send(t, h, http.MethodGet, "/questions/"+a, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = send(t, h, http.MethodGet, "/question-types", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"P_"`)
}

func TestErrorMapping(t *testing.T) {
	h := newServer(t)
	surveyID := createSurvey(t, h)
	q := addQuestion(t, h, surveyID, map[string]any{"question_type": "ST", "question": "A"})

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		kind   string
	}{
		{"unknown survey", http.MethodGet, "/surveys/missing", nil, http.StatusNotFound, "NotFound"},
		{"blank name", http.MethodPost, "/surveys", map[string]any{"name": " "}, http.StatusBadRequest, "InvalidInput"},
		{"unknown field", http.MethodPost, "/surveys", map[string]any{"title": "x"}, http.StatusBadRequest, "InvalidInput"},
		{"unknown type", http.MethodPost, "/surveys/" + surveyID + "/questions", map[string]any{"question_type": "ZZ", "question": "x"}, http.StatusBadRequest, "InvalidInput"},
		{"bad parameters", http.MethodPost, "/surveys/" + surveyID + "/questions", map[string]any{"question_type": "R_", "question": "x", "parameters": map[string]any{"number_of_steps": "five"}}, http.StatusBadRequest, "InvalidInput"},
		{"bad match", http.MethodPost, "/questions/" + q + "/rule-sets", map[string]any{"jump_to_id": q, "conditions": []map[string]any{{"tested_id": q, "match": "GT", "value": "1"}}}, http.StatusBadRequest, "InvalidInput"},
		{"unpublished without preview", http.MethodPost, "/surveys/" + surveyID + "/submissions", nil, http.StatusNotFound, "NotFound"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := send(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.kind, decode[errorBody](t, rec).Kind)
		})
	}

	rec := send(t, h, http.MethodPost, "/surveys/"+surveyID+"/publish", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = send(t, h, http.MethodPost, "/surveys/"+surveyID+"/questions", map[string]any{"question_type": "ST", "question": "late"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "StructuralViolation", decode[errorBody](t, rec).Kind)
}

func TestFileUpload(t *testing.T) {
	h := newServer(t)
	surveyID := createSurvey(t, h)
	q := addQuestion(t, h, surveyID, map[string]any{"question_type": "FU", "question": "Receipt"})

	upload := func(subID, content string) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		part, err := mw.CreateFormFile("answer", "receipt.txt")
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/submissions/"+subID+"/answers/"+q, &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}
	start := func() string {
		rec := send(t, h, http.MethodPost, "/surveys/"+surveyID+"/submissions?preview=1", nil)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		return decode[struct {
			Submission idResp `json:"submission"`
		}](t, rec).Submission.ID
	}

	rec := upload(start(), strings.Repeat("x", maxUpload+1))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "OutOfRangeAnswer", decode[stepBody](t, rec).Error.Kind)

	rec = upload(start(), "abc")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Completed", decode[stepBody](t, rec).Kind)
	assert.Contains(t, rec.Body.String(), "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad")
}

func TestListSubmissionsPages(t *testing.T) {
	h := newServer(t)
	surveyID := createSurvey(t, h)
	addQuestion(t, h, surveyID, map[string]any{"question_type": "ST", "question": "A"})
	for range 3 {
		rec := send(t, h, http.MethodPost, "/surveys/"+surveyID+"/submissions?preview=true", nil)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := send(t, h, http.MethodGet, "/surveys/"+surveyID+"/submissions?page=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[struct {
		Items       []idResp `json:"items"`
		CurrentPage int      `json:"current_page"`
		TotalPages  int      `json:"total_pages"`
		TotalItems  int      `json:"total_items"`
	}](t, rec)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, 2, page.CurrentPage)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, 3, page.TotalItems)
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err      error
		expected int
	}{
		{fault.Missing("x"), http.StatusUnprocessableEntity},
		{fault.OutOfRange("x"), http.StatusUnprocessableEntity},
		{fault.NewClientError("x", fault.ErrNotFound), http.StatusNotFound},
		{fault.NewClientError("x", fault.ErrStructuralViolation), http.StatusConflict},
		{fault.ErrSubmissionCompleted, http.StatusConflict},
		{fault.Invalid("x"), http.StatusBadRequest},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, statusOf(fault.KindOf(tt.err)), tt.err.Error())
	}
}

func TestHealthAndCORS(t *testing.T) {
	h := newServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
