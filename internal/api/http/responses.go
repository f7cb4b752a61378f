package http

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/paulexconde/surveyrun/internal/models"
	"github.com/paulexconde/surveyrun/internal/services"
	"github.com/paulexconde/surveyrun/pkg/fault"
)

type startResp struct {
	Submission *models.Submission `json:"submission"`
	Question   *models.Question   `json:"question"` // null for an empty survey
}

// POST /surveys/{surveyID}/submissions?preview=true&<hidden field>=<value>
//
// Every query parameter other than preview fills the hidden field of the
// same name.
func StartHandler(responses services.SurveyResponseService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		preview := parseBool(query.Get("preview"))
		hidden := make(map[string]string, len(query))
		for name, values := range query {
			if name == "preview" || len(values) == 0 {
				continue
			}
			hidden[name] = values[0]
		}

		sub, first, err := responses.Start(r.Context(), chi.URLParam(r, "surveyID"), preview, hidden)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, startResp{Submission: sub, Question: first})
	}
}

// GET /surveys/{surveyID}/submissions?page=1&limit=20
func ListSubmissionsHandler(responses services.SurveyResponseService, pageSize int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := parseIntDefault(r.URL.Query().Get("page"), 1)
		limit := parseIntDefault(r.URL.Query().Get("limit"), pageSize)
		list, err := responses.ListSubmissions(r.Context(), chi.URLParam(r, "surveyID"), page, limit)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// GET /submissions/{submissionID}
func GetSubmissionHandler(responses services.SurveyResponseService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub, err := responses.GetSubmission(r.Context(), chi.URLParam(r, "submissionID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, sub)
	}
}

type answerView struct {
	*models.Answer
	Display string `json:"display"`
}

func viewOf(a *models.Answer) *answerView {
	if a == nil {
		return nil
	}
	return &answerView{Answer: a, Display: a.Display()}
}

// GET /submissions/{submissionID}/answers
func ListAnswersHandler(responses services.SurveyResponseService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		answers, err := responses.ListAnswers(r.Context(), chi.URLParam(r, "submissionID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		out := make([]*answerView, 0, len(answers))
		for _, a := range answers {
			out = append(out, viewOf(a))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// GET /submissions/{submissionID}/answers/{questionID}
func GetAnswerHandler(responses services.SurveyResponseService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := responses.GetAnswer(r.Context(), chi.URLParam(r, "questionID"), chi.URLParam(r, "submissionID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		if a == nil {
			writeError(w, r, fault.NewClientError("no answer yet", fault.ErrNotFound))
			return
		}
		writeJSON(w, http.StatusOK, viewOf(a))
	}
}

type stepResp struct {
	Kind     string           `json:"kind"`
	Question *models.Question `json:"question"`
	Answer   *answerView      `json:"answer,omitempty"`
	Error    *errorBody       `json:"error,omitempty"`
}

// POST /submissions/{submissionID}/answers/{questionID}
//
// The answer comes as form values or multipart parts named "answer". A
// rejected answer is 422 with the question to ask again.
func AnswerHandler(responses services.SurveyResponseService, maxUpload int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// room for the multipart envelope on top of the file itself
		r.Body = http.MaxBytesReader(w, r.Body, maxUpload+1<<20)
		raw, files, err := readForm(r, maxUpload)
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Kind: fault.KindOutOfRangeAnswer.String(), Message: err.Error()})
				return
			}
			badRequest(w, "bad form: %v", err)
			return
		}

		step, err := responses.AnswerQuestion(r.Context(), chi.URLParam(r, "submissionID"), chi.URLParam(r, "questionID"), raw, files)
		if err != nil {
			writeError(w, r, err)
			return
		}

		resp := stepResp{Kind: step.Kind.String(), Question: step.Question, Answer: viewOf(step.Answer)}
		status := http.StatusOK
		if step.Kind == services.StepValidationFailed {
			kind := step.ErrorKind()
			resp.Error = &errorBody{Kind: kind.String(), Message: step.Err.Error()}
			status = statusOf(kind)
		}
		writeJSON(w, status, resp)
	}
}

func readForm(r *http.Request, maxUpload int64) (map[string][]string, map[string][]services.Upload, error) {
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		if !errors.Is(err, http.ErrNotMultipart) {
			return nil, nil, err
		}
		// plain urlencoded body or query string
		if err := r.ParseForm(); err != nil {
			return nil, nil, err
		}
		return r.Form, nil, nil
	}
	defer r.MultipartForm.RemoveAll()

	files := make(map[string][]services.Upload, len(r.MultipartForm.File))
	for name, headers := range r.MultipartForm.File {
		for _, fh := range headers {
			u, err := upload(fh)
			if err != nil {
				return nil, nil, err
			}
			files[name] = append(files[name], u)
		}
	}
	return r.Form, files, nil
}

func upload(fh *multipart.FileHeader) (services.Upload, error) {
	f, err := fh.Open()
	if err != nil {
		return services.Upload{}, err
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return services.Upload{}, err
	}
	return services.Upload{Name: fh.Filename, ContentType: fh.Header.Get("Content-Type"), Content: content}, nil
}

// GET /submissions/{submissionID}/fields
func FilledFieldsHandler(responses services.SurveyResponseService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filled, err := responses.FilledFields(r.Context(), chi.URLParam(r, "submissionID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, filled)
	}
}
