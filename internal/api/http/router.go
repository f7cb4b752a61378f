// Package http is the delivery layer: a JSON API over the survey services
// that drives respondents one question at a time.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/paulexconde/surveyrun/internal/logging"
	"github.com/paulexconde/surveyrun/internal/services"
)

type Deps struct {
	Surveys   services.SurveyService
	Responses services.SurveyResponseService
	Logger    *slog.Logger

	CORSOrigins    []string
	MaxUploadBytes int64
	PageSize       int
}

func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = logging.Discard()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger(d.Logger), middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{"Content-Length"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/question-types", QuestionTypesHandler(d.Surveys))

	r.Route("/surveys", func(sr chi.Router) {
		sr.Post("/", CreateSurveyHandler(d.Surveys))
		sr.Get("/", ListSurveysHandler(d.Surveys))
		sr.Route("/{surveyID}", func(sr chi.Router) {
			sr.Get("/", GetSurveyHandler(d.Surveys))
			sr.Delete("/", DeleteSurveyHandler(d.Surveys))
			sr.Post("/publish", PublishHandler(d.Surveys))
			sr.Get("/questions", OrderedQuestionsHandler(d.Surveys))
			sr.Post("/questions", AddQuestionHandler(d.Surveys))
			sr.Get("/hidden-fields", HiddenFieldsHandler(d.Surveys))
			sr.Post("/hidden-fields", AddHiddenFieldHandler(d.Surveys))
			sr.Post("/submissions", StartHandler(d.Responses))
			sr.Get("/submissions", ListSubmissionsHandler(d.Responses, d.PageSize))
		})
	})

	r.Route("/questions/{questionID}", func(qr chi.Router) {
		qr.Get("/", GetQuestionHandler(d.Surveys))
		qr.Delete("/", DeleteQuestionHandler(d.Surveys))
		qr.Post("/move-up", MoveQuestionHandler(d.Surveys, true))
		qr.Post("/move-down", MoveQuestionHandler(d.Surveys, false))
		qr.Get("/choices", ChoicesHandler(d.Surveys))
		qr.Get("/rule-sets", RuleSetsHandler(d.Surveys))
		qr.Post("/rule-sets", AddRuleSetHandler(d.Surveys))
	})
	r.Delete("/rule-sets/{ruleSetID}", DeleteRuleSetHandler(d.Surveys))

	r.Route("/submissions/{submissionID}", func(sr chi.Router) {
		sr.Get("/", GetSubmissionHandler(d.Responses))
		sr.Get("/fields", FilledFieldsHandler(d.Responses))
		sr.Get("/answers", ListAnswersHandler(d.Responses))
		sr.Get("/answers/{questionID}", GetAnswerHandler(d.Responses))
		sr.Post("/answers/{questionID}", AnswerHandler(d.Responses, d.MaxUploadBytes))
	})

	return r
}

// requestLogger scopes a logger to the request and logs its outcome.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			scoped := logger.With("request_id", middleware.GetReqID(r.Context()))
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r.WithContext(logging.WithLogger(r.Context(), scoped)))

			scoped.InfoContext(r.Context(), "request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
			)
		})
	}
}
