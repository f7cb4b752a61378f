package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/paulexconde/surveyrun/internal/models"
	"github.com/paulexconde/surveyrun/internal/pkg/workerpool"
	"github.com/paulexconde/surveyrun/internal/services"
	"github.com/paulexconde/surveyrun/pkg/fault"
)

const (
	replayAttempts = 3
	replayDelay    = 100 * time.Millisecond
	// maxSteps stops runs whose rules keep jumping backwards.
	maxSteps = 1000
)

// Script is a replay file: scripted respondents, each going through one
// survey.
type Script struct {
	Runs []ScriptedRun `json:"runs"`
}

// ScriptedRun answers questions by their text. Choices may be given by
// label. A question without an entry gets a blank answer.
type ScriptedRun struct {
	Survey  string              `json:"survey"` // id or name
	Preview bool                `json:"preview"`
	Hidden  map[string]string   `json:"hidden"`
	Answers map[string][]string `json:"answers"`
}

type RunResult struct {
	Index        int      `json:"index"`
	SubmissionID string   `json:"submission_id,omitempty"`
	Path         []string `json:"path"`
	Completed    bool     `json:"completed"`
	Error        string   `json:"error,omitempty"`
}

func ReadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	var s Script
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode script %s: %w", path, err)
	}
	return &s, nil
}

// Replay drives every run of the script on a worker pool and writes one JSON
// line per run, in script order. Runs failing on internal errors are retried
// from a fresh submission.
func (a *App) Replay(ctx context.Context, script *Script, workers int) ([]RunResult, error) {
	if workers <= 0 {
		workers = a.cfg.ReplayWorkers
	}
	surveyIDs, err := a.surveyIDs(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]RunResult, len(script.Runs))
	pool := workerpool.NewWorkerPool(ctx, workers, len(script.Runs), a.logger)
	for i, run := range script.Runs {
		job := func(ctx context.Context) error {
			res, err := a.replayOne(ctx, surveyIDs, run)
			if fault.KindOf(err) == fault.KindInternal {
				return err
			}
			res.Index = i
			if err != nil {
				res.Error = err.Error()
			}
			results[i] = res
			return nil
		}
		onFailure := func(err error) {
			results[i] = RunResult{Index: i, Error: err.Error()}
		}
		if err := pool.Submit(workerpool.WithRetry(a.logger, replayAttempts, replayDelay, job, onFailure)); err != nil {
			return nil, err
		}
	}
	if err := pool.Shutdown(ctx); err != nil {
		return nil, err
	}

	failed := 0
	enc := json.NewEncoder(a.outW)
	for _, res := range results {
		if !res.Completed {
			failed++
		}
		if err := enc.Encode(res); err != nil {
			return results, err
		}
	}
	a.logger.Info("replay finished", "runs", len(results), "failed", failed, "workers", workers)
	if failed > 0 {
		return results, fmt.Errorf("%d of %d runs did not complete", failed, len(results))
	}
	return results, nil
}

// surveyIDs resolves survey names and ids to ids.
func (a *App) surveyIDs(ctx context.Context) (map[string]string, error) {
	list, err := a.Surveys.ListSurveys(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, 2*len(list))
	for _, s := range list {
		out[s.Name] = s.ID
	}
	for _, s := range list {
		out[s.ID] = s.ID
	}
	return out, nil
}

func (a *App) replayOne(ctx context.Context, surveyIDs map[string]string, run ScriptedRun) (RunResult, error) {
	res := RunResult{Path: []string{}}
	surveyID, ok := surveyIDs[run.Survey]
	if !ok {
		return res, fault.NewClientError(fmt.Sprintf("survey %q", run.Survey), fault.ErrNotFound)
	}

	sub, q, err := a.Responses.Start(ctx, surveyID, run.Preview, run.Hidden)
	if err != nil {
		return res, err
	}
	res.SubmissionID = sub.ID

	for step := 0; q != nil; step++ {
		if step == maxSteps {
			return res, fault.Invalid("run did not complete after %d answers", maxSteps)
		}
		res.Path = append(res.Path, q.Text)

		values, err := a.scripted(ctx, q, run.Answers[q.Text])
		if err != nil {
			return res, err
		}
		next, err := a.Responses.AnswerQuestion(ctx, sub.ID, q.ID, map[string][]string{services.AnswerField: values}, nil)
		if err != nil {
			return res, err
		}
		switch next.Kind {
		case services.StepValidationFailed:
			return res, fmt.Errorf("question %q: %w", q.Text, next.Err)
		case services.StepCompleted:
			if next.Question != nil {
				res.Path = append(res.Path, next.Question.Text)
			}
			q = nil
		default:
			q = next.Question
		}
	}
	res.Completed = true
	return res, nil
}

// scripted swaps choice labels for choice ids. Other values are kept, so
// they can still fill an "other" answer.
func (a *App) scripted(ctx context.Context, q *models.Question, values []string) ([]string, error) {
	if !q.Type.HasChoices() || len(values) == 0 {
		return values, nil
	}
	choices, err := a.Surveys.Choices(ctx, q.ID)
	if err != nil {
		return nil, err
	}
	byLabel := make(map[string]string, len(choices))
	for _, c := range choices {
		byLabel[c.Label] = c.ID
	}
	out := make([]string, len(values))
	for i, v := range values {
		if id, ok := byLabel[v]; ok {
			v = id
		}
		out[i] = v
	}
	return out, nil
}
