package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/paulexconde/surveyrun/internal/models"
	"github.com/paulexconde/surveyrun/internal/services"
)

// ErrInputClosed is returned by Run when the input ends mid survey.
var ErrInputClosed = errors.New("input closed before the survey was completed")

// Run answers a survey interactively, one line of input per question.
// Choices are picked by number, several of them separated by commas.
func (a *App) Run(ctx context.Context, surveyID string, preview bool, in io.Reader) error {
	sub, q, err := a.Responses.Start(ctx, surveyID, preview, nil)
	if err != nil {
		return err
	}
	scanner := bufio.NewScanner(in)

	for q != nil {
		var choices []*models.Choice
		if q.Type.HasChoices() {
			if choices, err = a.Surveys.Choices(ctx, q.ID); err != nil {
				return err
			}
		}
		a.prompt(q, choices)

		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return err
			}
			return ErrInputClosed
		}
		raw, files, err := input(q, choices, scanner.Text())
		if err != nil {
			fmt.Fprintf(a.outW, "  ! %v\n", err)
			continue
		}

		step, err := a.Responses.AnswerQuestion(ctx, sub.ID, q.ID, raw, files)
		if err != nil {
			return err
		}
		switch step.Kind {
		case services.StepValidationFailed:
			fmt.Fprintf(a.outW, "  ! %v\n", step.Err)
		case services.StepCompleted:
			if step.Question != nil {
				fmt.Fprintf(a.outW, "\n%s\n", step.Question.Text)
			}
			q = nil
		default:
			q = step.Question
		}
	}

	fmt.Fprintf(a.outW, "submission %s completed\n", sub.ID)
	return nil
}

func (a *App) prompt(q *models.Question, choices []*models.Choice) {
	mark := ""
	if q.Required {
		mark = " *"
	}
	fmt.Fprintf(a.outW, "\n%s%s\n", q.Text, mark)
	if q.Description != "" {
		fmt.Fprintf(a.outW, "%s\n", q.Description)
	}
	for i, c := range choices {
		fmt.Fprintf(a.outW, "  %d) %s\n", i+1, c.Label)
	}
	switch q.Type {
	case models.WelcomeScreen, models.Statement:
		fmt.Fprint(a.outW, "[enter] ")
	case models.FileUpload:
		fmt.Fprint(a.outW, "file> ")
	default:
		fmt.Fprint(a.outW, "> ")
	}
}

// input turns a line into the form values and files AnswerQuestion expects.
func input(q *models.Question, choices []*models.Choice, line string) (map[string][]string, map[string][]services.Upload, error) {
	switch {
	case q.Type == models.FileUpload:
		path := strings.TrimSpace(line)
		if path == "" {
			return nil, nil, nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, err
		}
		upload := services.Upload{
			Name:        filepath.Base(path),
			ContentType: mime.TypeByExtension(filepath.Ext(path)),
			Content:     content,
		}
		return nil, map[string][]services.Upload{services.AnswerField: {upload}}, nil
	case len(choices) > 0:
		var values []string
		for _, tok := range strings.Split(line, ",") {
			tok = strings.TrimSpace(tok)
			if n, err := strconv.Atoi(tok); err == nil && n >= 1 && n <= len(choices) {
				tok = choices[n-1].ID
			}
			if tok != "" {
				values = append(values, tok)
			}
		}
		return map[string][]string{services.AnswerField: values}, nil, nil
	default:
		return map[string][]string{services.AnswerField: {line}}, nil, nil
	}
}
