package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/paulexconde/surveyrun/internal/cli"
)

const definition = `
survey "Cone" {
  question "cone" {
    type     = "YN"
    text     = "Cone?"
    required = true
  }
}
`

func writeDefinition(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cone.hcl")
	require.NoError(t, os.WriteFile(path, []byte(definition), 0o600))
	return path
}

func memoryEnv(t *testing.T) {
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("LOG_FILE", "")
}

func TestRun_ShouldExit(t *testing.T) {
	out := &bytes.Buffer{}
	err := run(context.Background(), strings.NewReader(""), out, &bytes.Buffer{}, []string{"-h"})
	require.NoError(t, err, "run() should return a nil error when help is requested")
	require.Contains(t, out.String(), "Usage:")
}

func TestRun_ParseError(t *testing.T) {
	err := run(context.Background(), strings.NewReader(""), &bytes.Buffer{}, &bytes.Buffer{}, []string{"serve", "--port", "1"})
	require.Error(t, err)
	var exitErr *cli.ExitError
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, 2, exitErr.Code)
}

func TestRun_BadConfig(t *testing.T) {
	t.Setenv("DB_DRIVER", "mysql")
	err := run(context.Background(), strings.NewReader(""), &bytes.Buffer{}, &bytes.Buffer{}, []string{"load", "x.hcl"})
	var exitErr *cli.ExitError
	require.ErrorAs(t, err, &exitErr)
	require.Contains(t, exitErr.Message, "unsupported DB_DRIVER")
}

func TestRun_Load(t *testing.T) {
	memoryEnv(t)
	out := &bytes.Buffer{}
	err := run(context.Background(), strings.NewReader(""), out, &bytes.Buffer{}, []string{"load", writeDefinition(t)})
	require.NoError(t, err)
	require.Contains(t, out.String(), "draft\tCone")
}

func TestRun_Interactive(t *testing.T) {
	memoryEnv(t)
	out := &bytes.Buffer{}
	args := []string{"run", "-preview", "-load", writeDefinition(t)}
	err := run(context.Background(), strings.NewReader("maybe\nYes\n"), out, &bytes.Buffer{}, args)
	require.NoError(t, err)
	require.Contains(t, out.String(), "Cone? *")
	require.Contains(t, out.String(), "answer out of range")
	require.Contains(t, out.String(), "completed")
}

func TestRun_Replay(t *testing.T) {
	memoryEnv(t)
	script := filepath.Join(t.TempDir(), "runs.json")
	require.NoError(t, os.WriteFile(script, []byte(`{"runs":[
		{"survey":"Cone","preview":true,"answers":{"Cone?":["No"]}},
		{"survey":"Cone","preview":true,"answers":{"Cone?":["Yes"]}}
	]}`), 0o600))

	out := &bytes.Buffer{}
	args := []string{"replay", "-workers", "2", "-load", writeDefinition(t), script}
	err := run(context.Background(), strings.NewReader(""), out, &bytes.Buffer{}, args)
	require.NoError(t, err)
	require.Equal(t, 2, strings.Count(out.String(), `"completed":true`))
}
