package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

// Commands.
const (
	Serve  = "serve"
	Load   = "load"
	Run    = "run"
	Replay = "replay"
)

// Invocation is a parsed command line.
type Invocation struct {
	Command string
	EnvFile string

	// Definitions are loaded before the command runs. For load they are the
	// command's arguments.
	Definitions []string

	Addr     string // serve, overrides HTTP_ADDR
	SurveyID string // run; empty picks the first loaded survey
	Preview  bool   // run
	Script   string // replay
	Workers  int    // replay, overrides REPLAY_WORKERS when positive
}

const usage = `
surveyctl - build and run surveys.

Usage:
  surveyctl <command> [options] [arguments]

Commands:
  serve   [-addr ADDR] [-load FILE]...          serve the HTTP API
  load    FILE...                                create the surveys of definition files
  run     [-preview] [-load FILE]... [SURVEY_ID] answer a survey on the terminal
  replay  [-workers N] [-load FILE]... SCRIPT    drive scripted respondents concurrently

Options:
`

// files collects a repeatable flag.
type files []string

func (f *files) String() string { return fmt.Sprint(*f) }

func (f *files) Set(v string) error {
	*f = append(*f, v)
	return nil
}

// Parse processes command-line arguments. It returns the invocation, a
// boolean telling the program to exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*Invocation, bool, error) {
	if len(args) == 0 || args[0] == "-h" || args[0] == "-help" || args[0] == "--help" || args[0] == "help" {
		fmt.Fprint(output, usage)
		return nil, true, nil
	}

	inv := &Invocation{Command: args[0]}
	flagSet := flag.NewFlagSet("surveyctl "+inv.Command, flag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.Usage = func() {
		fmt.Fprint(output, usage)
		flagSet.PrintDefaults()
	}
	flagSet.StringVar(&inv.EnvFile, "env", ".env", "Path to an optional .env file.")

	var defs files
	switch inv.Command {
	case Serve:
		flagSet.StringVar(&inv.Addr, "addr", "", "Listen address, overrides HTTP_ADDR.")
		flagSet.Var(&defs, "load", "Definition file to load first. Repeatable.")
	case Load:
	case Run:
		flagSet.BoolVar(&inv.Preview, "preview", false, "Start a preview submission, needed for unpublished surveys.")
		flagSet.Var(&defs, "load", "Definition file to load first. Repeatable.")
	case Replay:
		flagSet.IntVar(&inv.Workers, "workers", 0, "Concurrent respondents, overrides REPLAY_WORKERS.")
		flagSet.Var(&defs, "load", "Definition file to load first. Repeatable.")
	default:
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("unknown command %q, see surveyctl -h", inv.Command)}
	}

	if err := flagSet.Parse(args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	inv.Definitions = defs

	rest := flagSet.Args()
	switch inv.Command {
	case Serve:
		if len(rest) > 0 {
			return nil, false, &ExitError{Code: 2, Message: "serve takes no arguments"}
		}
	case Load:
		if len(rest) == 0 {
			return nil, false, &ExitError{Code: 2, Message: "load needs at least one definition file"}
		}
		inv.Definitions = rest
	case Run:
		if len(rest) > 1 {
			return nil, false, &ExitError{Code: 2, Message: "run takes at most one survey id"}
		}
		if len(rest) == 1 {
			inv.SurveyID = rest[0]
		} else if len(inv.Definitions) == 0 {
			return nil, false, &ExitError{Code: 2, Message: "run needs a survey id or a -load definition"}
		}
	case Replay:
		if len(rest) != 1 {
			return nil, false, &ExitError{Code: 2, Message: "replay needs exactly one script file"}
		}
		inv.Script = rest[0]
		if inv.Workers < 0 {
			return nil, false, &ExitError{Code: 2, Message: "invalid workers: must not be negative"}
		}
	}
	return inv, false, nil
}
