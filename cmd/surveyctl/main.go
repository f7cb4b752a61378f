package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/paulexconde/surveyrun/internal/app"
	"github.com/paulexconde/surveyrun/internal/cli"
	"github.com/paulexconde/surveyrun/internal/config"
	"github.com/paulexconde/surveyrun/internal/logging"
)

func main() {
	// minimal logger until the configured one exists
	slog.SetDefault(logging.Stderr())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Stdin, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		stop()
		if exitErr, ok := err.(*cli.ExitError); ok {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run holds the program so it can be driven from tests. Logs go to logW.
func run(ctx context.Context, in io.Reader, outW, logW io.Writer, args []string) error {
	inv, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	cfg, err := config.Load(inv.EnvFile)
	if err != nil {
		return &cli.ExitError{Code: 2, Message: err.Error()}
	}
	logger, closer := logging.New(cfg, logW)
	defer closer.Close()

	a, err := app.New(ctx, cfg, logger, outW)
	if err != nil {
		return err
	}
	defer a.Close()

	if inv.Command == cli.Load {
		return a.Load(ctx, inv.Definitions...)
	}

	loaded, err := a.LoadDefinitions(ctx, inv.Definitions...)
	if err != nil {
		return err
	}

	switch inv.Command {
	case cli.Serve:
		return a.Serve(ctx, inv.Addr)
	case cli.Run:
		surveyID := inv.SurveyID
		if surveyID == "" {
			if len(loaded) == 0 {
				return &cli.ExitError{Code: 2, Message: "the loaded definitions declare no survey"}
			}
			surveyID = loaded[0].ID
		}
		return a.Run(ctx, surveyID, inv.Preview, in)
	case cli.Replay:
		script, err := app.ReadScript(inv.Script)
		if err != nil {
			return err
		}
		_, err = a.Replay(ctx, script, inv.Workers)
		return err
	}
	return nil
}
