package main

import (
	"context"
	"errors"
	"testing"

	"github.com/urfave/cli/v3"

	"github.com/starford/jera/internal"
)

func TestAction_ReportsCloseError(t *testing.T) {
	errClose := errors.New("disk full")
	ran := false
	run := func(context.Context, ...internal.Option) error {
		ran = true
		return nil
	}
	failingClose := func(*cli.Command) ([]internal.Option, func() error, error) {
		return nil, func() error { return errClose }, nil
	}

	err := action(run, failingClose)(context.Background(), &cli.Command{})
	if !ran {
		t.Fatal("command did not run")
	}
	if !errors.Is(err, errClose) {
		t.Errorf("err = %v, want close error", err)
	}
}

func TestAction_RunErrorWinsOverCloseError(t *testing.T) {
	errRun := errors.New("boom")
	run := func(context.Context, ...internal.Option) error { return errRun }
	closed := false
	opts := func(*cli.Command) ([]internal.Option, func() error, error) {
		return nil, func() error { closed = true; return errors.New("close") }, nil
	}

	err := action(run, opts)(context.Background(), &cli.Command{})
	if !errors.Is(err, errRun) {
		t.Errorf("err = %v, want run error", err)
	}
	if !closed {
		t.Error("output not closed after failed run")
	}
}
