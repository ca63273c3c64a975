// Command pricesentry fetches market prices for the tracked ticker universe,
// evaluates analyst ranges and emails the resulting trade alerts.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata" // market timezone on hosts without zoneinfo

	"github.com/aristath/pricesentry/internal/domain"
)

// Exit codes
const (
	exitOK        = 0
	exitFailure   = 1 // configuration or setup failure
	exitNoTickers = 2 // the ticker universe is empty
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

func execute(ctx context.Context, args []string) int {
	root := newRootCmd()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(root.ErrOrStderr(), "Error: %v\n", err)
	}
	return exitCode(err)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, domain.ErrNoTickers):
		return exitNoTickers
	}
	return exitFailure
}
