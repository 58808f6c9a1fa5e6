// cmd/pale3/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/bogdanrbucur/pal-e3/cmd"
	"github.com/bogdanrbucur/pal-e3/internal/observability"
)

const panicLogFile = "panic.log"

// Function variables swapped out in tests.
var (
	osWriteFile = os.WriteFile
	osExit      = os.Exit
)

func main() {
	defer handlePanic()
	osExit(run())
}

func run() int {
	// Ctrl+C cancels the running flow; deferred teardown still closes its browsers.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return exitCode(cmd.Execute(ctx))
}

// exitCode maps a command error to the process exit status. A user
// interrupt is a graceful exit.
func exitCode(err error) int {
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return 0
	default:
		return 1
	}
}

// handlePanic writes the panic and its stack to panicLogFile and exits 1.
func handlePanic() {
	r := recover()
	if r == nil {
		return
	}
	observability.Sync()

	panicMessage := fmt.Sprintf("panic: %v\n\n%s", r, debug.Stack())
	if err := osWriteFile(panicLogFile, []byte(panicMessage), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: Failed to write panic log: %v\n", err)
		fmt.Fprintf(os.Stderr, "Panic details:\n%s\n", panicMessage)
	} else {
		fmt.Fprintf(os.Stderr, "pale3 crashed; details logged to %s\n", panicLogFile)
	}
	osExit(1)
}
