// Command ewsctl talks to a mailbox web service from the command line: it
// inspects folders, lists and fetches items, and streams notifications.
//
// Every flag can also be set through an EWS_* environment variable (for
// example EWS_ENDPOINT or EWS_CLIENT_SECRET) or a config file.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "ewsctl:", err)
		os.Exit(1)
	}
}
