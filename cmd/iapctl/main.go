// Command iapctl drives purchase flows from the command line or serves them
// over HTTP, wiring the configured catalog, grant log, event and analytics
// backends.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "iapctl:", err)
		stop()
		os.Exit(1)
	}
}
