package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	// serve, mcp and index --watch run until interrupted
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
