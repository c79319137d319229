package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mediaplan/mediaplan/cmd/planctl/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	code := cli.Execute(ctx, cli.Options{})
	stop()
	os.Exit(code)
}
