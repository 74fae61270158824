package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ggonzalez94/lendkit/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := app.NewRunner().Run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}
