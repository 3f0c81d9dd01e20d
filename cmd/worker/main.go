package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"holderdrop/internal/app/bootstrap"
)

// Worker process entrypoint.
// Data flow:
// 1) Load and validate config.
// 2) Build app wiring.
// 3) Trigger the distribution on a ticker and relay the outbox.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.BuildWorker(ctx)
	if err != nil {
		log.Fatalf("bootstrap worker failed: %v", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Printf("worker shutdown close failed: %v", err)
		}
	}()

	if err := app.Run(ctx); err != nil {
		log.Printf("holderdrop worker stopped with error: %v", err)
	}
}
