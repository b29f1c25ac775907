package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/yungbote/coursetrack-backend/internal/app"
)

// syncworker hosts the Temporal workflow that drains the pending-sync ledger.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx)
	if err != nil {
		fmt.Printf("Failed to init app: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	if a.Clients.Temporal == nil {
		a.Log.Error("TEMPORAL_ADDRESS is required for the sync worker")
		return
	}
	if err := a.StartTemporalWorker(ctx); err != nil {
		a.Log.Error("Temporal worker failed", "error", err)
		return
	}
	<-ctx.Done()
	a.Log.Info("Sync worker stopped")
}
