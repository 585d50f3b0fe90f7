package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/storefront/internal/telemetry"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start background workers that run separately from the HTTP server.`,
}

var paymentWorkerCmd = &cobra.Command{
	Use:   "payment",
	Short: "Start the stale payment poller",
	Long:  `Poll the gateway for payments whose notification never arrived and apply their state.`,
	Run: func(cmd *cobra.Command, args []string) {
		startPaymentWorker()
	},
}

var (
	maxWorkers   int
	jobQueueSize int
	pollInterval time.Duration
	staleAfter   time.Duration
)

func startPaymentWorker() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	lg := deps.Logger

	// command line flags win over config values
	rc := &deps.Config.Reconciler
	rc.Workers = getIntFlag(maxWorkers, rc.Workers)
	rc.QueueSize = getIntFlag(jobQueueSize, rc.QueueSize)
	rc.PollInterval = getDurationFlag(pollInterval, rc.PollInterval)
	rc.StaleAfter = getDurationFlag(staleAfter, rc.StaleAfter)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing(ctx, deps.Config.Observability.Tracing, lg)
	if err != nil {
		lg.Error("failed to init tracing", "error", err)
		os.Exit(1)
	}

	lg.Info("starting payment worker",
		"workers", rc.Workers,
		"queue_size", rc.QueueSize,
		"poll_interval", rc.PollInterval,
		"stale_after", rc.StaleAfter,
		"gateway", deps.Gateway.Name())

	poller := deps.newPoller()
	poller.Start(ctx)

	lg.Info("payment worker is running. Press Ctrl+C to stop.")
	<-ctx.Done()
	lg.Info("received signal, shutting down payment worker")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	shutdownDone := make(chan struct{})
	go func() {
		poller.Shutdown()
		deps.Close()
		close(shutdownDone)
	}()

	select {
	case <-shutdownDone:
		lg.Info("payment worker shutdown complete")
	case <-shutdownCtx.Done():
		lg.Warn("shutdown timeout reached, forcing exit")
	}
	_ = shutdownTracing(shutdownCtx)
}

func getIntFlag(flagValue, configValue int) int {
	if flagValue > 0 {
		return flagValue
	}
	return configValue
}

func getDurationFlag(flagValue, configValue time.Duration) time.Duration {
	if flagValue > 0 {
		return flagValue
	}
	return configValue
}

func init() {
	paymentWorkerCmd.Flags().IntVar(&maxWorkers, "max-workers", 0, "Number of refresh workers (overrides config)")
	paymentWorkerCmd.Flags().IntVar(&jobQueueSize, "job-queue-size", 0, "Refresh job queue size (overrides config)")
	paymentWorkerCmd.Flags().DurationVar(&pollInterval, "poll-interval", 0, "Sweep interval (overrides config)")
	paymentWorkerCmd.Flags().DurationVar(&staleAfter, "stale-after", 0, "Age after which an unsettled payment is polled (overrides config)")

	workerCmd.AddCommand(paymentWorkerCmd)

	rootCmd.AddCommand(workerCmd)
}
