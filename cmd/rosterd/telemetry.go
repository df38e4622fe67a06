package main

import (
	"context"
	"log/slog"
	"time"

	"rosteriq-backend/lib/restyutil"
	"rosteriq-backend/lib/serviceutil"
	"rosteriq-backend/lib/telemetry"
)

func InitTelemetry(ctx context.Context, verbose bool) {
	telemetry.InitSlog(verbose)

	if verbose {
		slog.DebugContext(ctx, "verbose logging enabled")
	}

	err := telemetry.SetupFromEnv(ctx, "rosterd")
	if err != nil {
		serviceutil.Fatal("setup telemetry", err)
	}
	go func() {
		<-ctx.Done()
		telemetry.Shutdown(context.Background())
	}()
	telemetry.InstrumentPerfStats(ctx, time.Second*15)
}

// preflightOutput dumps preflight http traffic to disk when verbose.
func preflightOutput(verbose bool) restyutil.InstrumentOutput {
	if !verbose {
		return nil
	}
	output, err := restyutil.NewFilesystemOutput(".dev/resty/preflight")
	if err != nil {
		slog.Warn("failed to create resty output directory", "err", err)
		return nil
	}
	return output
}
