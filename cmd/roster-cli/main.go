package main

import (
	"context"

	"rosteriq-backend/cmd/roster-cli/commands"
	"rosteriq-backend/lib/telemetry"
)

func main() {
	telemetry.SetupFromEnv(context.Background(), "roster-cli")
	commands.ExecuteContext(context.Background())
}
