package main

import (
	"tripbook-backend/cmd/tripbook/commands"
	"tripbook-backend/lib/serviceutil"
	"tripbook-backend/lib/telemetry"
)

func main() {
	ctx := serviceutil.SignalContext()
	telemetry.SetupFromEnv(ctx, "tripbook")
	commands.ExecuteContext(ctx)
}
