package main

import (
	"lunaboxd/cmd/lunaboxd-cli/commands"
	"lunaboxd/lib/telemetry"
	"lunaboxd/lib/util/serviceutil"
)

func main() {
	ctx := serviceutil.SignalContext()
	telemetry.SetupFromEnv(ctx, "lunaboxd-cli")
	telemetry.InitSlog(true)
	telemetry.InstrumentPerfStats(ctx)
	commands.ExecuteContext(ctx)
}
