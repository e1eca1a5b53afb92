package telemetry

import (
	"context"
	"errors"
	"os"
	"sync"

	"lunaboxd/lib/configutil"
)

var (
	testSetupMu   sync.Mutex
	testSetupDone = map[string]bool{}
)

// SetupForTesting initializes slog and, when a telemetry.json5 is
// present in the tree, the otel providers. Repeat calls under the same
// name are no-ops so test packages can set up freely. The returned
// cleanup flushes exporters.
func SetupForTesting(serviceName string) func() {
	testSetupMu.Lock()
	defer testSetupMu.Unlock()
	if testSetupDone[serviceName] {
		return func() {}
	}
	testSetupDone[serviceName] = true

	InitSlog(true)
	err := SetupFromEnv(context.Background(), serviceName)
	if errors.Is(err, os.ErrNotExist) {
		// no telemetry.json5 in the tree, keep the default noop providers
		return func() {}
	}
	if err != nil {
		panic(err)
	}

	return func() {
		err := Shutdown(context.Background())
		if err != nil {
			panic(err)
		}
	}
}

// SetupFromEnv walks up from the working directory looking for a
// telemetry.json5 and wires the global providers from it. Without one
// the error is os.ErrNotExist and telemetry stays noop.
func SetupFromEnv(ctx context.Context, serviceName string) error {
	config, err := configutil.ReadRecursively[config]("telemetry.json5")
	if err != nil {
		return err
	}
	return Setup(ctx, serviceName, config)
}
