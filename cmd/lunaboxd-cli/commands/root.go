package commands

import (
	"context"
	"fmt"
	"lunaboxd/lib/configutil"
	"lunaboxd/lib/restyutil"
	"lunaboxd/lib/scrapers/letterboxd/core"
	"lunaboxd/lib/util/serviceutil"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// Config is the CLI's config.json5. Credentials stay in memory; the
// session snapshot at StatePath is what keeps warm starts off the
// login endpoint.
type Config struct {
	Username          string  `json:"username"`
	Password          string  `json:"password"`
	BaseUrl           string  `json:"base_url"`
	StatePath         string  `json:"state_path"`
	RequestsPerSecond float64 `json:"requests_per_second"`
}

// metrics is shared by every client in the process so serve-metrics
// exposes the same registry the scrape commands write to.
var metrics = core.NewMetrics()

var rootCmd = &cobra.Command{
	Use:   "lunaboxd-cli",
	Short: "lunaboxd-cli is a CLI for scraping and editing a letterboxd account.",
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newSession reads config.json5 and establishes the session every
// scrape command hangs off, reusing the persisted snapshot when it is
// still fresh.
func newSession(ctx context.Context) *core.Client {
	cfg, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	statePath := cfg.StatePath
	if statePath == "" {
		statePath = "session.json"
	}

	session, err := core.New(ctx, core.Options{
		BaseUrl:           cfg.BaseUrl,
		Username:          cfg.Username,
		Password:          cfg.Password,
		StatePath:         statePath,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Metrics:           metrics,
	})
	if err != nil {
		serviceutil.Fatal("failed to initialize session", err)
	}
	restyutil.DumpExchanges(session.Http, restyutil.NewFilesystemOutput(".dev/resty/lunaboxd-cli"))
	err = session.LoadOrCreate(ctx)
	if err != nil {
		serviceutil.Fatal("failed to establish session", err)
	}
	return session
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}

// score renders a 0.5-5 star score to two decimal places, "-" when
// there is none.
func score(value float64, ok bool) string {
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%.2f", value)
}
