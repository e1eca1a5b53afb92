package commands

import (
	"lunaboxd/lib/util/serviceutil"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var metricsAddr *string

func init() {
	metricsAddr = serveMetricsCmd.Flags().String("addr", ":9090", "The address to serve metrics on.")
	rootCmd.AddCommand(serveMetricsCmd)
}

var serveMetricsCmd = &cobra.Command{
	Use:   "serve-metrics [--addr <host:port>]",
	Short: "Serves the scrape metrics registry over HTTP at /metrics.",
	Run: func(cmd *cobra.Command, args []string) {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
		serviceutil.StartHttpServer(cmd.Context(), *metricsAddr, mux)
	},
}
