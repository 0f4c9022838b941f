package cli

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"eventstore/internal/engine"
	metricspkg "eventstore/internal/metrics"
)

func newMetricsServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "metrics-serve",
		Short: "Open a store and expose its Prometheus metrics over HTTP until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			reg := prometheus.NewRegistry()
			collector := metricspkg.New(reg)

			e, err := engine.New(engine.Config{Dir: dir, Logger: logger(), Metrics: collector})
			if err != nil {
				return err
			}
			defer e.Close()

			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

			srv := &http.Server{Addr: addr, Handler: mux}
			fmt.Fprintf(cmd.OutOrStdout(), "serving metrics on %s/metrics\n", addr)

			ctx := cmd.Context()
			go func() {
				<-ctx.Done()
				srv.Shutdown(context.Background())
			}()

			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:9477", "address to serve /metrics on")
	return cmd
}
