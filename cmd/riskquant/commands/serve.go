package commands

import (
	"context"
	"errors"
	"net/http"
	"time"

	"riskquant/internal/api"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	serveAddr      string
	requestTimeout time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newEnvironment(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		addr := cfg.HTTPAddr
		if serveAddr != "" {
			addr = serveAddr
		}

		handler := api.New(env.Service,
			api.WithMetrics(env.Metrics.Handler()),
			api.WithMermaidCharts(cfg.EnableMermaidCharts),
			api.WithCriticalScore(cfg.Engine.Forecast.Bands.Critical),
			api.WithRequestTimeout(requestTimeout),
		)
		return serveHTTP(cmd.Context(), addr, handler)
	},
}

// serveHTTP runs srv until ctx is cancelled, then drains in-flight requests.
func serveHTTP(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		log.Info().Msg("HTTP server shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides HTTP_ADDR)")
	serveCmd.Flags().DurationVar(&requestTimeout, "request-timeout", 2*time.Minute, "per-request processing limit")
}
