package main

import (
	"context"
	"errors"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"studyrag/internal/handlers"
	"studyrag/internal/http"
)

func newServeCommand() *cobra.Command {
	var port string
	var checkLLM bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			var model handlers.ModelChecker
			if checkLLM && a.model != nil {
				model = a.model
			}
			router := http.NewRouter(&http.Deps{
				Study:  a.study,
				Health: handlers.NewHealthHandler(a.db, a.vectors, model, a.cfg.Collection),
			})

			if port == "" {
				port = a.cfg.APIPort
			}
			srv := &nethttp.Server{
				Addr:              ":" + port,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.log.Info("starting API server", "addr", srv.Addr)
				a.log.Debug("LLM configuration", "provider", a.cfg.LLMProvider, "base_url", a.cfg.LLMBaseURL, "model", a.cfg.LLMModelName)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, nethttp.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			a.log.Info("shutting down API server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "Server port (default API_PORT)")
	cmd.Flags().BoolVar(&checkLLM, "health-check-llm", true, "Probe the chat model in /api/health")

	return cmd
}
