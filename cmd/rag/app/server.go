// Package app provides the RAG server application.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kart-io/verbatim-rag/cmd/rag/app/options"
	ragsvc "github.com/kart-io/verbatim-rag/internal/rag"
	"github.com/kart-io/verbatim-rag/pkg/infra/app"
)

// commandDesc is the description of the command.
const commandDesc = `Verbatim RAG Service

Answers questions about a single source document by retrieving the most
relevant passages and extracting the answer verbatim with a language model.

Endpoints:
  GET  /health          liveness
  POST /query?q=...     answer a question (debug=true adds retrieval details)
  POST /v1/rag/index    rebuild the index from the source document
  GET  /v1/rag/stats    collection and query statistics
  GET  /metrics         Prometheus text metrics`

// NewApp creates and returns a new App object with default parameters.
func NewApp() *app.App {
	opts := options.NewServerOptions()
	return app.NewApp(
		app.WithName(ragsvc.Name),
		app.WithShortDescription("Verbatim extraction over a retrieval-augmented index"),
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithRunFunc(run(opts)),
	)
}

// run contains the main logic for initializing and running the server.
func run(opts *options.ServerOptions) app.RunFunc {
	return func() error {
		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		ctx := setupSignalContext()

		server, err := cfg.NewServer(ctx)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}

		return server.Run(ctx)
	}
}

// setupSignalContext returns a context that is cancelled on SIGINT or SIGTERM.
// A second signal exits immediately.
func setupSignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
		<-c
		os.Exit(1)
	}()
	return ctx
}
