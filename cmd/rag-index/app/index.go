// Package app provides the index rebuild application.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kart-io/verbatim-rag/cmd/rag-index/app/options"
	"github.com/kart-io/verbatim-rag/pkg/infra/app"
)

const (
	// Name is the name of the application.
	Name = "rag-index"

	commandDesc = `Rebuild the vector index from the source document.

The document is chunked, every chunk is embedded, and only then is the
collection cleared and repopulated. The command exits non-zero when the
document is missing or empty, or when embedding fails.`
)

// NewApp creates the index command.
func NewApp() *app.App {
	opts := options.NewIndexOptions()
	return app.NewApp(
		app.WithName(Name),
		app.WithShortDescription("Rebuild the RAG vector index"),
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithRunFunc(run(opts)),
	)
}

func run(opts *options.IndexOptions) app.RunFunc {
	return func() error {
		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		n, err := cfg.RunIndex(ctx)
		if err != nil {
			return fmt.Errorf("index rebuild failed: %w", err)
		}

		fmt.Fprintf(os.Stdout, "indexed %d chunks from %s into collection %q\n",
			n, opts.RAGOptions.DocumentPath, opts.RAGOptions.Collection)
		return nil
	}
}
