// Package main is the entry point for the verbatim RAG HTTP service.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/kart-io/verbatim-rag/cmd/rag/app"
)

func main() {
	app.NewApp().Run()
}
