// Package main is the entry point of the index rebuild command.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/kart-io/verbatim-rag/cmd/rag-index/app"
)

func main() {
	app.NewApp().Run()
}
