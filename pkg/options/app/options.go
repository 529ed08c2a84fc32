// Package app defines the contract between command options and the application runner.
package app

import "github.com/kart-io/verbatim-rag/pkg/app/cliflag"

// CliOptions abstracts configuration options for reading parameters from the
// command line, config files and the environment.
type CliOptions interface {
	// Flags returns flags grouped by section name.
	Flags() cliflag.NamedFlagSets

	// Complete fills derived values after flags and config are loaded.
	Complete() error

	// Validate returns an aggregate of every invalid option.
	Validate() error
}
