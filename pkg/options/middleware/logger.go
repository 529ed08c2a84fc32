package middleware

import (
	"fmt"
	"strings"

	"github.com/kart-io/verbatim-rag/pkg/options"
	"github.com/spf13/pflag"
)

// LoggerOptions controls the access log. Health and metrics endpoints are
// skipped by default.
type LoggerOptions struct {
	SkipPaths []string `json:"skip-paths" mapstructure:"skip-paths"`
}

// NewLoggerOptions creates default logger middleware options.
func NewLoggerOptions() *LoggerOptions {
	return &LoggerOptions{
		SkipPaths: []string{"/health", "/metrics"},
	}
}

// AddFlags adds flags for logger options to the specified FlagSet.
func (o *LoggerOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringSliceVar(&o.SkipPaths, options.Join(prefixes...)+"middleware.logger.skip-paths", o.SkipPaths, "Paths to skip logging.")
}

// Validate requires every skip path to be absolute.
func (o *LoggerOptions) Validate() []error {
	var errs []error
	for _, p := range o.SkipPaths {
		if !strings.HasPrefix(p, "/") {
			errs = append(errs, fmt.Errorf("middleware.logger.skip-paths: %q must start with /", p))
		}
	}
	return errs
}
