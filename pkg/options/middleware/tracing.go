package middleware

import (
	"fmt"
	"strings"

	"github.com/kart-io/verbatim-rag/pkg/options"
	"github.com/spf13/pflag"
)

// TracingOptions controls the server span middleware. Spans are only
// exported when the tracer provider is enabled.
type TracingOptions struct {
	SkipPaths []string `json:"skip-paths" mapstructure:"skip-paths"`
}

// NewTracingOptions creates default tracing middleware options.
func NewTracingOptions() *TracingOptions {
	return &TracingOptions{
		SkipPaths: []string{"/health", "/metrics"},
	}
}

// AddFlags adds flags for tracing middleware options to the specified FlagSet.
func (o *TracingOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringSliceVar(&o.SkipPaths, options.Join(prefixes...)+"middleware.tracing.skip-paths", o.SkipPaths, "Paths that get no server span.")
}

// Validate requires every skip path to be absolute.
func (o *TracingOptions) Validate() []error {
	var errs []error
	for _, p := range o.SkipPaths {
		if !strings.HasPrefix(p, "/") {
			errs = append(errs, fmt.Errorf("middleware.tracing.skip-paths: %q must start with /", p))
		}
	}
	return errs
}
