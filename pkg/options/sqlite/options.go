// Package sqlite provides options for the embedded SQLite vector store.
package sqlite

import (
	"fmt"
	"time"

	"github.com/kart-io/verbatim-rag/pkg/options"
	"github.com/spf13/pflag"
)

var _ options.IOptions = (*Options)(nil)

// Options defines configuration options for SQLite.
type Options struct {
	// Path is the database file; ":memory:" keeps everything in memory.
	Path string `json:"path" mapstructure:"path"`

	// BusyTimeout is how long a writer waits on a locked database.
	BusyTimeout time.Duration `json:"busy-timeout" mapstructure:"busy-timeout"`

	// LogLevel is the gorm log level (silent, error, warn, info).
	LogLevel string `json:"log-level" mapstructure:"log-level"`
}

// NewOptions creates a new Options object with default values.
func NewOptions() *Options {
	return &Options{
		Path:        "./db/rag.db",
		BusyTimeout: 5 * time.Second,
		LogLevel:    "silent",
	}
}

// AddFlags adds flags for SQLite options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...)
	fs.StringVar(&o.Path, p+"sqlite.path", o.Path, "SQLite database file (use :memory: for an ephemeral store).")
	fs.DurationVar(&o.BusyTimeout, p+"sqlite.busy-timeout", o.BusyTimeout, "SQLite busy timeout.")
	fs.StringVar(&o.LogLevel, p+"sqlite.log-level", o.LogLevel, "GORM log level (silent, error, warn, info).")
}

// Validate checks if the options are valid.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}
	var errs []error
	if o.Path == "" {
		errs = append(errs, fmt.Errorf("sqlite path is required"))
	}
	switch o.LogLevel {
	case "", "silent", "error", "warn", "info":
	default:
		errs = append(errs, fmt.Errorf("invalid sqlite log level %q", o.LogLevel))
	}
	return errs
}
