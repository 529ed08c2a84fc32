// Package logger binds the kart-io/logger configuration to flags and config
// files and installs the global logger.
package logger

import (
	"fmt"
	"strings"

	"github.com/kart-io/logger"
	"github.com/kart-io/logger/option"
	"github.com/spf13/pflag"
)

// Options wraps option.LogOption. Fields are squashed so the config file keeps
// the library's own key names under "log".
type Options struct {
	*option.LogOption `mapstructure:",squash"`
}

// NewOptions returns options with the library defaults and file rotation
// enabled for any file output path.
func NewOptions() *Options {
	o := &Options{LogOption: option.DefaultLogOption()}
	if o.Rotation == nil {
		o.Rotation = &option.RotationOption{
			MaxSize:    100,
			MaxAge:     15,
			MaxBackups: 30,
			Compress:   true,
		}
	}
	return o
}

// AddFlags binds the options to fs under "log.".
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Engine, "log.engine", o.Engine, "Logging engine (zap|slog).")
	fs.StringVar(&o.Level, "log.level", o.Level, "Minimum level (DEBUG|INFO|WARN|ERROR|FATAL).")
	fs.StringVar(&o.Format, "log.format", o.Format, "Output format (json|console).")
	fs.StringSliceVar(&o.OutputPaths, "log.output-paths", o.OutputPaths, "Log destinations: stdout, stderr or file paths.")
	fs.BoolVar(&o.Development, "log.development", o.Development, "Development mode: console-friendly output and DPanic panics.")
	fs.BoolVar(&o.DisableCaller, "log.disable-caller", o.DisableCaller, "Omit the caller file and line.")
	fs.BoolVar(&o.DisableStacktrace, "log.disable-stacktrace", o.DisableStacktrace, "Omit stack traces on errors.")

	fs.IntVar(&o.Rotation.MaxSize, "log.rotation.max-size", o.Rotation.MaxSize, "Megabytes per log file before rotation.")
	fs.IntVar(&o.Rotation.MaxAge, "log.rotation.max-age", o.Rotation.MaxAge, "Days to keep rotated files.")
	fs.IntVar(&o.Rotation.MaxBackups, "log.rotation.max-backups", o.Rotation.MaxBackups, "Rotated files to keep.")
	fs.BoolVar(&o.Rotation.Compress, "log.rotation.compress", o.Rotation.Compress, "Gzip rotated files.")
}

// Complete normalises the engine and format spelling.
func (o *Options) Complete() error {
	o.Engine = strings.ToLower(strings.TrimSpace(o.Engine))
	o.Level = strings.TrimSpace(o.Level)
	o.Format = strings.ToLower(strings.TrimSpace(o.Format))
	return nil
}

// Validate returns the library's validation error, if any.
func (o *Options) Validate() []error {
	if err := o.LogOption.Validate(); err != nil {
		return []error{fmt.Errorf("log: %w", err)}
	}
	return nil
}

// InitService installs the global logger, tagging every entry with the
// service name and version.
func (o *Options) InitService(name, version string) error {
	o.AddInitialField("service.name", name)
	o.AddInitialField("service.version", version)

	log, err := logger.New(o.LogOption)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.SetGlobal(log)
	return nil
}
