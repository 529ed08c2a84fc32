// Package app builds the command-line applications of the service on Cobra,
// Viper and Pflag.
//
// Configuration precedence, highest first: changed flags, environment
// variables (<NAME>_ prefix, e.g. VERBATIM_RAG_RAG_TOP_K), config file,
// defaults. A ".env" file in the working directory is loaded before anything
// else and never overrides variables that are already set.
//
//	app.NewApp(
//	    app.WithName("verbatim-rag"),
//	    app.WithOptions(opts),
//	    app.WithRunFunc(run),
//	).Run()
package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kart-io/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/kart-io/verbatim-rag/pkg/app/cliflag"
	options "github.com/kart-io/verbatim-rag/pkg/options/app"
)

// App is a single-command application.
type App struct {
	name        string
	shortDesc   string
	description string
	options     options.CliOptions
	runFunc     RunFunc
	envFiles    []string
	cmd         *cobra.Command
	v           *viper.Viper
}

// RunFunc is the application's run function. It is called after the options
// have been loaded, completed and validated.
type RunFunc func() error

// Option configures an App.
type Option func(*App)

// WithName sets the application name. It also names the config file and the
// environment variable prefix.
func WithName(name string) Option {
	return func(a *App) { a.name = name }
}

// WithShortDescription sets the short description.
func WithShortDescription(desc string) Option {
	return func(a *App) { a.shortDesc = desc }
}

// WithDescription sets the long description.
func WithDescription(desc string) Option {
	return func(a *App) { a.description = desc }
}

// WithOptions sets the CLI options.
func WithOptions(opts options.CliOptions) Option {
	return func(a *App) { a.options = opts }
}

// WithRunFunc sets the run function.
func WithRunFunc(run RunFunc) Option {
	return func(a *App) { a.runFunc = run }
}

// WithEnvFiles replaces the default ".env" list.
func WithEnvFiles(files ...string) Option {
	return func(a *App) { a.envFiles = files }
}

// NewApp creates a new application instance.
func NewApp(opts ...Option) *App {
	a := &App{
		name:     filepath.Base(os.Args[0]),
		envFiles: []string{".env"},
		v:        viper.New(),
	}
	for _, opt := range opts {
		opt(a)
	}

	a.buildCommand()
	return a
}

func (a *App) buildCommand() {
	cmd := &cobra.Command{
		Use:          a.name,
		Short:        a.shortDesc,
		Long:         a.description,
		RunE:         a.runCommand,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
	}
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)
	cmd.Flags().SortFlags = true

	cmd.PersistentFlags().StringP("config", "c", "", "Path to config file")
	version.AddFlags(cmd.PersistentFlags())
	cmd.PersistentFlags().BoolP("help", "h", false, "Help for "+a.name)

	if a.options != nil {
		fss := a.options.Flags()
		for _, name := range fss.Order {
			cmd.Flags().AddFlagSet(fss.FlagSets[name])
		}
		cmd.SetUsageFunc(func(cmd *cobra.Command) error {
			out := cmd.OutOrStderr()
			fmt.Fprintf(out, "Usage:\n  %s\n", cmd.UseLine())
			cliflag.PrintSections(out, fss, 0)
			fmt.Fprintf(out, "\nGlobal flags:\n\n%s", cmd.PersistentFlags().FlagUsages())
			return nil
		})
	}

	a.cmd = cmd
}

func (a *App) runCommand(cmd *cobra.Command, _ []string) error {
	version.PrintAndExitIfRequested()

	if err := a.loadConfig(cmd); err != nil {
		return err
	}

	if a.options != nil {
		if err := a.options.Complete(); err != nil {
			return err
		}
		if err := a.options.Validate(); err != nil {
			return err
		}
	}

	if a.runFunc == nil {
		return nil
	}
	return a.runFunc()
}

// loadConfig merges .env, the config file, the environment and the flags
// into the options.
func (a *App) loadConfig(cmd *cobra.Command) error {
	if err := loadEnvFiles(a.envFiles); err != nil {
		return err
	}

	if err := a.readConfigFile(cmd); err != nil {
		return err
	}
	expandEnvVars(a.v)

	a.v.SetEnvPrefix(EnvPrefix(a.name))
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	a.v.AutomaticEnv()
	if err := a.v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}

	if a.options == nil {
		return nil
	}

	// Expanded values are stored with Set, which outranks flags in viper, so
	// flags given on the command line are captured and re-applied on top.
	restore := captureChangedFlags(cmd.Flags())

	if err := a.v.Unmarshal(a.options); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return restore()
}

// captureChangedFlags records the changed flags and returns a function that
// writes them back. Slice flags are replaced, not appended to.
func captureChangedFlags(flags *pflag.FlagSet) func() error {
	type saved struct {
		flag  *pflag.Flag
		value string
		slice []string
	}
	var changed []saved
	flags.Visit(func(f *pflag.Flag) {
		s := saved{flag: f, value: f.Value.String()}
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			s.slice = append([]string(nil), sv.GetSlice()...)
		}
		changed = append(changed, s)
	})

	return func() error {
		for _, s := range changed {
			var err error
			if sv, ok := s.flag.Value.(pflag.SliceValue); ok {
				err = sv.Replace(s.slice)
			} else {
				err = s.flag.Value.Set(s.value)
			}
			if err != nil {
				return fmt.Errorf("failed to re-apply flag %s: %w", s.flag.Name, err)
			}
		}
		return nil
	}
}

func (a *App) readConfigFile(cmd *cobra.Command) error {
	configFile, _ := cmd.Flags().GetString("config")
	if configFile != "" {
		a.v.SetConfigFile(configFile)
	} else {
		a.v.SetConfigName(a.name)
		a.v.SetConfigType("yaml")
		a.v.AddConfigPath(".")
		a.v.AddConfigPath("./configs")
		a.v.AddConfigPath(filepath.Join(os.Getenv("HOME"), "."+a.name))
		a.v.AddConfigPath("/etc/" + a.name)
	}

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return nil
}

// loadEnvFiles loads each file that exists. Missing files are skipped.
func loadEnvFiles(files []string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// EnvPrefix returns the environment variable prefix for an application name.
func EnvPrefix(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars expands ${VAR} and $VAR references in string config values.
// Unset variables are left as written.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		s, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		expanded := envPattern.ReplaceAllStringFunc(s, func(match string) string {
			name := strings.TrimPrefix(strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}"), "$")
			if val, ok := os.LookupEnv(name); ok && val != "" {
				return val
			}
			return match
		})
		if expanded != s {
			v.Set(key, expanded)
		}
	}
}

// Run executes the application and exits non-zero on error.
func (a *App) Run() {
	if err := a.cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Command returns the cobra command.
func (a *App) Command() *cobra.Command {
	return a.cmd
}
