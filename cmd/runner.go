package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/visionary/internal/metrics"
	"github.com/desertthunder/visionary/internal/repositories"
	"github.com/desertthunder/visionary/internal/services"
	"github.com/desertthunder/visionary/internal/shared"
	"github.com/desertthunder/visionary/internal/tasks"
	"github.com/desertthunder/visionary/internal/vision"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The config, library and oracle are resolved on first use so commands that only read the
// library never need a reachable classifier.
type Runner struct {
	configPath string
	config     *shared.Config
	library    *repositories.Library
	oracle     services.Oracle
	metrics    *metrics.Metrics
	logger     *log.Logger
	output     io.Writer
	closers    []func() error
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	ConfigPath string // Overrides the --config flag when set
	Config     *shared.Config
	Library    *repositories.Library
	Oracle     services.Oracle
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		configPath: opts.ConfigPath,
		config:     opts.Config,
		library:    opts.Library,
		oracle:     opts.Oracle,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, classifyCommand, albumsCommand, photosCommand, purgeCommand, serveCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Close releases everything the runner opened, in reverse order.
func (r *Runner) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

// SetLogger replaces the logger used by the runner.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// loadConfig resolves the configuration once, honoring --config and --verbose.
//
// A missing config file falls back to the defaults.
func (r *Runner) loadConfig(cmd *cli.Command) (*shared.Config, error) {
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}
	if r.config != nil {
		return r.config, nil
	}

	path := r.configPath
	if path == "" {
		path = cmd.String("config")
	}

	config := shared.DefaultConfig()
	if _, err := os.Stat(path); err == nil {
		if config, err = shared.LoadConfig(path); err != nil {
			return nil, err
		}
		r.logger.Debug("loaded config", "path", path)
	} else {
		r.logger.Debug("config file not found, using defaults", "path", path)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	r.config = config
	return config, nil
}

// openLibrary opens the configured database, applying pending migrations.
func (r *Runner) openLibrary(cmd *cli.Command) (*repositories.Library, error) {
	if r.library != nil {
		return r.library, nil
	}

	config, err := r.loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	lib, err := repositories.OpenPath(config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open library: %w", err)
	}
	if config.Database.Path != shared.MemoryDatabase {
		shared.ConfigureDatabase(lib.DB(), config.Database.MaxOpenConns, config.Database.MaxIdleConns)
	}

	r.logger.Debug("opened library", "path", config.Database.Path)
	r.library = lib
	r.closers = append(r.closers, lib.Close)
	return lib, nil
}

// newPipeline wires the configured oracle, library and metrics into a [tasks.Pipeline].
func (r *Runner) newPipeline(cmd *cli.Command) (*tasks.Pipeline, error) {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	lib, err := r.openLibrary(cmd)
	if err != nil {
		return nil, err
	}

	if r.oracle == nil {
		oracle, closer, err := newOracle(config, r.logger)
		if err != nil {
			return nil, err
		}
		r.oracle = oracle
		if closer != nil {
			r.closers = append(r.closers, closer)
		}
	}

	timeout, err := config.Classifier.TimeoutDuration()
	if err != nil {
		return nil, err
	}

	return tasks.NewPipeline(vision.NewGateway(r.oracle, timeout), lib, tasks.PipelineOpts{
		JPEGQuality:   config.Library.JPEGQuality,
		MaxImageBytes: config.Library.MaxImageBytes,
		LowConfidence: config.Classifier.LowConfidence,
		Logger:        shared.WithLogger(r.logger, "backend", r.oracle.Name()),
		Metrics:       r.metrics,
	}), nil
}

// lowConfidence returns the configured threshold for confidence badges.
func (r *Runner) lowConfidence() float64 {
	if r.config == nil || r.config.Classifier.LowConfidence <= 0 {
		return tasks.DefaultLowConfidence
	}
	return r.config.Classifier.LowConfidence
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return err
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	if _, err := fmt.Fprintf(r.output, format, args...); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	return r.writePlain("\n"+format+"\n", args...)
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
