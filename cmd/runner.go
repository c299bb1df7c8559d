package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/rafacovez/notify/internal/shared"
	"github.com/urfave/cli/v3"
)

// Runner holds the shared dependencies for CLI commands and provides a
// method for each command action.
type Runner struct {
	logger *log.Logger
	output io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Logger *log.Logger
	Output io.Writer
}

// NewRunner creates a new Runner with the provided options.
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		logger: opts.Logger,
		output: opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, serveCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// loadConfig reads the config file at path, falling back to defaults when
// it does not exist.
func (r *Runner) loadConfig(path string) *shared.Config {
	if _, err := os.Stat(path); err != nil {
		r.logger.Warn("config file not found, using defaults", "path", path)
		return shared.DefaultConfig()
	}

	config, err := shared.LoadConfig(path)
	if err != nil {
		r.logger.Warn("failed to load config, using defaults", "error", err)
		return shared.DefaultConfig()
	}
	return config
}
