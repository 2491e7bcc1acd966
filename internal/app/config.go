package app

import (
	"fmt"
	"os"

	"github.com/vk/omnibuild/internal/config"
)

// Commands.
const (
	CommandDev   = "dev"
	CommandBuild = "build"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	Command string
	Inline  config.Inline // options given on the command line
	Cwd     string        // project directory, defaults to the process cwd

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
}

func NewConfig(cfg Config) (*Config, error) {
	switch cfg.Command {
	case CommandDev, CommandBuild:
	case "":
		cfg.Command = CommandDev
	default:
		return nil, fmt.Errorf("unknown command %q", cfg.Command)
	}

	if cfg.Cwd == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("determining working directory: %w", err)
		}
		cfg.Cwd = cwd
	}

	return &cfg, nil
}
