// Package questionnaire parses questionnaire service flags and launches the service.
package questionnaire

import (
	"context"
	"flag"

	entrypoint "github.com/alranel/GlobaLeaks/internal/platform/cmd"
	server "github.com/alranel/GlobaLeaks/internal/services/questionnaire/app"
)

// Config holds questionnaire command configuration.
type Config struct {
	Port int `env:"GLOBALEAKS_QUESTIONNAIRE_PORT" envDefault:"8095"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The questionnaire HTTP server port")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the questionnaire admin API service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceQuestionnaire, func(ctx context.Context) error {
		return server.Run(ctx, cfg.Port)
	})
}
