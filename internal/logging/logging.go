// Package logging configures the global zerolog logger.
package logging

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init sets up the global logger. The CLI keeps the terminal clean by
// default and only shows errors; LOG_LEVEL overrides that.
func Init() {
	level := zerolog.ErrorLevel

	if l, ok := os.LookupEnv("LOG_LEVEL"); ok {
		switch l {
		case "dev", "development", "debug":
			level = zerolog.DebugLevel
		case "info":
			level = zerolog.InfoLevel
		case "warn", "warning":
			level = zerolog.WarnLevel
		case "error", "production", "prod":
			level = zerolog.ErrorLevel
		}
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(level)
}

// InitServer sets up the global logger for the server binary: structured
// JSON at info level unless LOG_LEVEL lowers it.
func InitServer() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if l, ok := os.LookupEnv("LOG_LEVEL"); ok {
		if l == "debug" || l == "dev" {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}
	}
}
