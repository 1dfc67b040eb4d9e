package identity

import (
	"os"

	"github.com/rs/zerolog"
)

// ZerologAdapter exposes a zerolog.Logger through the Logger interface so
// every component here can share an application's structured logger.
type ZerologAdapter struct {
	log zerolog.Logger
}

// NewZerologAdapter wraps an existing zerolog.Logger.
func NewZerologAdapter(log zerolog.Logger) *ZerologAdapter {
	return &ZerologAdapter{log: log}
}

// NewZerologLogger builds a JSON logger on stdout tagged with a component
// label and wraps it.
func NewZerologLogger(component string) *ZerologAdapter {
	log := zerolog.New(os.Stdout).With().
		Str("component", component).
		Timestamp().
		Logger()
	return &ZerologAdapter{log: log}
}

func (a *ZerologAdapter) Debug(format string, args ...any) {
	a.log.Debug().Msgf(format, args...)
}

func (a *ZerologAdapter) Info(format string, args ...any) {
	a.log.Info().Msgf(format, args...)
}

func (a *ZerologAdapter) Warn(format string, args ...any) {
	a.log.Warn().Msgf(format, args...)
}

func (a *ZerologAdapter) Error(format string, args ...any) {
	a.log.Error().Msgf(format, args...)
}
