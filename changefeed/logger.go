package changefeed

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
)

// LogAdapter lets watermill publishers and subscribers log through zerolog.
type LogAdapter struct {
	logger zerolog.Logger
}

var _ watermill.LoggerAdapter = LogAdapter{}

// NewLogAdapter returns a watermill.LoggerAdapter writing to logger.
func NewLogAdapter(logger zerolog.Logger) LogAdapter {
	return LogAdapter{logger: logger}
}

func (a LogAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.logger.Error().Err(err).Fields(map[string]interface{}(fields)).Msg(msg)
}

func (a LogAdapter) Info(msg string, fields watermill.LogFields) {
	a.logger.Info().Fields(map[string]interface{}(fields)).Msg(msg)
}

func (a LogAdapter) Debug(msg string, fields watermill.LogFields) {
	a.logger.Debug().Fields(map[string]interface{}(fields)).Msg(msg)
}

func (a LogAdapter) Trace(msg string, fields watermill.LogFields) {
	a.logger.Trace().Fields(map[string]interface{}(fields)).Msg(msg)
}

func (a LogAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return LogAdapter{logger: a.logger.With().Fields(map[string]interface{}(fields)).Logger()}
}
