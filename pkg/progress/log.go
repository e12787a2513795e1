package progress

import (
	"github.com/rs/zerolog"
)

// LogEmitter writes group events to a zerolog logger.
type LogEmitter struct {
	logger zerolog.Logger
}

// NewLogEmitter creates an emitter logging at debug level, with group
// completion at info level.
func NewLogEmitter(logger zerolog.Logger) *LogEmitter {
	return &LogEmitter{logger: logger}
}

func (l *LogEmitter) GroupStarted(path []string, total int) {
	l.logger.Debug().
		Str("group", Key(path)).
		Int("total", total).
		Msg("Group started")
}

func (l *LogEmitter) GroupProgress(path []string, item string, done, total int) {
	l.logger.Debug().
		Str("group", Key(path)).
		Str("item", item).
		Int("done", done).
		Int("total", total).
		Msg("Group progress")
}

func (l *LogEmitter) GroupFinished(path []string, err error) {
	if err != nil {
		l.logger.Error().
			Err(err).
			Str("group", Key(path)).
			Msg("Group failed")
		return
	}
	l.logger.Info().
		Str("group", Key(path)).
		Msg("Group finished")
}
