package badger

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// badgerLogger adapts zerolog to badger.Logger.
type badgerLogger struct {
	logger zerolog.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error().Msg(trim(format, args...))
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn().Msg(trim(format, args...))
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug().Msg(trim(format, args...))
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Trace().Msg(trim(format, args...))
}

func trim(format string, args ...interface{}) string {
	return strings.TrimSpace(fmt.Sprintf(format, args...))
}
