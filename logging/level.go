package logging

import (
	"fmt"
	"log"
	"strings"
	"sync/atomic"

	"listing_ledger/models"
)

var debugEnabled atomic.Bool

// SetLevel enables debug output when level is "debug". Other levels are
// always printed.
func SetLevel(level string) {
	debugEnabled.Store(strings.EqualFold(level, string(models.LogLevelDebug)))
}

// Printf writes a level-tagged line through the standard logger.
func Printf(level models.LogLevel, format string, args ...any) {
	if level == models.LogLevelDebug && !debugEnabled.Load() {
		return
	}
	log.Output(3, fmt.Sprintf("[%s] %s", level, fmt.Sprintf(format, args...)))
}

func Debugf(format string, args ...any) { Printf(models.LogLevelDebug, format, args...) }
func Infof(format string, args ...any)  { Printf(models.LogLevelInfo, format, args...) }
func Warnf(format string, args ...any)  { Printf(models.LogLevelWarn, format, args...) }
func Errorf(format string, args ...any) { Printf(models.LogLevelError, format, args...) }
