package logging

import (
	"io"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Setup configures the standard logrus logger. level accepts the logrus
// level names in any case (ERROR, warn, Info, ...); an unknown level falls
// back to info. Debug mode raises the level to at least debug.
func Setup(out io.Writer, level string, debug bool) log.Level {
	log.SetOutput(out)
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})

	parsed := log.InfoLevel
	if level != "" {
		l, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
		if err != nil {
			log.Warnf("[Logging] unknown LOG_LEVEL %q, using info", level)
		} else {
			parsed = l
		}
	}
	if debug && parsed < log.DebugLevel {
		parsed = log.DebugLevel
	}
	log.SetLevel(parsed)
	return parsed
}
