package build

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/btcsuite/btclog"
)

// LogType selects where log lines go. It is fixed at compile time by the
// stdlog and nolog build tags.
type LogType byte

const (
	// LogTypeNone drops every log line.
	LogTypeNone LogType = iota

	// LogTypeStdOut writes to the terminal only. Unit tests use it.
	LogTypeStdOut

	// LogTypeDefault writes to the terminal and the rotating log file.
	LogTypeDefault
)

// LogLevel is the level stdlog builds start their loggers at.
var LogLevel = "info"

// LogWriter fans log lines out according to LoggingType. Terminal output goes
// to stderr so the mint results printed on stdout can be piped.
type LogWriter struct {
	// RotatorPipe receives a copy of every line in default builds. It may
	// be nil until the log file has been opened.
	RotatorPipe io.Writer
}

// NewSubLogger returns the logger a package starts out with. Default builds
// stay silent until the binary calls UseLogger with a logger backed by the
// shared rotator, stdlog builds get a private stderr logger right away.
func NewSubLogger(subsystem string,
	genSubLogger func(string) btclog.Logger) btclog.Logger {

	switch LoggingType {
	case LogTypeDefault:
		if genSubLogger != nil {
			return genSubLogger(subsystem)
		}

	case LogTypeStdOut:
		logger := btclog.NewBackend(&LogWriter{}).Logger(subsystem)
		level, _ := btclog.LevelFromString(LogLevel)
		logger.SetLevel(level)

		return logger
	}

	return btclog.Disabled
}

// SubLoggers maps a subsystem tag such as INSC or CMRV to its logger.
type SubLoggers map[string]btclog.Logger

// SupportedSubsystems returns the registered tags in sorted order.
func (s SubLoggers) SupportedSubsystems() []string {
	tags := make([]string, 0, len(s))
	for tag := range s {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	return tags
}

// LeveledSubLogger is implemented by the binary's log manager so that
// ParseAndSetDebugLevels can adjust the per package loggers.
type LeveledSubLogger interface {
	// SubLoggers returns every registered subsystem logger.
	SubLoggers() SubLoggers

	// SupportedSubsystems returns the sorted subsystem tags.
	SupportedSubsystems() []string

	// SetLogLevel changes the level of one subsystem.
	SetLogLevel(subsystemID string, logLevel string)

	// SetLogLevels changes the level of every subsystem.
	SetLogLevels(logLevel string)
}

// ParseAndSetDebugLevels applies a --debuglevel value. The value is either a
// single level for every subsystem, a list of SUBSYS=level pairs, or a global
// level followed by such pairs, for example "info,INSC=trace".
func ParseAndSetDebugLevels(level string, logger LeveledSubLogger) error {
	entries := strings.Split(level, ",")

	if first := entries[0]; !strings.Contains(first, "=") {
		if !validLogLevel(first) {
			return fmt.Errorf("the specified debug level [%v] is "+
				"invalid", first)
		}
		logger.SetLogLevels(first)
		entries = entries[1:]
	}

	subLoggers := logger.SubLoggers()
	for _, entry := range entries {
		tag, lvl, ok := strings.Cut(entry, "=")
		if !ok || strings.Contains(lvl, "=") {
			return fmt.Errorf("the specified debug level has an "+
				"invalid subsystem/level pair [%v], use "+
				"SUBSYS1=level1,SUBSYS2=level2", entry)
		}

		if _, exists := subLoggers[tag]; !exists {
			return fmt.Errorf("the specified subsystem [%v] is "+
				"invalid, supported subsystems are %v", tag,
				logger.SupportedSubsystems())
		}

		if !validLogLevel(lvl) {
			return fmt.Errorf("the specified debug level [%v] is "+
				"invalid", lvl)
		}

		logger.SetLogLevel(tag, lvl)
	}

	return nil
}

// validLogLevel reports whether btclog knows the level name.
func validLogLevel(logLevel string) bool {
	switch logLevel {
	case "trace", "debug", "info", "warn", "error", "critical", "off":
		return true
	}

	return false
}
