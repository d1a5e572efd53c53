package brc20mint

import (
	"github.com/btcsuite/btclog"
	"github.com/ordkit/brc20mint/build"
	"github.com/ordkit/brc20mint/commitreveal"
	"github.com/ordkit/brc20mint/envelope"
	"github.com/ordkit/brc20mint/funding"
	"github.com/ordkit/brc20mint/inscribe"
	"github.com/ordkit/brc20mint/localsigner"
	"github.com/ordkit/brc20mint/openapi"
	"github.com/ordkit/brc20mint/sessionstore"
	"github.com/ordkit/brc20mint/signal"
)

// Every package logs through one backend. Lines reach the log file only after
// LoadConfig has started logRotator, terminal output works from the start.
var (
	// logRotator is closed by Main on exit.
	logRotator = build.NewRotatingLogWriter()

	logWriter = &build.LogWriter{RotatorPipe: logRotator}

	backendLog = btclog.NewBackend(logWriter)

	mintLog = build.NewSubLogger("MINT", backendLog.Logger)

	// subsystemLoggers is keyed by the --debuglevel tag.
	subsystemLoggers = build.SubLoggers{
		"MINT": mintLog,
	}
)

func init() {
	addSubLogger(commitreveal.Subsystem, commitreveal.UseLogger)
	addSubLogger(envelope.Subsystem, envelope.UseLogger)
	addSubLogger(funding.Subsystem, funding.UseLogger)
	addSubLogger(inscribe.Subsystem, inscribe.UseLogger)
	addSubLogger(localsigner.Subsystem, localsigner.UseLogger)
	addSubLogger(openapi.Subsystem, openapi.UseLogger)
	addSubLogger(sessionstore.Subsystem, sessionstore.UseLogger)
	addSubLogger(signal.Subsystem, signal.UseLogger)
}

// addSubLogger creates a logger for the subsystem, hands it to the package
// and registers it for level changes.
func addSubLogger(subsystem string, useLogger func(btclog.Logger)) {
	logger := build.NewSubLogger(subsystem, backendLog.Logger)
	useLogger(logger)
	subsystemLoggers[subsystem] = logger
}

// logManager exposes the subsystem loggers to build.ParseAndSetDebugLevels.
type logManager struct {
	loggers build.SubLoggers
}

var _ build.LeveledSubLogger = (*logManager)(nil)

// SubLoggers returns the registered loggers.
func (m *logManager) SubLoggers() build.SubLoggers {
	return m.loggers
}

// SupportedSubsystems returns the sorted subsystem names.
func (m *logManager) SupportedSubsystems() []string {
	return m.loggers.SupportedSubsystems()
}

// SetLogLevel changes one subsystem. Unknown tags are ignored.
func (m *logManager) SetLogLevel(subsystemID string, logLevel string) {
	logger, ok := m.loggers[subsystemID]
	if !ok {
		return
	}

	level, _ := btclog.LevelFromString(logLevel)
	logger.SetLevel(level)
}

// SetLogLevels changes every subsystem.
func (m *logManager) SetLogLevels(logLevel string) {
	for subsystemID := range m.loggers {
		m.SetLogLevel(subsystemID, logLevel)
	}
}
