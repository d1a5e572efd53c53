package build

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jrick/logrotate/rotator"
)

// FileLoggerConfig sizes the rotating log file.
type FileLoggerConfig struct {
	// MaxLogFiles is how many rolled files are kept.
	MaxLogFiles int

	// MaxLogFileSize is the roll threshold in MB.
	MaxLogFileSize int
}

// RotatingLogWriter feeds log lines into a jrick/logrotate rotator. Writes
// before InitLogRotator are dropped.
type RotatingLogWriter struct {
	pipe    *io.PipeWriter
	rotator *rotator.Rotator
}

// NewRotatingLogWriter returns a writer that stays inert until
// InitLogRotator is called.
func NewRotatingLogWriter() *RotatingLogWriter {
	return &RotatingLogWriter{}
}

// InitLogRotator opens logFile, creating its directory, and starts copying
// written lines into it. Rolled files end up next to logFile.
func (r *RotatingLogWriter) InitLogRotator(cfg *FileLoggerConfig,
	logFile string) error {

	if err := os.MkdirAll(filepath.Dir(logFile), 0700); err != nil {
		return fmt.Errorf("unable to create log directory: %w", err)
	}

	// rotator.New expects the threshold in KB.
	rot, err := rotator.New(
		logFile, int64(cfg.MaxLogFileSize)*1024, false,
		cfg.MaxLogFiles,
	)
	if err != nil {
		return fmt.Errorf("unable to create log rotator: %w", err)
	}

	reader, writer := io.Pipe()
	go func() {
		if err := rot.Run(reader); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "log rotator stopped: %v\n",
				err)
		}
	}()

	r.rotator = rot
	r.pipe = writer

	return nil
}

// Write forwards b to the rotator once it is running.
func (r *RotatingLogWriter) Write(b []byte) (int, error) {
	if r.pipe == nil {
		return len(b), nil
	}

	return r.pipe.Write(b)
}

// Close flushes and stops the rotator if it was started.
func (r *RotatingLogWriter) Close() error {
	if r.pipe != nil {
		_ = r.pipe.Close()
	}
	if r.rotator == nil {
		return nil
	}

	return r.rotator.Close()
}
