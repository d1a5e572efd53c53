//go:build !stdlog && !nolog

package build

import "os"

// LoggingType writes to stderr and to the log rotator once it is running.
const LoggingType = LogTypeDefault

// Write copies b to stderr and the rotator pipe.
func (w *LogWriter) Write(b []byte) (int, error) {
	_, _ = os.Stderr.Write(b)
	if w.RotatorPipe != nil {
		_, _ = w.RotatorPipe.Write(b)
	}

	return len(b), nil
}
