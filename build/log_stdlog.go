//go:build stdlog

package build

import "os"

// LoggingType writes to stderr only.
const LoggingType = LogTypeStdOut

// Write copies b to stderr.
func (w *LogWriter) Write(b []byte) (int, error) {
	_, _ = os.Stderr.Write(b)
	return len(b), nil
}
