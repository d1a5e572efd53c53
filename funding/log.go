package funding

import (
	"github.com/btcsuite/btclog"
	"github.com/ordkit/brc20mint/build"
)

// Subsystem is the FUND tag accepted by --debuglevel.
const Subsystem = "FUND"

// log stays silent until the binary installs a real logger.
var log btclog.Logger

func init() {
	UseLogger(build.NewSubLogger(Subsystem, nil))
}

// DisableLog silences the package.
func DisableLog() {
	UseLogger(btclog.Disabled)
}

// UseLogger routes the package's log output through logger.
func UseLogger(logger btclog.Logger) {
	log = logger
}
