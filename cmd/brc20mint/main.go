package main

import (
	"errors"
	"fmt"
	"os"

	flags "github.com/jessevdk/go-flags"
	"github.com/ordkit/brc20mint"
	"github.com/ordkit/brc20mint/signal"
)

func main() {
	shutdownInterceptor, err := signal.Intercept()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Logging is set up as part of loading the config.
	loadedConfig, err := brc20mint.LoadConfig()
	if err != nil {
		var flagErr *flags.Error
		if errors.As(err, &flagErr) && flagErr.Type == flags.ErrHelp {
			os.Exit(0)
		}

		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Main owns every deferred cleanup, os.Exit is only called here.
	err = brc20mint.Main(
		loadedConfig, os.Stdout, shutdownInterceptor.ShutdownChannel(),
	)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
