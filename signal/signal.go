// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2016 The Decred developers
// Copyright (C) 2015-2017 The Lightning Network Developers

package signal

import (
	"errors"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
)

// ErrAlreadyIntercepting is returned by Intercept while a previous
// Interceptor is still running.
var ErrAlreadyIntercepting = errors.New("intercept already started")

// intercepting guards against two handlers competing for the same signals.
var intercepting atomic.Bool

// Interceptor turns OS signals and programmatic requests into a single
// shutdown channel. A mint run watches that channel to abort before the next
// broadcast.
type Interceptor struct {
	signals  chan os.Signal
	requests chan struct{}

	// quit is closed by the handler on the first shutdown trigger.
	quit chan struct{}

	// done is closed after the handler has stopped watching signals.
	done chan struct{}
}

// Intercept starts watching for interrupt and termination signals. Only one
// Interceptor may be active at a time.
func Intercept() (Interceptor, error) {
	if !intercepting.CompareAndSwap(false, true) {
		return Interceptor{}, ErrAlreadyIntercepting
	}

	c := Interceptor{
		signals:  make(chan os.Signal, 1),
		requests: make(chan struct{}),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	signal.Notify(
		c.signals, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT,
	)

	go c.mainInterruptHandler()

	return c, nil
}

// mainInterruptHandler waits for the first signal or request, then releases
// everything blocked on ShutdownChannel.
func (c *Interceptor) mainInterruptHandler() {
	defer intercepting.Store(false)

	select {
	case sig := <-c.signals:
		log.Infof("Received %v, stopping mint run", sig)

	case <-c.requests:
		log.Infof("Shutdown requested")
	}
	close(c.quit)

	signal.Stop(c.signals)
	close(c.done)
}

// Alive reports whether no shutdown has been triggered yet.
func (c *Interceptor) Alive() bool {
	select {
	case <-c.quit:
		return false
	default:
		return true
	}
}

// RequestShutdown triggers a shutdown as if SIGINT had been received. Calls
// after the first one return immediately.
func (c *Interceptor) RequestShutdown() {
	select {
	case c.requests <- struct{}{}:
	case <-c.quit:
	}
}

// ShutdownChannel is closed once the shutdown has been triggered and signal
// delivery stopped.
func (c *Interceptor) ShutdownChannel() <-chan struct{} {
	return c.done
}
