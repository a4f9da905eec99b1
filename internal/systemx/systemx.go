package systemx

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"sync"
)

// FQDN returns the fully qualified hostname, stripped of any trailing dot.
func FQDN() (string, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return "", err
	}

	return strings.TrimSuffix(hostname, "."), nil
}

// Cleanup waits for a signal or the context to be cancelled, runs the cleanup
// callback and then waits for outstanding work to complete.
func Cleanup(ctx context.Context, cancel func(), wg *sync.WaitGroup, sigs ...os.Signal) func(func()) {
	return func(cleanup func()) {
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, sigs...)
		defer close(signals)
		defer signal.Stop(signals)

		select {
		case <-ctx.Done():
		case <-signals:
			cancel()
		}

		cleanup()
		wg.Wait()
	}
}
