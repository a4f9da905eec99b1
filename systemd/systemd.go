// Package systemd restarts service units through the system dbus, the local
// process restart collaborator for the coordinator.
package systemd

import (
	"context"
	"io"
	"log"

	"github.com/coreos/go-systemd/v22/dbus"
	"github.com/pkg/errors"
)

func resultToError(result string) error {
	if result == "done" {
		return nil
	}
	return errors.Errorf("job finished with result %s", result)
}

func startJob(ctx context.Context, target string, d func(string, string, chan<- string) (int, error)) error {
	await := make(chan string)

	_, err := d(target, "replace", await)
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case result := <-await:
		return resultToError(result)
	}
}

// Option ...
type Option func(*Restarter)

// OptionDebug diagnostic logger for the restarter.
func OptionDebug(l *log.Logger) Option {
	return func(r *Restarter) {
		r.debug = l
	}
}

// Connect to the system bus.
func Connect(ctx context.Context, options ...Option) (r Restarter, err error) {
	r = Restarter{
		debug: log.New(io.Discard, "", 0),
	}

	for _, opt := range options {
		opt(&r)
	}

	if r.conn, err = dbus.NewSystemConnectionContext(ctx); err != nil {
		return r, errors.Wrap(err, "failed to connect to systemd bus")
	}

	return r, nil
}

// Restarter restarts units and reports the job result. a unit that fails to
// come back is an error, not a timeout.
type Restarter struct {
	conn  *dbus.Conn
	debug *log.Logger
}

// Restart the named unit, blocking until systemd reports the job result.
func (t Restarter) Restart(ctx context.Context, unit string) error {
	t.debug.Println("restarting unit", unit)

	restart := func(name string, mode string, await chan<- string) (int, error) {
		return t.conn.RestartUnitContext(ctx, name, mode, await)
	}

	return errors.Wrapf(startJob(ctx, unit, restart), "systemd restart unit failed: %s", unit)
}

// Close the bus connection.
func (t Restarter) Close() {
	if t.conn != nil {
		t.conn.Close()
	}
}
