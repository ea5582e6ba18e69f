package shutdown

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func WithSignals(ctx context.Context) (context.Context, context.CancelFunc) {
	return withSignals(ctx, syscall.SIGINT, syscall.SIGTERM)
}

func withSignals(ctx context.Context, sigs ...os.Signal) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)

	go func() {
		defer signal.Stop(ch)
		select {
		case <-ch:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// Closers runs registered cleanup funcs in reverse registration order.
type Closers struct {
	fns []func(context.Context) error
}

func (c *Closers) Add(fn func(context.Context) error) {
	c.fns = append(c.fns, fn)
}

func (c *Closers) Close(ctx context.Context) []error {
	var errs []error
	for i := len(c.fns) - 1; i >= 0; i-- {
		if err := c.fns[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.fns = nil
	return errs
}
