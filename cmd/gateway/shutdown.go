package main

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/bkr/apigateway/internal/observability"
)

// run starts the gateway and blocks until ctx is canceled, then drains it.
func (a *application) run(ctx context.Context) error {
	if err := a.gateway.Start(ctx); err != nil {
		_ = a.close(context.Background())
		return fmt.Errorf("failed to start gateway: %w", err)
	}

	a.logger.Info("gateway running",
		observability.String("address", a.gateway.Addr().String()),
	)

	<-ctx.Done()
	a.logger.Info("received shutdown signal")

	return a.shutdown()
}

// shutdown stops the listeners first so in-flight requests drain, then
// releases the remaining components.
func (a *application) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.Listen.ShutdownTimeout.Duration())
	defer cancel()

	var errs []error
	if err := a.gateway.Stop(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop gateway: %w", err))
	}

	if err := a.close(shutdownCtx); err != nil {
		errs = append(errs, err)
	}

	err := errors.Join(errs...)
	if err != nil {
		a.logger.Error("shutdown completed with errors", observability.Error(err))
		return err
	}

	a.logger.Info("gateway stopped")
	return nil
}

// close releases the dispatcher, the validator and the tracer concurrently.
// Nil components are skipped.
func (a *application) close(ctx context.Context) error {
	var g errgroup.Group

	if a.dispatcher != nil {
		g.Go(func() error {
			a.dispatcher.Close()
			return nil
		})
	}
	if a.validator != nil {
		g.Go(func() error {
			if err := a.validator.Close(); err != nil {
				return fmt.Errorf("failed to close validator: %w", err)
			}
			return nil
		})
	}
	if a.tracer != nil {
		g.Go(func() error {
			if err := a.tracer.Shutdown(ctx); err != nil {
				return fmt.Errorf("failed to shutdown tracer: %w", err)
			}
			return nil
		})
	}

	return g.Wait()
}
