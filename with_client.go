package agentwire

import (
	"context"
	"fmt"
)

// WithClient starts a client, runs fn, and closes the client.
//
// An error from fn is returned as-is. A Close failure is logged and does not
// replace fn's result.
//
//	err := agentwire.WithClient(ctx, func(c agentwire.Client) error {
//	    if err := c.Query(ctx, "Hello"); err != nil {
//	        return err
//	    }
//	    for msg, err := range c.ReceiveResponse(ctx) {
//	        if err != nil {
//	            return err
//	        }
//	        fmt.Println(msg.Text())
//	    }
//	    return nil
//	}, agentwire.WithPermissionMode("acceptEdits"))
func WithClient(ctx context.Context, fn func(Client) error, opts ...Option) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	log := applyOptions(opts).Logger
	if log == nil {
		log = NopLogger()
	}

	client := NewClient()
	if err := client.Start(ctx, opts...); err != nil {
		return fmt.Errorf("failed to start client: %w", err)
	}

	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			log.Warn("failed to close client", "error", closeErr)
		}
	}()

	return fn(client)
}
