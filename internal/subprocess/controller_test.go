package subprocess

import (
	"context"
	stderrors "errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/agentwire/internal/errors"
	"github.com/wagiedev/agentwire/internal/protocol"
)

func TestController_ReportsProcessCrash(t *testing.T) {
	ctx := context.Background()

	for range 10 {
		tr := newFakeTransport(t, "fail")
		require.NoError(t, tr.Connect(ctx))

		c := protocol.NewController(slog.New(slog.DiscardHandler), tr, nil, nil)
		require.NoError(t, c.Start(ctx))
		t.Cleanup(c.Stop)

		select {
		case <-c.Done():
		case <-time.After(5 * time.Second):
			t.Fatal("controller did not stop after the process exited")
		}

		procErr, ok := stderrors.AsType[*errors.ProcessError](c.FatalError())
		require.True(t, ok, "crash reported as a clean stream end: %v", c.FatalError())
		require.Equal(t, 3, procErr.ExitCode)
		require.Equal(t, "fatal: boom", procErr.Stderr)

		_, err := c.SendRequest(ctx, &protocol.InterruptRequest{}, time.Second)
		require.ErrorAs(t, err, &procErr)

		var connErr *errors.ConnectionError
		require.ErrorAs(t, err, &connErr)
	}
}

func TestController_CleanExitIsNotFatal(t *testing.T) {
	ctx := context.Background()

	tr := newFakeTransport(t, "lines")
	require.NoError(t, tr.Connect(ctx))

	c := protocol.NewController(slog.New(slog.DiscardHandler), tr, nil, nil)
	require.NoError(t, c.Start(ctx))
	t.Cleanup(c.Stop)

	var got int
	for range c.Messages() {
		got++
	}

	require.Equal(t, 3, got)

	<-c.Done()
	require.NoError(t, c.FatalError())
}
