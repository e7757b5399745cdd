// Package agentwire drives an agent CLI as a subprocess and speaks its
// bidirectional control protocol.
//
// The CLI reads and writes newline-delimited JSON on stdin and stdout. Domain
// messages (assistant turns, tool results, the final result) flow to the
// caller as Message values; control traffic is handled by the session:
// outgoing requests such as Interrupt and SetModel wait for their correlated
// response, and incoming requests are answered by the callbacks configured
// with WithCanUseTool, WithHooks and WithMCPServer.
//
// # One-shot queries
//
//	for msg, err := range agentwire.Query(ctx, "What is 2+2?", agentwire.WithMaxTurns(1)) {
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    if msg.IsResult() {
//	        fmt.Println(msg.Text())
//	    }
//	}
//
// # Interactive sessions
//
//	err := agentwire.WithClient(ctx, func(c agentwire.Client) error {
//	    if err := c.Query(ctx, "Hello"); err != nil {
//	        return err
//	    }
//	    for msg, err := range c.ReceiveResponse(ctx) {
//	        if err != nil {
//	            return err
//	        }
//	        fmt.Println(msg.Type(), msg.Text())
//	    }
//	    return nil
//	},
//	    agentwire.WithLogger(slog.Default()),
//	    agentwire.WithPermissionMode("acceptEdits"),
//	)
//
// # Errors
//
//	if err != nil {
//	    if cliErr, ok := errors.AsType[*agentwire.CLINotFoundError](err); ok {
//	        log.Fatalf("agent CLI not installed, searched: %v", cliErr.SearchedPaths)
//	    }
//	    if procErr, ok := errors.AsType[*agentwire.ProcessError](err); ok {
//	        log.Fatalf("CLI exited with code %d: %s", procErr.ExitCode, procErr.Stderr)
//	    }
//	    if errors.Is(err, agentwire.ErrRequestTimeout) {
//	        log.Fatal("the CLI did not answer in time")
//	    }
//	}
package agentwire
