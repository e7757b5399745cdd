package agentwire

import (
	"context"
	"iter"
	"log/slog"
)

// Query runs a single prompt and yields the messages of its response, ending
// with the result message. The session is closed when iteration stops.
//
//	for msg, err := range agentwire.Query(ctx, "What is 2+2?", agentwire.WithMaxTurns(1)) {
//	    if err != nil {
//	        return err
//	    }
//	    if msg.IsResult() {
//	        fmt.Println(msg.Text())
//	    }
//	}
//
// Hooks, permission callbacks and in-process MCP servers are served for the
// whole turn because input stays open until the result arrives.
func Query(ctx context.Context, prompt string, opts ...Option) iter.Seq2[Message, error] {
	return func(yield func(Message, error) bool) {
		log := queryLogger(opts)

		client := NewClient()
		defer closeQueryClient(log, client)

		if err := client.StartWithPrompt(ctx, prompt, opts...); err != nil {
			yield(nil, err)

			return
		}

		for msg, err := range client.ReceiveResponse(ctx) {
			if !yield(msg, err) {
				return
			}
		}
	}
}

// QueryStream writes every message from messages, ends input, and yields
// output until the CLI finishes.
//
// Control requests arriving after input has ended cannot be answered, so
// prefer Client when callbacks must run after the last input message.
func QueryStream(ctx context.Context, messages iter.Seq[map[string]any], opts ...Option) iter.Seq2[Message, error] {
	return func(yield func(Message, error) bool) {
		log := queryLogger(opts)

		client := NewClient()
		defer closeQueryClient(log, client)

		if err := client.StartWithStream(ctx, messages, opts...); err != nil {
			yield(nil, err)

			return
		}

		for msg, err := range client.ReceiveMessages(ctx) {
			if !yield(msg, err) {
				return
			}
		}
	}
}

func queryLogger(opts []Option) *slog.Logger {
	log := applyOptions(opts).Logger
	if log == nil {
		log = NopLogger()
	}

	return log.With("component", "query")
}

func closeQueryClient(log *slog.Logger, client Client) {
	if err := client.Close(); err != nil {
		log.Debug("Close after query failed", "error", err)
	}
}
