package agentwire

import "github.com/wagiedev/agentwire/internal/config"

// Transport is a line-framed duplex channel to the agent CLI.
//
// The default spawns the CLI as a subprocess. Inject another implementation
// with WithTransport for tests or remote sessions.
type Transport = config.Transport
