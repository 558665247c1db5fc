// Package nodeflow turns a Go program into a node of a simulated distributed
// system driven by an external orchestrator. The orchestrator talks to every
// node over stdin and stdout with newline-delimited JSON envelopes; nodeflow
// owns that wire, performs the init handshake and hands each decoded message
// to a Handler one at a time.
//
// A node is described by three things: a closed payload union built with
// NewUnion from pointer variants whose Type method returns the snake_case wire
// tag, a Factory that builds the handler once the node knows its identity, and
// the Handler itself. Run wires them together:
//
//	union := nodeflow.MustUnion[Msg](&Generate{}, &GenerateOk{})
//	err := nodeflow.Run(ctx, union, struct{}{}, newHandler,
//		nodeflow.WithLogger(logger))
//
// Handlers answer requests with Output.Reply, which sets in_reply_to and a
// fresh msg_id, and start their own exchanges with Output.Send.
//
// # Injected events
//
// Work that does not come from the wire, such as gossip rounds or timeouts,
// enters through the Injector passed to the Factory. Values sent there reach
// Step as events of kind EventInjected, interleaved with wire messages and
// never concurrently with them. Tick starts a periodic producer. Nodes that
// only answer requests use NoInjection and ignore the injector.
//
// # Termination
//
// Run returns nil once stdin ends and every queued injected event has been
// handled. A malformed line, an unexpected or repeated init, a failed step
// or a failed write stops the node with an error wrapping ErrMalformedInput,
// ErrProtocolViolation, ErrHandler or ErrIO. There are no retries: a crashed
// node is an outcome the orchestrator observes.
//
// # Observability
//
// Logs go to a Logger built with NewLogger, never to stdout. Every step runs
// in an OpenTelemetry span; StepHooks, LoggingHooks and MetricsHooks observe
// steps, and WithMetricsServer exposes NodeMetrics for Prometheus.
package nodeflow
