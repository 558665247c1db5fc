/*
Package runtime drives a node of a simulated cluster over stdin/stdout.

# Architecture Overview

A node reads newline-delimited JSON envelopes from stdin and writes replies
and locally initiated messages to stdout. The runtime owns both streams and
the handler instance; user code only implements Handler.Step.

# Package Structure

## Node (node.go, options.go)

Node and Run implement the lifecycle AwaitingInit, Running, Terminated:
  - the first line must be an init request, answered with init_ok before the
    handler factory runs
  - every later line is decoded against the node's payload union and handed
    to Step, one event at a time
  - injected values from the Injector are interleaved with wire lines
  - end of input on stdin seals the injector; the node stops cleanly once the
    queue is drained

Any decode failure, protocol violation, step error or write failure ends the
node. There are no retries.

## Events and Injection (event.go, source.go, injector.go)

Event carries either a wire envelope or an injected value. The event source
merges the two feeds and holds each wire line until its step has finished.
Injector is the producer side of the injected feed; Tick starts a periodic
producer.

## Output (output.go)

Output writes envelopes to stdout through the stdio transport. Reply and Send
take msg_id values from the node's allocator, so ids are strictly increasing
over the node's lifetime.

## Observability (hooks.go, metrics.go, metrics_server.go)

Every step runs inside an OpenTelemetry span. StepHooks observe steps;
LoggingHooks and MetricsHooks are provided, and NodeMetrics can be served over
HTTP for scraping.

# Subpackages

  - envelope: wire codec, payload unions, reply construction, handshake types
  - ids: msg_id allocator and ULID helper
  - transport: watermill publisher/subscriber over line streams
  - config, logging, errors, jsoncodec: shared plumbing
*/
package runtime
