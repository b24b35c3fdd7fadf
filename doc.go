// Package frameflow is a steerable, hookable message relay for multi-frame
// messages. It forwards whole messages between a client-facing frontend and
// a worker-facing backend endpoint, invokes an optional per-frame hook in
// both directions, and obeys steering commands (PAUSE, RESUME, TERMINATE,
// STATISTICS) arriving on a Watermill-backed control topic. Commands are
// observed only between whole messages, so steering never splits a message.
//
// Endpoints come in two disciplines: Router endpoints prefix inbound
// messages with the sender's identity frame and route outbound messages by
// that frame, while Dealer endpoints round-robin outbound messages over
// their peers and fair-queue inbound ones. Together they form the classic
// request-distribution topology: clients connect to a bound Router
// frontend, workers connect to a bound Dealer backend, and the Service
// relays between the two.
//
// A minimal setup fills Config, builds the two endpoints, creates a Service
// and calls Run; steering then goes through Service.Controller or any other
// publisher on the same control topic.
//
// # Control buses
//
// The control channel rides on a registered pub/sub bus:
//   - channel: in-process Go channels, the default
//   - nats: NATS for steering across processes
//
// Bus packages register themselves on import. Import the ones you need, or
// all of them via the control/buses package:
//
//	import _ "github.com/frameflow/frameflow/control/buses"
//
// # Hooks
//
// A Hook sees every frame before it is forwarded, with its zero-based index
// and more flag, and may rewrite the bytes in place. The hooks package
// ships composable building blocks: function adapters, per-direction
// registration, chaining, an ASCII case-mapping transform, and Prometheus
// and OpenTelemetry observers.
//
// # Workers
//
// The worker package runs a pool of handler goroutines behind the backend.
// Each worker owns its dealer endpoint and control subscription, so a STOP
// broadcast stops the whole pool regardless of how requests were
// distributed.
package frameflow
