// Package app composes the light client: it wires the payment engine and its
// sibling services to their stores, the hub transport and the signer, and
// manages their lifecycle.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Application struct, wiring, and lifecycle
//	├── domain/             # Domain models (pure data structures)
//	│   ├── payment/        # Payments, protocol messages, delegations
//	│   ├── channel/        # Channel and token read models
//	│   └── notifier/       # Notifier registrations
//	├── storage/            # Store interfaces, memory state, snapshot hook
//	│   └── postgres/       # Durable snapshot store
//	├── services/           # Business logic
//	│   ├── payments/       # Payment protocol engine
//	│   ├── watchtower/     # Non-closing balance proof submitter
//	│   ├── onboarding/     # Hub registration and API key exchange
//	│   ├── notifier/       # Notifier subscription bookkeeping
//	│   └── polling/        # Hub message poller
//	├── httpapi/            # HTTP API handlers
//	├── system/             # Service lifecycle management
//	└── metrics/            # Prometheus collectors
//
// The dependency flow is cmd/lightclient → internal/app → services → storage
// and protocol packages. Domain models carry no business logic; the engine
// and its siblings own all protocol behavior.
package app
