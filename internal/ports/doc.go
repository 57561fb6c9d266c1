// Package ports defines the interfaces (ports) that connect the dispatch
// controller to infrastructure adapters.
//
// Ports are the boundaries between the application core and the outside
// world. They state what the controller needs from the broker, the record
// store, the content source and the merge step without saying how those
// needs are met.
//
// # Port Interfaces
//
//   - [BatchPublisher]: publishes one batch as one message
//   - [QueueInspector]: reads ready-message counts of named queues
//   - [RecordLookup]: prunes records whose fingerprint is unchanged
//   - [ContentLoader]: attaches raw content to records
//   - [Merger]: merges loaded documents
//   - [Persister]: stores merged records
//   - [ReportWriter]: writes merged and non-merged sets to a file
//   - [Logger]: structured logging abstraction
//   - [HTTPClient]: HTTP request abstraction for dependency injection
//
// # Usage
//
// The application layer (internal/app) depends only on these interfaces.
// Infrastructure adapters (internal/adapters) implement them with AMQP,
// Postgres, ClickHouse, HTTP and file system backends.
package ports
