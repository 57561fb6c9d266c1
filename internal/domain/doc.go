// Package domain contains the core entities and value objects for recship.
//
// This package is the innermost layer. It has no dependencies on
// infrastructure concerns (AMQP, databases, file system, logging) and contains
// only the record model and its invariants.
//
// # Entities
//
//   - [Record]: an identifier paired with a content fingerprint
//   - [Batch]: an ordered, bounded group of records published as one message
//   - [Document]: a record with the raw content a loader attached to it
//   - [MergedRecord]: the result of merging the documents of one identifier
//   - [Report]: the merged and non-merged sets written in place of persistence
//
// # Value Objects
//
//   - [DispatchMode]: sync (merge in-process) or async (publish to workers)
//   - [AllowSet]: optional identifier filter applied while parsing feeds
package domain
