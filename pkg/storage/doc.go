// Package storage provides the durable backends for queue payloads and job history.
//
// This package includes:
//   - BlobQueueStore: the core.QueueStore that reads and writes a queue as one
//     JSON object in a versioned BlobStore
//   - MemoryBlobStore, GormBlobStore, RedisBlobStore, S3BlobStore: BlobStore backends
//   - GormHistoryStore: the append-only core.HistoryStore
//   - OpenDatabase: a GORM opener for sqlite and postgres with pool settings
//
// Most users should import the root package github.com/jdziat/durable-training-queue
// which re-exports the constructors.
package storage
