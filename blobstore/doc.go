// Package blobstore provides storage for persisted allocator snapshots.
//
// BlobStore is the interface for reading and writing immutable blobs.
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: local filesystem, reads through read-only mmap
//   - MemoryStore: in-memory, for tests
//   - s3.Store: Amazon S3 (with s3.DDBCommitStore for a DynamoDB-committed pointer)
//   - minio.Store: MinIO and other S3-compatible servers
//
// # Custom Implementations
//
//	type BlobStore interface {
//	    Open(ctx, name) (Blob, error)
//	    Create(ctx, name) (WritableBlob, error)
//	    Put(ctx, name, data) error
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
package blobstore
