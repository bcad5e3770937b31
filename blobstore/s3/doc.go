// Package s3 stores allocator snapshots in Amazon S3.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("hybridmem/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	exp := snapshot.NewExporter(store)
//
// # Features
//
//   - Range reads for partial fetches
//   - Multipart uploads through the transfer manager for large snapshots
//   - CRC32C checksums on every upload
//   - Conditional puts (PutIfNotExists) for write-once snapshot names
//
// # Concurrent Writers
//
// DDBCommitStore keeps the LATEST pointer in a DynamoDB table so that
// several processes can export to one prefix without losing commits.
package s3
