// Package minio stores allocator snapshots in MinIO or any other
// S3-compatible object store (Ceph, Garage, SeaweedFS) using the MinIO client.
//
// # Basic Usage
//
//	store, err := minio.Connect(ctx, minio.Config{
//	    Endpoint:     "localhost:9000",
//	    AccessKey:    "minioadmin",
//	    SecretKey:    "minioadmin",
//	    Bucket:       "hybridmem",
//	    Prefix:       "prod/",
//	    CreateBucket: true,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	exp := snapshot.NewExporter(store)
//
// An existing *minio.Client can be wrapped with NewStore instead.
//
// Unlike blobstore/s3 this package needs no AWS SDK, which keeps air-gapped
// deployments small.
package minio
