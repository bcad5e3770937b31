package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/hupe1980/hybridmem/blobstore"
	"github.com/hupe1980/hybridmem/blobstore/minio"
	"github.com/hupe1980/hybridmem/blobstore/s3"
)

// openStores returns the configured snapshot stores. The first one is the
// primary store whose sequence numbers the exporter follows.
func openStores(ctx context.Context) ([]blobstore.BlobStore, error) {
	var stores []blobstore.BlobStore

	if *ExportDir != "" {
		slog.Info("exporting to directory", "path", *ExportDir)
		stores = append(stores, blobstore.NewLocalStore(*ExportDir))
	}

	if *S3Bucket != "" {
		var loadOpts []func(*config.LoadOptions) error
		if *S3Region != "" {
			loadOpts = append(loadOpts, config.WithRegion(*S3Region))
		}
		cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}

		store := s3.NewStore(awss3.NewFromConfig(cfg), *S3Bucket, *S3Prefix)
		if *DDBTable != "" {
			slog.Info("exporting to s3 with dynamodb commits", "uri", store.URI(), "table", *DDBTable)
			stores = append(stores, s3.NewDDBCommitStore(store, dynamodb.NewFromConfig(cfg), *DDBTable, ""))
		} else {
			slog.Info("exporting to s3", "uri", store.URI(), "region", cfg.Region)
			stores = append(stores, store)
		}
	}

	if *MinioAddr != "" {
		store, err := minio.Connect(ctx, minio.Config{
			Endpoint:     *MinioAddr,
			AccessKey:    *MinioKey,
			SecretKey:    *MinioSecret,
			Secure:       *MinioSecure,
			Bucket:       *MinioBucket,
			CreateBucket: true,
		})
		if err != nil {
			return nil, err
		}
		slog.Info("exporting to minio", "endpoint", *MinioAddr, "bucket", *MinioBucket)
		stores = append(stores, store)
	}

	return stores, nil
}
