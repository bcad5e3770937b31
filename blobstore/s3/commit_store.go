package s3

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/hupe1980/hybridmem/blobstore"
)

// PointerName is the blob name DDBCommitStore resolves through DynamoDB.
// It matches the pointer written by the snapshot exporter.
const PointerName = "LATEST"

// ErrConcurrentModification is returned when another writer committed the
// same pointer version first.
var ErrConcurrentModification = errors.New("concurrent modification detected")

// DDBClient is the subset of the DynamoDB API used by DDBCommitStore.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

var _ DDBClient = (*dynamodb.Client)(nil)

// DDBCommitStore is a Store whose LATEST pointer lives in DynamoDB.
//
// S3 has no compare-and-swap, so two processes exporting snapshots to the
// same prefix could overwrite each other's pointer. Writes to PointerName are
// turned into conditional inserts of a new version row instead; every other
// blob goes straight to S3.
//
// Table schema:
//   - Partition key: base_uri (string), the s3:// location of the store
//   - Sort key: version (number), increasing by one per commit
//
// Create the table with:
//
//	aws dynamodb create-table \
//	  --table-name hybridmem-commits \
//	  --attribute-definitions AttributeName=base_uri,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=base_uri,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type DDBCommitStore struct {
	*Store

	ddb     DDBClient
	table   string
	baseURI string
}

var _ blobstore.BlobStore = (*DDBCommitStore)(nil)

// NewDDBCommitStore wraps store. baseURI partitions the table; pass "" to use
// store.URI().
func NewDDBCommitStore(store *Store, ddb DDBClient, tableName, baseURI string) *DDBCommitStore {
	if baseURI == "" {
		baseURI = store.URI()
	}
	return &DDBCommitStore{
		Store:   store,
		ddb:     ddb,
		table:   tableName,
		baseURI: baseURI,
	}
}

// Open resolves PointerName from DynamoDB and everything else from S3.
func (s *DDBCommitStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	if name != PointerName {
		return s.Store.Open(ctx, name)
	}

	version, target, err := s.Latest(ctx)
	if err != nil {
		return nil, err
	}
	if version == 0 {
		return nil, blobstore.ErrNotFound
	}
	return blobstore.NewBytesBlob([]byte(target)), nil
}

// Put commits PointerName through DynamoDB and writes everything else to S3.
func (s *DDBCommitStore) Put(ctx context.Context, name string, data []byte) error {
	if name == PointerName {
		_, err := s.Commit(ctx, string(data))
		return err
	}
	return s.Store.Put(ctx, name, data)
}

// Latest returns the newest committed version and its target. Version 0
// means nothing was committed yet.
func (s *DDBCommitStore) Latest(ctx context.Context) (uint64, string, error) {
	resp, err := s.ddb.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("base_uri = :uri"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uri": &types.AttributeValueMemberS{Value: s.baseURI},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return 0, "", fmt.Errorf("query commit table: %w", err)
	}
	if len(resp.Items) == 0 {
		return 0, "", nil
	}

	item := resp.Items[0]
	versionAttr, ok := item["version"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, "", errors.New("commit table: invalid version attribute")
	}
	targetAttr, ok := item["target"].(*types.AttributeValueMemberS)
	if !ok {
		return 0, "", errors.New("commit table: invalid target attribute")
	}

	version, err := strconv.ParseUint(versionAttr.Value, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("commit table: parse version: %w", err)
	}
	return version, targetAttr.Value, nil
}

// Commit inserts version latest+1 pointing at target. It returns
// ErrConcurrentModification if another writer inserted that version first.
func (s *DDBCommitStore) Commit(ctx context.Context, target string) (uint64, error) {
	current, _, err := s.Latest(ctx)
	if err != nil {
		return 0, err
	}
	next := current + 1

	_, err = s.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item: map[string]types.AttributeValue{
			"base_uri": &types.AttributeValueMemberS{Value: s.baseURI},
			"version":  &types.AttributeValueMemberN{Value: strconv.FormatUint(next, 10)},
			"target":   &types.AttributeValueMemberS{Value: target},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return 0, ErrConcurrentModification
		}
		return 0, fmt.Errorf("commit version %d: %w", next, err)
	}
	return next, nil
}
