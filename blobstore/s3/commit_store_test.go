package s3

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/hupe1980/hybridmem/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockDDBClient is an in-memory DynamoDB table keyed by base_uri and version.
type mockDDBClient struct {
	mu    sync.RWMutex
	items map[string]map[string]types.AttributeValue
}

func newMockDDBClient() *mockDDBClient {
	return &mockDDBClient{items: make(map[string]map[string]types.AttributeValue)}
}

func (m *mockDDBClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	baseURI := params.Item["base_uri"].(*types.AttributeValueMemberS).Value
	version := params.Item["version"].(*types.AttributeValueMemberN).Value
	key := baseURI + ":" + version

	if aws.ToString(params.ConditionExpression) == "attribute_not_exists(version)" {
		if _, exists := m.items[key]; exists {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("condition failed")}
		}
	}

	m.items[key] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (m *mockDDBClient) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	baseURI := params.ExpressionAttributeValues[":uri"].(*types.AttributeValueMemberS).Value

	var items []map[string]types.AttributeValue
	for _, item := range m.items {
		if item["base_uri"].(*types.AttributeValueMemberS).Value == baseURI {
			items = append(items, item)
		}
	}

	version := func(item map[string]types.AttributeValue) uint64 {
		v, _ := strconv.ParseUint(item["version"].(*types.AttributeValueMemberN).Value, 10, 64)
		return v
	}
	sort.Slice(items, func(i, j int) bool { return version(items[i]) > version(items[j]) })

	if params.Limit != nil && int(*params.Limit) < len(items) {
		items = items[:*params.Limit]
	}
	return &dynamodb.QueryOutput{Items: items}, nil
}

func newTestDDBCommitStore(ddb DDBClient, baseURI string) (*DDBCommitStore, *MockS3Client) {
	client := new(MockS3Client)
	return NewDDBCommitStore(NewStore(client, "test-bucket", "test/"), ddb, "hybridmem-commits", baseURI), client
}

func TestDDBCommitStore_NotFoundBeforeCommit(t *testing.T) {
	store, _ := newTestDDBCommitStore(newMockDDBClient(), "s3://test-bucket/test")

	_, err := store.Open(context.Background(), PointerName)
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestDDBCommitStore_FirstCommit(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestDDBCommitStore(newMockDDBClient(), "")

	require.NoError(t, store.Put(ctx, PointerName, []byte("snapshots/00000001.snap")))

	got, err := blobstore.ReadAll(ctx, store, PointerName)
	require.NoError(t, err)
	assert.Equal(t, "snapshots/00000001.snap", string(got))

	version, target, err := store.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), version)
	assert.Equal(t, "snapshots/00000001.snap", target)
}

func TestDDBCommitStore_MultipleCommits(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestDDBCommitStore(newMockDDBClient(), "s3://test-bucket/test")

	for i := 1; i <= 12; i++ {
		v, err := store.Commit(ctx, fmt.Sprintf("snapshots/%08d.snap", i))
		require.NoError(t, err)
		assert.Equal(t, uint64(i), v)
	}

	version, target, err := store.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(12), version)
	assert.Equal(t, "snapshots/00000012.snap", target)
}

func TestDDBCommitStore_ConcurrentCommits(t *testing.T) {
	ctx := context.Background()
	ddb := newMockDDBClient()
	store, _ := newTestDDBCommitStore(ddb, "s3://test-bucket/test")

	const writers = 10

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.Commit(ctx, fmt.Sprintf("snapshots/%08d.snap", i))

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrConcurrentModification):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, writers, successes+conflicts)

	version, _, err := store.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(successes), version, "every successful commit owns exactly one version")
}

func TestDDBCommitStore_IsolatedNamespaces(t *testing.T) {
	ctx := context.Background()
	ddb := newMockDDBClient()
	a, _ := newTestDDBCommitStore(ddb, "s3://bucket/a")
	b, _ := newTestDDBCommitStore(ddb, "s3://bucket/b")

	_, err := a.Commit(ctx, "snapshots/00000001.snap")
	require.NoError(t, err)

	version, _, err := b.Latest(ctx)
	require.NoError(t, err)
	assert.Zero(t, version)
}

func TestDDBCommitStore_OtherBlobsGoToS3(t *testing.T) {
	ctx := context.Background()
	store, client := newTestDDBCommitStore(newMockDDBClient(), "")

	client.On("PutObject", mock.Anything, mock.MatchedBy(func(input *s3.PutObjectInput) bool {
		return *input.Key == "test/snapshots/00000001.snap"
	})).Return(&s3.PutObjectOutput{}, nil).Once()

	require.NoError(t, store.Put(ctx, "snapshots/00000001.snap", []byte("snap")))
	client.AssertExpectations(t)
}
