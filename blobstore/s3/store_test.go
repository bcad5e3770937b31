package s3

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/hupe1980/hybridmem/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestStore_Open(t *testing.T) {
	mockClient := new(MockS3Client)
	store := NewStore(mockClient, "test-bucket", "prefix")

	t.Run("NotFound", func(t *testing.T) {
		mockClient.On("HeadObject", mock.Anything, mock.MatchedBy(func(input *s3.HeadObjectInput) bool {
			return *input.Bucket == "test-bucket" && *input.Key == "prefix/foo"
		})).Return(nil, &types.NotFound{}).Once()

		_, err := store.Open(context.Background(), "foo")
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
	})

	t.Run("Success", func(t *testing.T) {
		mockClient.On("HeadObject", mock.Anything, mock.MatchedBy(func(input *s3.HeadObjectInput) bool {
			return *input.Bucket == "test-bucket" && *input.Key == "prefix/bar"
		})).Return(&s3.HeadObjectOutput{ContentLength: aws.Int64(100)}, nil).Once()

		b, err := store.Open(context.Background(), "bar")
		require.NoError(t, err)
		assert.Equal(t, int64(100), b.Size())
	})

	mockClient.AssertExpectations(t)
}

func TestStore_Put(t *testing.T) {
	mockClient := new(MockS3Client)
	store := NewStore(mockClient, "test-bucket", "prefix")

	mockClient.On("PutObject", mock.Anything, mock.MatchedBy(func(input *s3.PutObjectInput) bool {
		return *input.Key == "prefix/LATEST" &&
			aws.ToInt64(input.ContentLength) == 5 &&
			len(aws.ToString(input.ChecksumCRC32C)) == 8
	})).Return(&s3.PutObjectOutput{}, nil).Once()

	require.NoError(t, store.Put(context.Background(), "LATEST", []byte("hello")))
	mockClient.AssertExpectations(t)
}

func TestStore_PutWithoutChecksum(t *testing.T) {
	mockClient := new(MockS3Client)
	cfg := DefaultUploadConfig()
	cfg.EnableChecksum = false
	store := NewStore(mockClient, "b", "", WithUploadConfig(cfg))

	mockClient.On("PutObject", mock.Anything, mock.MatchedBy(func(input *s3.PutObjectInput) bool {
		return *input.Key == "x" && input.ChecksumCRC32C == nil
	})).Return(&s3.PutObjectOutput{}, nil).Once()

	require.NoError(t, store.Put(context.Background(), "x", []byte("data")))
	mockClient.AssertExpectations(t)
}

func TestStore_PutIfNotExists(t *testing.T) {
	mockClient := new(MockS3Client)
	store := NewStore(mockClient, "b", "p")

	mockClient.On("PutObject", mock.Anything, mock.MatchedBy(func(input *s3.PutObjectInput) bool {
		return *input.Key == "p/new" && aws.ToString(input.IfNoneMatch) == "*"
	})).Return(&s3.PutObjectOutput{}, nil).Once()
	mockClient.On("PutObject", mock.Anything, mock.MatchedBy(func(input *s3.PutObjectInput) bool {
		return *input.Key == "p/taken"
	})).Return(nil, &smithy.GenericAPIError{Code: "PreconditionFailed"}).Once()

	require.NoError(t, store.PutIfNotExists(context.Background(), "new", []byte("a")))
	assert.ErrorIs(t, store.PutIfNotExists(context.Background(), "taken", []byte("b")), ErrConflict)
}

func TestStore_Delete(t *testing.T) {
	mockClient := new(MockS3Client)
	store := NewStore(mockClient, "test-bucket", "prefix")

	mockClient.On("DeleteObject", mock.Anything, mock.MatchedBy(func(input *s3.DeleteObjectInput) bool {
		return *input.Bucket == "test-bucket" && *input.Key == "prefix/del"
	})).Return(&s3.DeleteObjectOutput{}, nil).Once()

	assert.NoError(t, store.Delete(context.Background(), "del"))
}

func TestStore_List(t *testing.T) {
	mockClient := new(MockS3Client)
	store := NewStore(mockClient, "test-bucket", "prefix/")

	mockClient.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(input *s3.ListObjectsV2Input) bool {
		return *input.Bucket == "test-bucket" && *input.Prefix == "prefix"
	})).Return(&s3.ListObjectsV2Output{
		Contents: []types.Object{
			{Key: aws.String("prefix/snapshots/00000002.snap")},
			{Key: aws.String("prefix/LATEST")},
		},
	}, nil).Once()

	names, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"LATEST", "snapshots/00000002.snap"}, names)
}

func TestStore_List_Pagination(t *testing.T) {
	mockClient := new(MockS3Client)
	store := NewStore(mockClient, "test-bucket", "prefix/")

	mockClient.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(input *s3.ListObjectsV2Input) bool {
		return input.ContinuationToken == nil
	})).Return(&s3.ListObjectsV2Output{
		Contents:              []types.Object{{Key: aws.String("prefix/2")}},
		IsTruncated:           aws.Bool(true),
		NextContinuationToken: aws.String("token"),
	}, nil).Once()

	mockClient.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(input *s3.ListObjectsV2Input) bool {
		return aws.ToString(input.ContinuationToken) == "token"
	})).Return(&s3.ListObjectsV2Output{
		Contents: []types.Object{{Key: aws.String("prefix/1")}},
	}, nil).Once()

	names, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, names)
}

func TestBlob_ReadAt(t *testing.T) {
	mockClient := new(MockS3Client)
	b := &blob{client: mockClient, bucket: "b", key: "k", size: 10}

	mockClient.On("GetObject", mock.Anything, mock.MatchedBy(func(input *s3.GetObjectInput) bool {
		return *input.Bucket == "b" && *input.Key == "k" && *input.Range == "bytes=0-4"
	})).Return(&s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader("hello"))}, nil).Once()

	buf := make([]byte, 5)
	n, err := b.ReadAt(context.Background(), buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", string(buf))

	t.Run("ShortTail", func(t *testing.T) {
		mockClient.On("GetObject", mock.Anything, mock.MatchedBy(func(input *s3.GetObjectInput) bool {
			return *input.Range == "bytes=8-9"
		})).Return(&s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader("ld"))}, nil).Once()

		buf := make([]byte, 5)
		n, err := b.ReadAt(context.Background(), buf, 8)
		assert.Equal(t, 2, n)
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("PastEnd", func(t *testing.T) {
		_, err := b.ReadAt(context.Background(), make([]byte, 1), 10)
		assert.ErrorIs(t, err, io.EOF)
	})
}

func TestBlob_ReadRange(t *testing.T) {
	mockClient := new(MockS3Client)
	b := &blob{client: mockClient, bucket: "b", key: "k", size: 10}

	mockClient.On("GetObject", mock.Anything, mock.MatchedBy(func(input *s3.GetObjectInput) bool {
		return *input.Range == "bytes=2-6"
	})).Return(&s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader("llo W"))}, nil).Once()

	r, err := b.ReadRange(context.Background(), 2, 5)
	require.NoError(t, err)
	defer r.Close()

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "llo W", string(data))

	empty, err := b.ReadRange(context.Background(), 10, 5)
	require.NoError(t, err)
	data, err = io.ReadAll(empty)
	require.NoError(t, err)
	assert.Empty(t, data)

	_, err = b.ReadRange(context.Background(), 11, 1)
	assert.ErrorIs(t, err, io.EOF)
}

func TestStore_Create(t *testing.T) {
	mockClient := new(MockS3Client)
	store := NewStore(mockClient, "test-bucket", "prefix")

	var uploaded string
	mockClient.On("PutObject", mock.Anything, mock.MatchedBy(func(input *s3.PutObjectInput) bool {
		return *input.Bucket == "test-bucket" && *input.Key == "prefix/new"
	})).Run(func(args mock.Arguments) {
		input := args.Get(1).(*s3.PutObjectInput)
		data, _ := io.ReadAll(input.Body)
		uploaded = string(data)
	}).Return(&s3.PutObjectOutput{}, nil).Once()

	wb, err := store.Create(context.Background(), "new")
	require.NoError(t, err)

	_, err = wb.Write([]byte("content"))
	require.NoError(t, err)
	require.NoError(t, wb.Close())
	assert.Equal(t, "content", uploaded)

	// Close is idempotent.
	assert.NoError(t, wb.Close())
	_, err = wb.Write([]byte("late"))
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}

func TestComputeCRC32C(t *testing.T) {
	// CRC32C("123456789") = 0xE3069283
	assert.Equal(t, "4waSgw==", computeCRC32C([]byte("123456789")))
}
