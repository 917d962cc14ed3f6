package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockS3 struct {
	mock.Mock
	body string
}

func (m *mockS3) PutObject(ctx context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(aws.ToString(params.Bucket), aws.ToString(params.ContentType))
	if params.Body != nil {
		b, _ := io.ReadAll(params.Body)
		m.body = string(b)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.PutObjectOutput), args.Error(1)
}

func TestS3FileStore_Store(t *testing.T) {
	client := new(mockS3)
	client.On("PutObject", "bucket", "application/pdf").Return(&s3.PutObjectOutput{}, nil)
	store := newS3FileStore(client, "bucket", "https://cdn.example.com/")

	ref, err := store.Store(context.Background(), []byte("%PDF"), FileMeta{
		ProposalID: "prop-1",
		Filename:   "../../quote.pdf",
		MimeType:   "application/pdf",
	})
	require.NoError(t, err)

	client.AssertExpectations(t)
	assert.Equal(t, "%PDF", client.body)
	assert.Equal(t, "quote.pdf", ref.Filename)
	assert.Equal(t, int64(4), ref.Size)
	assert.Equal(t, "application/pdf", ref.MimeType)
	assert.NotEmpty(t, ref.ID)
	assert.True(t, strings.HasPrefix(ref.URL, "https://cdn.example.com/proposals/prop-1/"+ref.ID+"_"))
	assert.False(t, ref.UploadedAt.IsZero())
}

func TestS3FileStore_StoreError(t *testing.T) {
	client := new(mockS3)
	client.On("PutObject", "bucket", "application/octet-stream").Return(nil, errors.New("denied"))
	store := newS3FileStore(client, "bucket", "https://cdn.example.com")

	_, err := store.Store(context.Background(), []byte("x"), FileMeta{ProposalID: "p", Filename: "a.bin"})
	assert.ErrorContains(t, err, "denied")
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"plan.png":            "plan.png",
		"dir/sub/plan.png":    "plan.png",
		`C:\Users\me\a b.txt`: "a b.txt",
		"":                    "file",
		"..":                  "file",
	}
	for in, want := range tests {
		assert.Equal(t, want, sanitizeFilename(in), in)
	}
}
