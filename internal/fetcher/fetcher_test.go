package fetcher

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/GabrielNunesIT/s3-ingestor/internal/testutil"
)

type mockS3 struct {
	s3iface.S3API
	mock.Mock
}

func (m *mockS3) GetObjectWithContext(ctx aws.Context, input *s3.GetObjectInput, opts ...request.Option) (*s3.GetObjectOutput, error) {
	args := m.Called(aws.StringValue(input.Bucket), aws.StringValue(input.Key))
	out, _ := args.Get(0).(*s3.GetObjectOutput)
	return out, args.Error(1)
}

func TestS3_Fetch(t *testing.T) {
	client := &mockS3{}
	client.On("GetObjectWithContext", "b1", "incoming/data.csv").Return(&s3.GetObjectOutput{
		Body:          io.NopCloser(strings.NewReader("id,name\n1,Alice\n")),
		ContentLength: aws.Int64(16),
	}, nil)

	data, err := NewS3(client, testutil.NewTestLogger()).Fetch(context.Background(), "b1", "incoming/data.csv")
	require.NoError(t, err)
	assert.Equal(t, "id,name\n1,Alice\n", string(data))
	client.AssertExpectations(t)
}

func TestS3_FetchErrors(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantNotFound bool
	}{
		{name: "No Such Key", err: awserr.New(s3.ErrCodeNoSuchKey, "gone", nil), wantNotFound: true},
		{name: "No Such Bucket", err: awserr.New(s3.ErrCodeNoSuchBucket, "gone", nil), wantNotFound: true},
		{name: "Access Denied", err: awserr.New("AccessDenied", "denied", nil)},
		{name: "Transport", err: errors.New("connection reset")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mockS3{}
			client.On("GetObjectWithContext", "b1", "k").Return(nil, tt.err)

			_, err := NewS3(client, testutil.NewTestLogger()).Fetch(context.Background(), "b1", "k")
			require.Error(t, err)
			assert.Equal(t, tt.wantNotFound, errors.Is(err, ErrNotFound))
		})
	}
}

func TestLocal_Fetch(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "b1", "incoming"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b1", "incoming", "data.csv"), []byte("a\n1\n"), 0o644))

	f := NewLocal(root, testutil.NewTestLogger())

	data, err := f.Fetch(context.Background(), "b1", "incoming/data.csv")
	require.NoError(t, err)
	assert.Equal(t, "a\n1\n", string(data))

	_, err = f.Fetch(context.Background(), "b1", "incoming/missing.csv")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.Fetch(context.Background(), "b1", "../../etc/passwd")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestLocal_FetchStaysInBucket(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "b2"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b2", "secret.csv"), []byte("x\n"), 0o644))

	f := NewLocal(root, testutil.NewTestLogger())

	tests := []struct {
		name   string
		bucket string
		key    string
	}{
		{name: "Key Into Sibling Bucket", bucket: "b1", key: "../b2/secret.csv"},
		{name: "Key Is Bucket Directory", bucket: "b1", key: ""},
		{name: "Bucket Escapes Root", bucket: "..", key: "secret.csv"},
		{name: "Empty Bucket", bucket: "", key: "b2/secret.csv"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := f.Fetch(context.Background(), tt.bucket, tt.key)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "escapes")
			assert.Nil(t, data)
		})
	}

	data, err := f.Fetch(context.Background(), "b2", "secret.csv")
	require.NoError(t, err)
	assert.Equal(t, "x\n", string(data))
}
