package fetcher

import (
	"bytes"
	"context"

	"github.com/GabrielNunesIT/go-libs/logger"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/pkg/errors"
)

// S3 fetches objects with GetObject.
type S3 struct {
	client s3iface.S3API
	logger logger.ILogger
}

// NewS3 creates a fetcher using client.
func NewS3(client s3iface.S3API, log logger.ILogger) *S3 {
	return &S3{
		client: client,
		logger: log.SubLogger("S3Fetcher"),
	}
}

// Fetch reads s3://bucket/key into memory.
func (f *S3) Fetch(ctx context.Context, bucket, key string) ([]byte, error) {
	result, err := f.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok {
			switch aerr.Code() {
			case s3.ErrCodeNoSuchBucket, s3.ErrCodeNoSuchKey:
				return nil, errors.Wrapf(ErrNotFound, "s3://%s/%s: %s", bucket, key, aerr.Code())
			}
		}
		return nil, errors.Wrapf(err, "fetching s3://%s/%s", bucket, key)
	}
	defer result.Body.Close()

	buf := new(bytes.Buffer)
	if n := aws.Int64Value(result.ContentLength); n > 0 {
		buf.Grow(int(n))
	}
	if _, err := buf.ReadFrom(result.Body); err != nil {
		return nil, errors.Wrapf(err, "reading s3://%s/%s", bucket, key)
	}

	f.logger.Debugf("fetched object: bucket=%s, key=%s, bytes=%d", bucket, key, buf.Len())
	return buf.Bytes(), nil
}
