package mirror

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type s3PutAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader writes objects to an S3 bucket
type S3Uploader struct {
	client s3PutAPI
	bucket string
}

// NewS3Uploader loads the default AWS configuration, optionally pinned to region
func NewS3Uploader(ctx context.Context, bucket, region string) (*S3Uploader, error) {
	var awsConfig aws.Config
	var err error
	if region != "" {
		awsConfig, err = awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	} else {
		awsConfig, err = awsconfig.LoadDefaultConfig(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &S3Uploader{client: s3.NewFromConfig(awsConfig), bucket: bucket}, nil
}

func (u *S3Uploader) Put(ctx context.Context, key string, data []byte) error {
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("text/plain; charset=utf-8"),
	})
	return err
}

func (u *S3Uploader) Location(key string) string {
	return fmt.Sprintf("s3://%s/%s", u.bucket, key)
}
