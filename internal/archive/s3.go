// Package archive keeps a copy of every raw remote record, either in
// S3-compatible object storage or in a local directory.
package archive

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/vksync/internal/models"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// Putter is the part of the S3 client the archive uses.
type Putter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Options struct {
	Bucket       string
	Region       string
	BaseEndpoint string
	AccessKey    string
	SecretKey    string
}

type S3Archive struct {
	client Putter
	bucket string
}

func New(client Putter, bucket string) *S3Archive {
	return &S3Archive{client: client, bucket: bucket}
}

// NewS3Archive builds a client from opts. Static credentials are used when
// AccessKey is set, the default AWS chain otherwise. A BaseEndpoint switches
// to path-style addressing for MinIO and friends.
func NewS3Archive(ctx context.Context, opts Options) (*S3Archive, error) {
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")))
	}

	cfg, err := loadDefaultAWSConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if opts.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(opts.BaseEndpoint)
			o.UsePathStyle = true
		}
	})
	return New(client, opts.Bucket), nil
}

// ObjectKey is "<entity>/<natural key>.json".
func ObjectKey(entity string, key models.Key) string {
	return fmt.Sprintf("%s/%s.json", entity, key)
}

// Store uploads payload, replacing the previous copy.
func (a *S3Archive) Store(ctx context.Context, entity string, key models.Key, payload []byte) error {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(ObjectKey(entity, key)),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("archive %s %s: %w", entity, key, err)
	}
	return nil
}
