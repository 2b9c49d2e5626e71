package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/h2non/filetype"
	config "github.com/maheshrc27/postcadence/configs"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// ObjectStorage persists uploaded media and returns a public URL for it.
type ObjectStorage interface {
	Put(ctx context.Context, data []byte, contentType string) (string, error)
}

// objectPutter is the subset of the S3 client the R2 service uses.
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type R2Service struct {
	client    objectPutter
	bucket    string
	publicURL string
}

// NewR2Service builds an S3 client against the Cloudflare R2 endpoint of the
// configured account.
func NewR2Service(ctx context.Context, cfg config.R2) (*R2Service, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("load r2 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID))
	})
	return newR2Service(client, cfg.BucketName, cfg.PublicURL), nil
}

func newR2Service(client objectPutter, bucket, publicURL string) *R2Service {
	return &R2Service{client: client, bucket: bucket, publicURL: strings.TrimRight(publicURL, "/")}
}

// Put uploads data under a random key and returns the public URL.
func (r *R2Service) Put(ctx context.Context, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty object")
	}

	id, err := gonanoid.New()
	if err != nil {
		return "", err
	}
	key := "media/" + id
	if kind, err := filetype.Match(data); err == nil && kind != filetype.Unknown {
		key += "." + kind.Extension
	}

	_, err = r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		slog.Info(err.Error())
		return "", fmt.Errorf("put object %s: %w", key, err)
	}

	return r.publicURL + "/" + key, nil
}
