package archive

import (
	"bytes"
	"context"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/davidahmann/counterpoint/internal/config"
)

const partSize = 10 * 1024 * 1024

type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Archiver uploads to a bucket on AWS or any S3-compatible endpoint.
type S3Archiver struct {
	uploader uploader
	bucket   string
	prefix   string
}

func NewS3Archiver(cfg config.ArchiveConfig) *S3Archiver {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	client := s3.NewFromConfig(aws.Config{Region: region}, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.AccessKeyID != "" || cfg.SecretAccessKey != "" {
			o.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
		} else {
			o.Credentials = aws.AnonymousCredentials{}
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	up := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = partSize
	})
	return &S3Archiver{uploader: up, bucket: cfg.Bucket, prefix: cfg.Prefix}
}

func (a *S3Archiver) Archive(ctx context.Context, name string, content []byte) (string, error) {
	key := ObjectKey(a.prefix, name, content)
	_, err := a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(http.DetectContentType(content)),
	})
	if err != nil {
		return "", err
	}
	return "s3://" + a.bucket + "/" + key, nil
}
