package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// S3Config holds configuration for S3-compatible storage
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // Optional: for DO Spaces, R2, MinIO
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
}

// S3Uploader archives dataset snapshots to S3-compatible storage
type S3Uploader struct {
	client *s3.Client
	bucket string
	prefix string
}

func NewS3Uploader(ctx context.Context, cfg S3Config) (*S3Uploader, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var client *s3.Client
	if cfg.Endpoint != "" {
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	} else {
		client = s3.NewFromConfig(awsCfg)
	}

	return &S3Uploader{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

func (u *S3Uploader) Upload(ctx context.Context, key string, data io.Reader, contentType string) error {
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        data,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

// Archive uploads each file under a key scoped to the run.
func (u *S3Uploader) Archive(ctx context.Context, runID uuid.UUID, startedAt time.Time, files ...string) error {
	for _, file := range files {
		if err := u.archiveFile(ctx, SnapshotKey(u.prefix, runID, startedAt, file), file); err != nil {
			return err
		}
	}
	return nil
}

func (u *S3Uploader) archiveFile(ctx context.Context, key, file string) error {
	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("open %s: %w", file, err)
	}
	defer f.Close()

	if err := u.Upload(ctx, key, f, "text/csv"); err != nil {
		return fmt.Errorf("archive %s: %w", file, err)
	}
	return nil
}

// SnapshotKey lays snapshots out as prefix/YYYY/MM/DD/<run uuid>/<file name>.
func SnapshotKey(prefix string, runID uuid.UUID, startedAt time.Time, file string) string {
	return path.Join(prefix, startedAt.UTC().Format("2006/01/02"), runID.String(), filepath.Base(file))
}
