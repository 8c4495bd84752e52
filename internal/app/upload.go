package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"dealer-pricing/internal/config"
)

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// exportUploader copies export files to the configured bucket.
type exportUploader struct {
	client objectPutter
	bucket string
	prefix string
	logger zerolog.Logger
}

func (a *App) newUploader(ctx context.Context) (*exportUploader, error) {
	cfg := a.Config.Export.S3
	if cfg.Bucket == "" {
		return nil, errors.New("export.s3.bucket not configured; cannot upload")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return newExportUploader(client, cfg, a.Logger), nil
}

func newExportUploader(client objectPutter, cfg config.S3Config, logger zerolog.Logger) *exportUploader {
	return &exportUploader{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		logger: logger.With().Str("component", "export_upload").Logger(),
	}
}

// UploadFile puts one local file under prefix/sub/<basename> and returns the key.
func (u *exportUploader) UploadFile(ctx context.Context, localPath, sub string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer file.Close()

	key := path.Join(u.prefix, sub, filepath.Base(localPath))
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String(contentType(localPath)),
	})
	if err != nil {
		return "", fmt.Errorf("upload s3://%s/%s: %w", u.bucket, key, err)
	}
	u.logger.Debug().Str("bucket", u.bucket).Str("key", key).Msg("object uploaded")
	return key, nil
}

func contentType(p string) string {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".csv":
		return "text/csv"
	case ".png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}
