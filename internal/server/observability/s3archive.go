// Copyright (c) 2026 F11eSync Authors. All rights reserved.
// Use of this source code is governed by the MIT license
// that can be found in the LICENSE file.

package observability

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Archiver periodically ships gzip segments produced by
// EventStore.rotate's archival path (see archiveDroppedEntries) to S3,
// deleting the local copy once the upload succeeds. Disabled by default
// (config.S3ArchiveConfig.Enabled).
type S3Archiver struct {
	client *s3.Client
	bucket string
	prefix string
	dir    string
	logger *slog.Logger
}

// NewS3Archiver resolves AWS credentials and returns an archiver watching
// dir. When accessKeyID/secretAccessKey are both set they pin static
// credentials; otherwise the standard aws-sdk-go-v2 default chain
// (environment, shared config, IMDS) is used.
func NewS3Archiver(ctx context.Context, bucket, prefix, region, accessKeyID, secretAccessKey, dir string, logger *slog.Logger) (*S3Archiver, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	if accessKeyID != "" && secretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	return &S3Archiver{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		prefix: prefix,
		dir:    dir,
		logger: logger,
	}, nil
}

// Run polls dir for archived segments every interval until ctx is
// cancelled, uploading and removing each one it finds.
func (a *S3Archiver) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.sweepOnce(ctx)
		}
	}
}

func (a *S3Archiver) sweepOnce(ctx context.Context) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			a.logger.Warn("s3archive: reading archive dir", "dir", a.dir, "error", err)
		}
		return
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		path := filepath.Join(a.dir, name)
		if err := a.uploadAndRemove(ctx, path, name); err != nil {
			a.logger.Warn("s3archive: uploading segment", "path", path, "error", err)
		}
	}
}

func (a *S3Archiver) uploadAndRemove(ctx context.Context, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	key := filepath.ToSlash(filepath.Join(a.prefix, name))
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return err
	}

	a.logger.Info("s3archive: uploaded segment", "key", key)
	return os.Remove(path)
}
