package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"
)

// S3 stores files in a MinIO / S3 bucket
type S3 struct {
	client *minio.Client
	bucket string
}

// NewS3 connects and makes sure the bucket exists
func NewS3(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool) (*S3, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client for %s: %w", endpoint, err)
	}
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to make bucket %s: %w", bucket, err)
		}
		logrus.WithField("bucket", bucket).Info("Upload bucket created")
	}
	return &S3{client: client, bucket: bucket}, nil
}

func (s *S3) Save(ctx context.Context, kind, originalName string, r io.Reader, size int64, contentType string) (string, error) {
	key, err := ObjectKey(kind, originalName)
	if err != nil {
		return "", err
	}
	info, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s to bucket %s: %w", key, s.bucket, err)
	}
	logrus.WithFields(logrus.Fields{
		"bucket": info.Bucket,
		"key":    info.Key,
		"size":   info.Size,
	}).Info("Upload stored")
	return key, nil
}
