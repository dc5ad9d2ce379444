package service

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/altovisual/artist-management-sub002/config"
)

// PDFArchive keeps a copy of every PDF sent for signature
type PDFArchive interface {
	Archive(ctx context.Context, contractID, documentCode string, pdf []byte) (string, error)
}

// MinioArchive stores signature PDFs in a MinIO bucket
type MinioArchive struct {
	client *minio.Client
	bucket string
	config *config.MinioConfig
}

func NewMinioArchive(cfg *config.MinioConfig) (*MinioArchive, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinioArchive{
		client: client,
		bucket: cfg.Bucket,
		config: cfg,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (a *MinioArchive) EnsureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	if !exists {
		if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

// ObjectName is where the PDF of a provider document is stored
func ObjectName(contractID, documentCode string) string {
	return path.Join("signatures", contractID, documentCode+".pdf")
}

// Archive uploads the PDF and returns a presigned download URL
func (a *MinioArchive) Archive(ctx context.Context, contractID, documentCode string, pdf []byte) (string, error) {
	objectName := ObjectName(contractID, documentCode)

	_, err := a.client.PutObject(ctx, a.bucket, objectName, bytes.NewReader(pdf), int64(len(pdf)), minio.PutObjectOptions{
		ContentType: "application/pdf",
		UserMetadata: map[string]string{
			"contract-id":   contractID,
			"document-code": documentCode,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload pdf: %w", err)
	}

	return a.PresignedURL(ctx, objectName)
}

// PresignedURL generates a download URL valid for the configured number of days
func (a *MinioArchive) PresignedURL(ctx context.Context, objectName string) (string, error) {
	expiry := time.Duration(a.config.ExpireDays) * 24 * time.Hour
	u, err := a.client.PresignedGetObject(ctx, a.bucket, objectName, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return u.String(), nil
}
