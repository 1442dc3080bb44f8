// Package storage keeps original receipt images in MinIO so reviewed
// extractions can be audited against the source scan. Optional: without
// configuration the service simply skips image retention.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var Client *minio.Client
var BucketName string

func Init() error {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		endpoint = "minio:9000"
	}

	accessKey := os.Getenv("MINIO_ACCESS_KEY")
	secretKey := os.Getenv("MINIO_SECRET_KEY")
	if accessKey == "" || secretKey == "" {
		return fmt.Errorf("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required")
	}

	BucketName = os.Getenv("MINIO_BUCKET")
	if BucketName == "" {
		BucketName = "receipts"
	}

	useSSL := os.Getenv("MINIO_USE_SSL") == "true"

	var err error
	Client, err = minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return fmt.Errorf("failed to create MinIO client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := Client.BucketExists(ctx, BucketName)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		return fmt.Errorf("bucket %s does not exist", BucketName)
	}

	return nil
}

// NewObjectFilename generates a collision-free stored filename for an
// upload: unix timestamp, a uuid fragment, and the content-type extension.
// Client-supplied filenames never become object names.
func NewObjectFilename(contentType string) string {
	return fmt.Sprintf("%d_%s%s", time.Now().Unix(), uuid.New().String()[:8], GetFileExtension(contentType))
}

// UploadReceiptImage stores an original scan under
// {userID}/YYYY/MM/{timestamp}_{uuid8}{ext} and returns the object path
// for persistence.
func UploadReceiptImage(ctx context.Context, userID string, reader io.Reader, size int64, contentType string) (string, error) {
	now := time.Now()
	objectName := fmt.Sprintf("%s/%d/%02d/%s", userID, now.Year(), now.Month(), NewObjectFilename(contentType))

	_, err := Client.PutObject(ctx, BucketName, objectName, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}

	return fmt.Sprintf("%s/%s", BucketName, objectName), nil
}

// GetPresignedURL generates a 24h viewing URL for a stored image.
func GetPresignedURL(ctx context.Context, objectPath string) (string, error) {
	url, err := Client.PresignedGetObject(ctx, BucketName, stripBucket(objectPath), 24*time.Hour, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return url.String(), nil
}

// DeleteImage removes a stored image.
func DeleteImage(ctx context.Context, objectPath string) error {
	return Client.RemoveObject(ctx, BucketName, stripBucket(objectPath), minio.RemoveObjectOptions{})
}

func stripBucket(objectPath string) string {
	return strings.TrimPrefix(objectPath, BucketName+"/")
}

// GetFileExtension maps an upload content type onto a file extension.
func GetFileExtension(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "application/pdf":
		return ".pdf"
	default:
		return ".bin"
	}
}
