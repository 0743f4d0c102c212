package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/loiht2/ai-vision-portal/config"
	"github.com/loiht2/ai-vision-portal/k8s"
)

// MinIOSecretName is the Secret holding endpoint, accesskey and secretkey
const MinIOSecretName = "minio-secret"

// MinIOClient archives uploaded prediction images in a single bucket
type MinIOClient struct {
	client *minio.Client
	bucket string
}

// MinIOConfig holds MinIO connection configuration
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// NewMinIOClientFromK8s creates a MinIO client using credentials from a Kubernetes secret
func NewMinIOClientFromK8s(ctx context.Context, k8sClient *k8s.Client, namespace, bucket string, useSSL bool) (*MinIOClient, error) {
	data, err := k8sClient.GetSecretData(ctx, namespace, MinIOSecretName, "endpoint", "accesskey", "secretkey")
	if err != nil {
		return nil, err
	}

	log.Printf("MinIO credentials loaded from %s/%s", namespace, MinIOSecretName)
	return NewMinIOClient(MinIOConfig{
		Endpoint:  data["endpoint"],
		AccessKey: data["accesskey"],
		SecretKey: data["secretkey"],
		Bucket:    bucket,
		UseSSL:    useSSL,
	})
}

// NewMinIOClient creates a MinIO client with explicit configuration
func NewMinIOClient(cfg MinIOConfig) (*MinIOClient, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio bucket is not configured")
	}
	minioClient, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
	}

	log.Printf("MinIO client initialized (endpoint: %s, bucket: %s)", cfg.Endpoint, cfg.Bucket)
	return &MinIOClient{client: minioClient, bucket: cfg.Bucket}, nil
}

// NewFromSettings builds the image archive described by settings, reading credentials
// from the cluster when a secret namespace is configured
func NewFromSettings(ctx context.Context, s config.MinIOSettings, k8sClient *k8s.Client) (*MinIOClient, error) {
	if s.SecretNamespace != "" {
		if k8sClient == nil {
			return nil, fmt.Errorf("minio secret namespace %q set without a Kubernetes client", s.SecretNamespace)
		}
		return NewMinIOClientFromK8s(ctx, k8sClient, s.SecretNamespace, s.Bucket, s.UseSSL)
	}
	return NewMinIOClient(MinIOConfig{
		Endpoint:  s.Endpoint,
		AccessKey: s.AccessKey,
		SecretKey: s.SecretKey,
		Bucket:    s.Bucket,
		UseSSL:    s.UseSSL,
	})
}

// EnsureBucket creates the bucket if it doesn't exist
func (m *MinIOClient) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("failed to check if bucket exists: %w", err)
	}

	if !exists {
		log.Printf("Creating MinIO bucket: %s", m.bucket)
		if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}
	return nil
}

// ArchiveImage stores the original upload and a JPEG thumbnail.
// It returns the object key of the original; the thumbnail lives next to it.
func (m *MinIOClient) ArchiveImage(ctx context.Context, filename, contentType string, content []byte) (string, error) {
	key := ObjectKey(time.Now(), filename)

	if _, err := m.UploadFile(ctx, key, bytes.NewReader(content), int64(len(content)), contentType); err != nil {
		return "", err
	}

	thumb, err := Thumbnail(content, ThumbnailSize)
	if err != nil {
		// non-image uploads are still archived, just without a preview
		log.Printf("Skipping thumbnail for %s: %v", key, err)
		return key, nil
	}
	if _, err := m.UploadFile(ctx, ThumbnailKey(key), bytes.NewReader(thumb), int64(len(thumb)), "image/jpeg"); err != nil {
		log.Printf("Failed to store thumbnail for %s: %v", key, err)
	}
	return key, nil
}

// OpenThumbnail streams the thumbnail stored for an archived image
func (m *MinIOClient) OpenThumbnail(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, ThumbnailKey(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	// GetObject is lazy, Stat surfaces a missing object now
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	return obj, nil
}

// UploadFile uploads a file to MinIO
func (m *MinIOClient) UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (minio.UploadInfo, error) {
	if err := m.EnsureBucket(ctx); err != nil {
		return minio.UploadInfo{}, err
	}

	uploadInfo, err := m.client.PutObject(ctx, m.bucket, objectName, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return minio.UploadInfo{}, fmt.Errorf("failed to upload file: %w", err)
	}

	log.Printf("File uploaded successfully: %s/%s (size: %d bytes)", m.bucket, objectName, uploadInfo.Size)
	return uploadInfo, nil
}

// ObjectKey builds a unique, date-prefixed key that keeps the original file extension
func ObjectKey(now time.Time, filename string) string {
	ext := strings.ToLower(path.Ext(path.Base(strings.ReplaceAll(filename, "\\", "/"))))
	if len(ext) > 10 {
		ext = ""
	}
	return fmt.Sprintf("uploads/%s/%s%s", now.UTC().Format("2006/01/02"), uuid.New().String(), ext)
}

// ThumbnailKey is the object key of the thumbnail for an archived image
func ThumbnailKey(key string) string {
	return "thumbnails/" + strings.TrimPrefix(key, "uploads/") + ".jpg"
}
