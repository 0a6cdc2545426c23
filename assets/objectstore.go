package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"path/filepath"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"holodeck/config"
)

// ObjectStorage keeps binaries in a MinIO/S3 bucket under the uploads/ prefix.
type ObjectStorage struct {
	client *minio.Client
	bucket string
}

// NewObjectStorage connects to the configured bucket, creating it when missing.
func NewObjectStorage(ctx context.Context, cfg config.Minio) (*ObjectStorage, error) {
	if !cfg.Enabled() {
		return nil, errors.New("assets: object storage not configured")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("assets: init minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("assets: check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("assets: create bucket: %w", err)
		}
	}
	return &ObjectStorage{client: client, bucket: cfg.Bucket}, nil
}

func (s *ObjectStorage) objectName(name string) (string, error) {
	clean, err := sanitizeName(name)
	if err != nil {
		return "", err
	}
	return path.Join(uploadPrefix, clean), nil
}

func (s *ObjectStorage) Exists(ctx context.Context, name string) (bool, error) {
	object, err := s.objectName(name)
	if err != nil {
		return false, err
	}
	_, err = s.client.StatObject(ctx, s.bucket, object, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *ObjectStorage) Put(ctx context.Context, name string, src io.Reader) (int64, error) {
	object, err := s.objectName(name)
	if err != nil {
		return 0, err
	}
	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	info, err := s.client.PutObject(ctx, s.bucket, object, src, -1, minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "public, max-age=86400",
	})
	if err != nil {
		return 0, fmt.Errorf("assets: upload object: %w", err)
	}
	return info.Size, nil
}

func (s *ObjectStorage) Open(ctx context.Context, name string) (*Blob, error) {
	object, err := s.objectName(name)
	if err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, object, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	stat, err := obj.Stat()
	if err != nil {
		obj.Close()
		if isNoSuchKey(err) {
			return nil, ErrBlobNotFound
		}
		return nil, err
	}
	return &Blob{Body: obj, Size: stat.Size, ContentType: stat.ContentType, ModTime: stat.LastModified}, nil
}

func (s *ObjectStorage) Remove(ctx context.Context, name string) error {
	object, err := s.objectName(name)
	if err != nil {
		return err
	}
	return s.client.RemoveObject(ctx, s.bucket, object, minio.RemoveObjectOptions{})
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}
