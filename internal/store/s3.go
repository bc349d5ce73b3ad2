package store

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/subinject/subinject/internal/config"
)

// artifactContentType is what the local file server hands back, so artifacts
// are stored with the same type.
const artifactContentType = "text/plain; charset=utf-8"

// S3Store keeps artifacts in an object storage bucket, keyed
// {session}/{filename}.
type S3Store struct {
	client     *minio.Client
	bucketName string
}

// NewS3Store creates an object-storage backed store and ensures its bucket
// exists.
func NewS3Store(cfg config.S3Config) (*S3Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{
			Region: cfg.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &S3Store{
		client:     client,
		bucketName: cfg.BucketName,
	}, nil
}

func (s *S3Store) objectName(session, filename string) (string, error) {
	if !validComponent(session) || !validComponent(filename) {
		return "", ErrInvalidPath
	}
	return session + "/" + filename, nil
}

// Write uploads an artifact to the bucket
func (s *S3Store) Write(ctx context.Context, session, filename string, data []byte) error {
	name, err := s.objectName(session, filename)
	if err != nil {
		return err
	}

	_, err = s.client.PutObject(ctx, s.bucketName, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: artifactContentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload artifact: %w", err)
	}

	return nil
}

// Read downloads an artifact from the bucket
func (s *S3Store) Read(ctx context.Context, session, filename string) ([]byte, error) {
	name, err := s.objectName(session, filename)
	if err != nil {
		return nil, err
	}

	object, err := s.client.GetObject(ctx, s.bucketName, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to download artifact: %w", err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}

	return data, nil
}

// Exists checks whether an artifact is present in the bucket
func (s *S3Store) Exists(ctx context.Context, session, filename string) (bool, error) {
	name, err := s.objectName(session, filename)
	if err != nil {
		return false, err
	}

	_, err = s.client.StatObject(ctx, s.bucketName, name, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat artifact: %w", err)
	}

	return true, nil
}
