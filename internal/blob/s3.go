package blob

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config configures an S3-compatible bucket such as MinIO.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// S3Store keeps blobs in one bucket. Checksums are recorded as user metadata
// so Open can report them without reading the object.
type S3Store struct {
	client *minio.Client
	bucket string
}

const checksumMeta = "Blake3"

// NewS3Store connects to the bucket, creating it when missing.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("s3 bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}
	return &S3Store{client: client, bucket: cfg.Bucket}, nil
}

// Put hashes the body while uploading it and then records the checksum with
// an in-place metadata copy.
func (s *S3Store) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (Object, error) {
	key, err := CleanKey(key)
	if err != nil {
		return Object{}, err
	}
	if contentType == "" {
		contentType = contentTypeOf(key)
	}
	hr := newHashingReader(r)
	info, err := s.client.PutObject(ctx, s.bucket, key, hr, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return Object{}, fmt.Errorf("put %s: %w", key, err)
	}
	sum := hr.Sum()
	_, err = s.client.CopyObject(ctx,
		minio.CopyDestOptions{
			Bucket:          s.bucket,
			Object:          key,
			UserMetadata:    map[string]string{checksumMeta: sum},
			ReplaceMetadata: true,
		},
		minio.CopySrcOptions{Bucket: s.bucket, Object: key},
	)
	if err != nil {
		return Object{}, fmt.Errorf("tag %s: %w", key, err)
	}
	return Object{Key: key, Size: info.Size, ContentType: contentType, Checksum: sum, ModTime: info.LastModified}, nil
}

func (s *S3Store) Open(ctx context.Context, key string) (io.ReadCloser, Object, error) {
	key, err := CleanKey(key)
	if err != nil {
		return nil, Object{}, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, Object{}, s.mapErr("open", key, err)
	}
	st, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, Object{}, s.mapErr("open", key, err)
	}
	return obj, Object{
		Key:         key,
		Size:        st.Size,
		ContentType: st.ContentType,
		Checksum:    st.UserMetadata[checksumMeta],
		ModTime:     st.LastModified,
	}, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	key, err := CleanKey(key)
	if err != nil {
		return err
	}
	if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err != nil {
		return s.mapErr("delete", key, err)
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return s.mapErr("delete", key, err)
	}
	return nil
}

func (s *S3Store) Ping(ctx context.Context) error {
	if _, err := s.client.BucketExists(ctx, s.bucket); err != nil {
		return fmt.Errorf("s3 bucket %s: %w", s.bucket, err)
	}
	return nil
}

func (s *S3Store) mapErr(op, key string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound":
		return ErrNotFound
	}
	return fmt.Errorf("%s %s: %w", op, key, err)
}
