package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"citylink/internal/config"
	"citylink/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// S3Store writes images to an S3-compatible bucket (AWS, R2, MinIO).
type S3Store struct {
	client    *s3.Client
	bucket    string
	publicURL string
	now       func() time.Time
}

func NewS3Store(_ context.Context, cfg config.UploadConfig) (*S3Store, error) {
	if cfg.S3Bucket == "" {
		return nil, errors.New("storage: S3_BUCKET is required for the s3 driver")
	}
	opts := s3.Options{
		Region: cfg.S3Region,
		Credentials: credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKey,
			cfg.S3SecretKey,
			"",
		),
	}
	if cfg.S3Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.S3Endpoint)
		opts.UsePathStyle = true
	}

	public := strings.TrimRight(cfg.S3PublicURL, "/")
	if public == "" && cfg.S3Endpoint != "" {
		public = strings.TrimRight(cfg.S3Endpoint, "/") + "/" + cfg.S3Bucket
	}
	return &S3Store{
		client:    s3.New(opts),
		bucket:    cfg.S3Bucket,
		publicURL: public,
		now:       time.Now,
	}, nil
}

func (s *S3Store) Save(ctx context.Context, u Upload) (models.Image, error) {
	ext, ok := extensionFor(u.ContentType)
	if !ok {
		return models.Image{}, ErrFileType
	}
	src, err := u.Open()
	if err != nil {
		return models.Image{}, err
	}
	defer src.Close()

	name := uuid.NewString() + ext
	key := "reports/" + name
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          src,
		ContentType:   aws.String(u.ContentType),
		ContentLength: aws.Int64(u.Size),
	})
	if err != nil {
		return models.Image{}, err
	}

	return models.Image{
		Filename:     name,
		OriginalName: u.Filename,
		Path:         s.publicURL + "/" + key,
		Size:         u.Size,
		UploadedAt:   s.now().UTC(),
	}, nil
}

func (s *S3Store) Delete(ctx context.Context, path string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.keyOf(path)),
	})
	return err
}

func (s *S3Store) keyOf(path string) string {
	if s.publicURL != "" {
		path = strings.TrimPrefix(path, s.publicURL)
	}
	return strings.TrimPrefix(path, "/")
}
