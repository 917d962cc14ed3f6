package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/senyabanana/proposal-service/internal/models"
	"github.com/senyabanana/proposal-service/internal/router/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// FileMeta описывает сохраняемый файл.
type FileMeta struct {
	ProposalID string
	Filename   string
	MimeType   string
}

// FileStore сохраняет вложения и возвращает ссылку на них.
type FileStore interface {
	Store(ctx context.Context, data []byte, meta FileMeta) (models.FileReference, error)
}

type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3FileStore хранит вложения в бакете S3.
type S3FileStore struct {
	client  putObjectAPI
	bucket  string
	baseURL string
	now     func() time.Time
}

// NewS3FileStore создает хранилище по конфигурации. S3_ENDPOINT позволяет
// работать с совместимыми хранилищами (MinIO и т.п.).
func NewS3FileStore(ctx context.Context, cfg config.Config) (*S3FileStore, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AwsRegion)}
	if cfg.AwsAccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AwsAccessKeyID,
			cfg.AwsSecretAccessKey,
			"",
		)))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	baseURL := cfg.S3PublicBaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.AwsS3Bucket, cfg.AwsRegion)
	}
	return newS3FileStore(client, cfg.AwsS3Bucket, baseURL), nil
}

func newS3FileStore(client putObjectAPI, bucket, baseURL string) *S3FileStore {
	return &S3FileStore{
		client:  client,
		bucket:  bucket,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

// Store загружает файл по ключу proposals/<proposalID>/<uuid>_<filename>.
func (s *S3FileStore) Store(ctx context.Context, data []byte, meta FileMeta) (models.FileReference, error) {
	id := uuid.NewString()
	filename := sanitizeFilename(meta.Filename)
	key := objectKey(meta.ProposalID, id, filename)

	mimeType := meta.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(mimeType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return models.FileReference{}, fmt.Errorf("failed to upload object %s: %w", key, err)
	}

	return models.FileReference{
		ID:         id,
		Filename:   filename,
		URL:        s.baseURL + "/" + key,
		Size:       int64(len(data)),
		MimeType:   mimeType,
		UploadedAt: s.now().UTC(),
	}, nil
}

func objectKey(proposalID, id, filename string) string {
	return fmt.Sprintf("proposals/%s/%s_%s", proposalID, id, filename)
}

// sanitizeFilename оставляет только базовое имя без разделителей пути.
func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == "/" || name == ".." {
		return "file"
	}
	return name
}
