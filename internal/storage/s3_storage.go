package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	aws_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"visionsync/backend/internal/config"
)

// IS3Storage defines the interface for S3 operations. Lead exports are
// archived to the bucket by the background export task; presigned GET URLs
// let the back-office download an archive without routing the bytes through
// the API.
type IS3Storage interface {
	ArchiveExport(ctx context.Context, data []byte, contentType string) (string, error)
	GeneratePresignedGetURL(ctx context.Context, objectKey string) (string, error)
}

// s3Storage implements IS3Storage.
type s3Storage struct {
	cfg           *config.Config
	s3Client      *s3.Client
	presignClient *s3.PresignClient
}

// NewS3Storage creates a new S3 storage service.
func NewS3Storage(cfg *config.Config) (IS3Storage, error) {
	awsCfg, err := aws_config.LoadDefaultConfig(context.TODO(),
		aws_config.WithRegion(cfg.AwsRegion),
		// Use static credentials from config for simplicity
		// For production, prefer IAM roles or other secure credential methods
		aws_config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AwsAccessKeyID,
			cfg.AwsSecretAccessKey,
			"", // session token
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg)
	presignClient := s3.NewPresignClient(s3Client)

	return &s3Storage{
		cfg:           cfg,
		s3Client:      s3Client,
		presignClient: presignClient,
	}, nil
}

// ArchiveExport uploads an export file under a dated, unique key and
// returns the object key. Example: exports/leads/2026-08-29/<uuid>.csv
func (s *s3Storage) ArchiveExport(ctx context.Context, data []byte, contentType string) (string, error) {
	objectKey := fmt.Sprintf("%s/%s/%s.csv",
		s.cfg.ExportArchivePrefix,
		time.Now().UTC().Format("2006-01-02"),
		uuid.NewString())

	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.AwsS3Bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload export archive %s: %w", objectKey, err)
	}

	return objectKey, nil
}

// GeneratePresignedGetURL creates a time-limited download URL for an
// archived export.
func (s *s3Storage) GeneratePresignedGetURL(ctx context.Context, objectKey string) (string, error) {
	expiration := 15 * time.Minute

	presignedReq, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.AwsS3Bucket),
		Key:    aws.String(objectKey),
	}, s3.WithPresignExpires(expiration))
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned GET URL for key %s: %w", objectKey, err)
	}

	return presignedReq.URL, nil
}
