package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	aws_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"kanzlei/insolvenzpanel/internal/config"
	"kanzlei/insolvenzpanel/internal/utils"
)

// IS3Storage defines the interface for object storage operations.
type IS3Storage interface {
	// UploadDocument stores a generated document under
	// {sanitizedCustomerName}/{epochMillis}_{sanitizedFilename} and returns
	// the object key and its public URL.
	UploadDocument(ctx context.Context, customerName, filename, contentType string, data []byte) (string, string, error)
	// UploadReport stores a DEKRA report PDF under reports/ and returns the
	// object key and its public URL.
	UploadReport(ctx context.Context, filename string, data []byte) (string, string, error)
	// GeneratePresignedPutURL creates a pre-signed URL for a vehicle media
	// upload. Returns the URL and the generated object key.
	GeneratePresignedPutURL(ctx context.Context, vehicleID, filename, contentType string) (string, string, error)
	// PublicURL returns the public retrieval URL for an object key.
	PublicURL(key string) string
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
		// Static credentials from config; prefer IAM roles in production.
		aws_config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AwsAccessKeyID,
			cfg.AwsSecretAccessKey,
			"",
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

func (s *s3Storage) put(ctx context.Context, key, contentType string, data []byte) error {
	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.AwsS3Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload object %s: %w", key, err)
	}
	return nil
}

// UploadDocument stores a generated PDF under the customer's folder.
func (s *s3Storage) UploadDocument(ctx context.Context, customerName, filename, contentType string, data []byte) (string, string, error) {
	key := fmt.Sprintf("%s/%d_%s",
		utils.SanitizePathSegment(customerName),
		time.Now().UnixMilli(),
		utils.SanitizePathSegment(filename),
	)
	if err := s.put(ctx, key, contentType, data); err != nil {
		return "", "", err
	}
	return key, s.PublicURL(key), nil
}

// UploadReport stores a DEKRA report PDF.
func (s *s3Storage) UploadReport(ctx context.Context, filename string, data []byte) (string, string, error) {
	key := fmt.Sprintf("reports/%d_%s", time.Now().UnixMilli(), utils.SanitizePathSegment(filename))
	if err := s.put(ctx, key, "application/pdf", data); err != nil {
		return "", "", err
	}
	return key, s.PublicURL(key), nil
}

// GeneratePresignedPutURL creates a pre-signed URL for uploading vehicle media.
func (s *s3Storage) GeneratePresignedPutURL(ctx context.Context, vehicleID, filename, contentType string) (string, string, error) {
	objectKey := fmt.Sprintf("vehicles/%s/%s_%s", vehicleID, uuid.NewString(), utils.SanitizePathSegment(filename))

	expiration := 15 * time.Minute

	presignParams := &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.AwsS3Bucket),
		Key:         aws.String(objectKey),
		ContentType: aws.String(contentType),
	}

	presignedReq, err := s.presignClient.PresignPutObject(ctx, presignParams, s3.WithPresignExpires(expiration))
	if err != nil {
		return "", "", fmt.Errorf("failed to generate presigned PUT URL for key %s: %w", objectKey, err)
	}

	return presignedReq.URL, objectKey, nil
}

// PublicURL returns the public retrieval URL for an object key.
func (s *s3Storage) PublicURL(key string) string {
	base := strings.TrimSuffix(s.cfg.S3PublicBaseURL, "/")
	if base == "" {
		base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", s.cfg.AwsS3Bucket, s.cfg.AwsRegion)
	}
	return base + "/" + key
}
