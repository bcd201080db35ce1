package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"alert-service/internal/logging"
)

// S3Config holds what is needed to sign direct-to-bucket uploads.
type S3Config struct {
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	Endpoint  string // S3-compatible storage (MinIO etc.)
}

// S3Presigner signs PUT URLs; it never touches object bytes itself.
type S3Presigner struct {
	presignClient *s3.PresignClient
	bucket        string
	logger        *logging.Logger
}

func NewS3Presigner(cfg S3Config, logger *logging.Logger) (*S3Presigner, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("S3 bucket is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)

	logger.WithFields(logging.Fields{
		"bucket":   cfg.Bucket,
		"region":   cfg.Region,
		"endpoint": cfg.Endpoint,
	}).Info("S3 presigner initialized")

	return &S3Presigner{
		presignClient: s3.NewPresignClient(client),
		bucket:        cfg.Bucket,
		logger:        logger,
	}, nil
}

// PresignPut returns a time-limited PUT URL scoped to key and content type.
func (p *S3Presigner) PresignPut(ctx context.Context, key, contentType string, expiry time.Duration) (string, error) {
	req, err := p.presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned PUT URL: %w", err)
	}

	p.logger.WithFields(logging.Fields{
		"bucket": p.bucket,
		"key":    key,
		"expiry": expiry,
	}).Debug("Generated presigned PUT URL")

	return req.URL, nil
}
