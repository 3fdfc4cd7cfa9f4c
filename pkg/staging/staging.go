// Package staging holds uploaded recipient files between upload and import.
// Objects have an explicit lifecycle: Put, ConsumeOnce (read then delete),
// Delete. Nothing here is an error-reporting channel.
package staging

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

type Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	PathStyle bool   `mapstructure:"path_style"`
}

type Store interface {
	Put(ctx context.Context, orgID int64, name string, contentType string, body io.Reader) (string, error)
	ConsumeOnce(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

type s3Store struct {
	cfg    Config
	client *s3.Client
	logger *zap.Logger
}

func NewStore(cfg Config, logger *zap.Logger) (Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})

	return &s3Store{cfg: cfg, client: client, logger: logger}, nil
}

func (s *s3Store) Put(ctx context.Context, orgID int64, name string, contentType string, body io.Reader) (string, error) {
	key := fmt.Sprintf("staging/%d/%d-%s", orgID, time.Now().UnixNano(), name)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		s.logger.Error("Failed to stage object", zap.String("key", key), zap.Error(err))
		return "", fmt.Errorf("failed to stage object: %w", err)
	}

	s.logger.Info("Object staged", zap.String("key", key), zap.Int64("orgID", orgID))

	return key, nil
}

func (s *s3Store) ConsumeOnce(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read staged object %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read staged object %s: %w", key, err)
	}

	if err := s.Delete(ctx, key); err != nil {
		s.logger.Warn("Failed to delete staged object after consume",
			zap.String("key", key), zap.Error(err))
	}

	return data, nil
}

func (s *s3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete staged object %s: %w", key, err)
	}

	return nil
}
