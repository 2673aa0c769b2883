package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// SpacesConfig holds configuration for the Spaces client
type SpacesConfig struct {
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Endpoint  string // host only, e.g. sgp1.digitaloceanspaces.com
}

// Enabled reports whether enough is configured to talk to Spaces
func (c SpacesConfig) Enabled() bool {
	return c.AccessKey != "" && c.SecretKey != "" && c.Bucket != ""
}

// SpacesStorage uploads bills to DigitalOcean Spaces through the S3 API
type SpacesStorage struct {
	s3       s3iface.S3API
	bucket   string
	endpoint string
}

func NewSpacesStorage(cfg SpacesConfig) (*SpacesStorage, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, fmt.Errorf("spaces bucket and region must be configured")
	}
	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "https://"), "http://")
	if endpoint == "" {
		endpoint = fmt.Sprintf("%s.digitaloceanspaces.com", cfg.Region)
	}

	sess, err := session.NewSession(&aws.Config{
		Credentials:      credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, ""),
		Endpoint:         aws.String(endpoint),
		Region:           aws.String(cfg.Region),
		S3ForcePathStyle: aws.Bool(false),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Spaces session: %w", err)
	}
	return newSpacesStorage(s3.New(sess), cfg.Bucket, endpoint), nil
}

func newSpacesStorage(client s3iface.S3API, bucket, endpoint string) *SpacesStorage {
	return &SpacesStorage{s3: client, bucket: bucket, endpoint: endpoint}
}

func (s *SpacesStorage) Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	_, err := s.s3.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        aws.ReadSeekCloser(body),
		ACL:         aws.String("private"),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload bill: %w", err)
	}
	return s.URL(key), nil
}

// URL is the object URL in virtual-hosted style
func (s *SpacesStorage) URL(key string) string {
	return fmt.Sprintf("https://%s.%s/%s", s.bucket, s.endpoint, key)
}
