// Package archive copies accepted scans to S3-compatible object storage.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/gutscan/internal/server/models"
	"github.com/google/uuid"
)

// Archiver keeps a copy of an accepted scan.
type Archiver interface {
	Archive(ctx context.Context, s models.Scan) error
}

// Nop discards everything.
type Nop struct{}

func (Nop) Archive(context.Context, models.Scan) error { return nil }

type Config struct {
	Bucket       string
	Region       string
	BaseEndpoint string
	AccessKey    string
	SecretKey    string
}

type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// loadDefaultAWSConfig is a seam for testing config.LoadDefaultConfig.
var loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

// S3Archiver writes one JSON object per scan.
type S3Archiver struct {
	client putObjectAPI
	bucket string
	now    func() time.Time
}

// NewS3Archiver builds an archiver with static credentials against
// cfg.BaseEndpoint (MinIO or AWS).
func NewS3Archiver(ctx context.Context, cfg Config) (*S3Archiver, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load s3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Archiver(client, cfg.Bucket), nil
}

func newS3Archiver(client putObjectAPI, bucket string) *S3Archiver {
	return &S3Archiver{client: client, bucket: bucket, now: time.Now}
}

// ObjectKey places scans under the device and the day they were received.
func ObjectKey(s models.Scan, received time.Time) string {
	d := received.UTC()
	id := s.ClientID
	if id == "" {
		id = uuid.NewString()
	}
	return fmt.Sprintf("scans/%s/%d/%02d/%02d/%s.json", s.DeviceID, d.Year(), d.Month(), d.Day(), id)
}

func (a *S3Archiver) Archive(ctx context.Context, s models.Scan) error {
	received := s.ReceivedAt
	if received.IsZero() {
		received = a.now()
	}
	body, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode scan: %w", err)
	}

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(ObjectKey(s, received)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to archive scan %s: %w", s.ClientID, err)
	}
	return nil
}
