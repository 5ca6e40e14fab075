package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/TrackFox/app/models"
	"github.com/ManuelReschke/TrackFox/internal/pkg/config"
)

// ErrEmptyPayload is returned for sales without a stored raw body.
var ErrEmptyPayload = errors.New("sale has no raw payload")

// putObjectAPI is the part of the S3 client the archive needs
type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archiver writes accepted webhook bodies to an S3 compatible bucket
type Archiver struct {
	api    putObjectAPI
	bucket string
	prefix string
}

// NewArchiver creates an archiver on top of an existing S3 client
func NewArchiver(api putObjectAPI, bucket, prefix string) *Archiver {
	return &Archiver{
		api:    api,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

// NewS3Archiver builds the S3 client from configuration
func NewS3Archiver(ctx context.Context, cfg config.Archive) (*Archiver, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("payload archive is disabled")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			// S3 compatible services (MinIO, B2) need path-style URLs
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	log.Infof("[Archive] Initialized payload archive for bucket: %s", cfg.Bucket)
	return NewArchiver(client, cfg.Bucket, cfg.Prefix), nil
}

// ObjectKey returns {prefix}/{workspace}/{yyyy}/{mm}/{dd}/{saleID}.json,
// dated by when the delivery was received.
func ObjectKey(prefix string, sale *models.Sale) string {
	day := sale.CreatedAt
	if day.IsZero() {
		day = sale.SaleDate
	}
	day = day.UTC()
	key := fmt.Sprintf("%s/%04d/%02d/%02d/%d.json", sale.WorkspaceID, day.Year(), int(day.Month()), day.Day(), sale.ID)
	if prefix = strings.Trim(prefix, "/"); prefix != "" {
		key = prefix + "/" + key
	}
	return key
}

// ArchiveSale uploads the raw payload of sale and returns the object key
func (a *Archiver) ArchiveSale(ctx context.Context, sale *models.Sale) (string, error) {
	if sale == nil || len(sale.RawPayload) == 0 {
		return "", ErrEmptyPayload
	}
	key := ObjectKey(a.prefix, sale)

	_, err := a.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(sale.RawPayload),
		ContentType:   aws.String("application/json"),
		ContentLength: aws.Int64(int64(len(sale.RawPayload))),
		Metadata: map[string]string{
			"platform":    string(sale.Platform),
			"endpoint-id": strconv.FormatUint(uint64(sale.WebhookEndpointID), 10),
			"archived-at": time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload s3://%s/%s: %w", a.bucket, key, err)
	}

	log.Debugf("[Archive] Stored sale %d at s3://%s/%s", sale.ID, a.bucket, key)
	return key, nil
}
