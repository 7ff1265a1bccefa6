package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/bilgisen/newsbyte/internal/models"
)

// ErrNotConfigured is returned by NewR2 when bucket credentials are missing.
var ErrNotConfigured = errors.New("archive: bucket not configured")

// ObjectPutter is the part of the S3 client the archiver needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// R2Config holds Cloudflare R2 (or any S3-compatible) bucket settings.
type R2Config struct {
	Endpoint  string
	AccountID string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
}

// Batch is the JSON document written for one archive run.
type Batch struct {
	ArchivedAt time.Time         `json:"archived_at"`
	Count      int               `json:"count"`
	Items      []models.NewsItem `json:"items"`
}

// Archiver writes batches of expired news items to object storage.
type Archiver struct {
	client ObjectPutter
	bucket string
	prefix string
	now    func() time.Time
}

func New(client ObjectPutter, bucket, prefix string) *Archiver {
	return &Archiver{
		client: client,
		bucket: bucket,
		prefix: prefix,
		now:    time.Now,
	}
}

// NewR2 builds an Archiver backed by an R2 bucket. The endpoint defaults to
// the account's r2.cloudflarestorage.com host.
func NewR2(ctx context.Context, cfg R2Config) (*Archiver, error) {
	if cfg.Bucket == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, ErrNotConfigured
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		if cfg.AccountID == "" {
			return nil, fmt.Errorf("%w: endpoint or account id required", ErrNotConfigured)
		}
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})
	return New(client, cfg.Bucket, cfg.Prefix), nil
}

// Archive uploads items as one JSON object and returns its key.
// An empty batch writes nothing.
func (a *Archiver) Archive(ctx context.Context, items []models.NewsItem) (string, error) {
	if len(items) == 0 {
		return "", nil
	}
	now := a.now().UTC()
	body, err := json.Marshal(Batch{ArchivedAt: now, Count: len(items), Items: items})
	if err != nil {
		return "", fmt.Errorf("marshal archive batch: %w", err)
	}

	key := a.objectKey(now)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	return key, nil
}

// objectKey partitions archives by day: <prefix>/YYYY/MM/DD/news-<unix>-<id>.json
func (a *Archiver) objectKey(t time.Time) string {
	name := fmt.Sprintf("news-%d-%s.json", t.Unix(), uuid.NewString()[:8])
	return path.Join(a.prefix, t.Format("2006/01/02"), name)
}
