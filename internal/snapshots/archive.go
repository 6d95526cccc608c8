package snapshots

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Archive stores raw snapshot bodies in S3 for indefinite audit retention.
// Only the content hash and a short preview live in Postgres; the full
// rendered page is addressed by its archive key.
type Archive struct {
	client *s3.Client
	bucket string
}

// NewArchive loads the AWS config and returns an S3-backed archive. An
// empty profile uses the default credential chain (IAM role on ECS).
func NewArchive(ctx context.Context, bucket, region, profile string) (*Archive, error) {
	var cfg aws.Config
	var err error

	if profile != "" {
		cfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(region),
			awsconfig.WithSharedConfigProfile(profile),
		)
	} else {
		cfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("archive: loading AWS config: %w", err)
	}

	return &Archive{client: s3.NewFromConfig(cfg), bucket: bucket}, nil
}

// Key builds the canonical object key for one capture.
func Key(adID, condition string, capturedAt time.Time) string {
	return fmt.Sprintf("snapshots/%s/%s/%s.html", adID, condition, capturedAt.UTC().Format("2006-01-02T15-04-05Z"))
}

// Put stores a raw snapshot body and returns its key.
func (a *Archive) Put(ctx context.Context, adID, condition string, capturedAt time.Time, body []byte) (string, error) {
	key := Key(adID, condition, capturedAt)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("text/html; charset=utf-8"),
	})
	if err != nil {
		return "", fmt.Errorf("archive: put %s: %w", key, err)
	}
	return key, nil
}

// Get retrieves a raw snapshot body by archive key.
func (a *Archive) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("archive: get %s: %w", key, err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("archive: read %s: %w", key, err)
	}
	return body, nil
}
