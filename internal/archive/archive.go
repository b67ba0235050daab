// Package archive keeps a JSON copy of every new lead in S3 so that leads
// survive independently of the primary database.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/jbrand/leadintake/internal/domain"
)

// putAPI is the subset of the S3 client used here.
type putAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver writes leads to s3://bucket/prefix/YYYY/MM/DD/<id>.json.
type S3Archiver struct {
	client putAPI
	bucket string
	prefix string
}

// Config contains the archive location.
type Config struct {
	Bucket string
	Prefix string
	Region string
}

// NewS3Archiver loads the default AWS credential chain for region.
func NewS3Archiver(ctx context.Context, cfg Config) (*S3Archiver, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("archive: bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("archive: load aws config: %w", err)
	}
	return newS3Archiver(s3.NewFromConfig(awsCfg), cfg.Bucket, cfg.Prefix), nil
}

func newS3Archiver(client putAPI, bucket, prefix string) *S3Archiver {
	return &S3Archiver{client: client, bucket: bucket, prefix: prefix}
}

// Key returns the object key for a lead.
func (a *S3Archiver) Key(c *domain.Contact) string {
	t := c.CreatedAt.UTC()
	return path.Join(a.prefix, t.Format("2006/01/02"), c.ID+".json")
}

// Archive uploads c as JSON.
func (a *S3Archiver) Archive(ctx context.Context, c *domain.Contact) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("archive: encode lead: %w", err)
	}
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(a.Key(c)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"priority":    string(c.Priority),
			"archived-at": time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return fmt.Errorf("archive: put %s: %w", a.Key(c), err)
	}
	return nil
}
