package artifact

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/kuitang/hellopet-e2e/internal/config"
	"github.com/kuitang/hellopet-e2e/internal/obs"
)

// Publisher uploads artifacts to an S3-compatible bucket so CI runs can link
// to them.
type Publisher struct {
	client    *s3.Client
	bucket    string
	prefix    string
	publicURL string
}

// NewPublisher builds a publisher from cfg. Path-style addressing is used
// whenever a custom endpoint is set.
func NewPublisher(ctx context.Context, cfg config.ArtifactConfig) (*Publisher, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	sdkConfig, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	client := s3.NewFromConfig(sdkConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewPublisherFromClient(client, cfg.Bucket, cfg.Prefix, cfg.PublicURL), nil
}

// NewPublisherFromClient wraps an existing S3 client.
func NewPublisherFromClient(client *s3.Client, bucket, prefix, publicURL string) *Publisher {
	return &Publisher{
		client:    client,
		bucket:    bucket,
		prefix:    strings.Trim(prefix, "/"),
		publicURL: strings.TrimSuffix(publicURL, "/"),
	}
}

// Key returns the object key for a file relative to the output directory.
func (p *Publisher) Key(runID, rel string) string {
	parts := make([]string, 0, 3)
	if p.prefix != "" {
		parts = append(parts, p.prefix)
	}
	if runID != "" {
		parts = append(parts, runID)
	}
	parts = append(parts, filepath.ToSlash(rel))
	return path.Join(parts...)
}

// PublicURL returns the link for key.
func (p *Publisher) PublicURL(key string) string {
	return p.publicURL + "/" + strings.TrimPrefix(key, "/")
}

// Upload stores content under key.
func (p *Publisher) Upload(ctx context.Context, key string, content []byte) error {
	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put artifact %q: %w", key, err)
	}
	return nil
}

// PublishStore uploads every file in store under runID and returns the public
// links keyed by relative path. It stops at the first failure.
func (p *Publisher) PublishStore(ctx context.Context, store Store, runID string) (map[string]string, error) {
	log := obs.From(ctx).With("pkg", "artifact")
	files, err := store.Files()
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	links := make(map[string]string, len(files))
	for _, rel := range files {
		content, err := os.ReadFile(filepath.Join(store.Root, filepath.FromSlash(rel)))
		if err != nil {
			return links, fmt.Errorf("read artifact %s: %w", rel, err)
		}
		key := p.Key(runID, rel)
		if err := p.Upload(ctx, key, content); err != nil {
			return links, err
		}
		links[rel] = p.PublicURL(key)
	}
	log.Info("artifacts_published", "bucket", p.bucket, "count", len(links))
	return links, nil
}

// RunPublisher publishes the store rooted at the output directory a run
// resolved.
type RunPublisher struct {
	*Publisher
}

// Publish uploads the artifacts under outputDir as runID.
func (p RunPublisher) Publish(ctx context.Context, runID, outputDir string) (map[string]string, error) {
	return p.PublishStore(ctx, NewStore(outputDir), runID)
}
