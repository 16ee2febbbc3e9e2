// Package storage publishes generated artifacts to S3-compatible object
// storage and hands back the public URL they are served from.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStore is the durable artifact store the invoice generator writes to.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
}

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	// PublicBaseURL is the externally reachable prefix objects are served
	// from, e.g. a CDN origin. Keys are appended to it verbatim.
	PublicBaseURL string
	UseSSL        bool
}

type Client struct {
	mc     *minio.Client
	bucket string
	base   string
}

func New(cfg Config) (*Client, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create object storage client: %w", err)
	}

	return &Client{
		mc:     mc,
		bucket: cfg.Bucket,
		base:   strings.TrimRight(cfg.PublicBaseURL, "/"),
	}, nil
}

// Put uploads the object, overwriting any previous version under the same
// key, and returns its public URL.
func (c *Client) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := c.mc.PutObject(ctx, c.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}

	return c.base + "/" + key, nil
}

// Get fetches object bytes, used by the invoice retrieval endpoint to serve
// a previously generated artifact without re-rendering it.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := c.mc.GetObject(ctx, c.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", key, err)
	}
	defer func() { _ = obj.Close() }()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(obj); err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}

	return buf.Bytes(), nil
}
