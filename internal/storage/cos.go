// Package storage uploads attachments to object storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tencentyun/cos-go-sdk-v5"
)

// MaxFileSize is the per-file attachment cap, enforced at the boundary
// before any upload is attempted.
const MaxFileSize = 10 << 20 // 10 MiB

// ErrFileTooLarge is returned when an attachment exceeds MaxFileSize.
var ErrFileTooLarge = errors.New("file exceeds maximum size of 10 MiB")

// ObjectStorage uploads files and returns publicly accessible URLs.
type ObjectStorage interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
}

// COS implements ObjectStorage over a Tencent COS bucket.
type COS struct {
	client *cos.Client
}

var _ ObjectStorage = (*COS)(nil)

// NewCOS creates a client for the given bucket URL and credentials.
func NewCOS(bucketURL, secretID, secretKey string) (*COS, error) {
	u, err := url.Parse(bucketURL)
	if err != nil {
		return nil, fmt.Errorf("invalid bucket URL: %w", err)
	}
	client := cos.NewClient(&cos.BaseURL{BucketURL: u}, &http.Client{
		Timeout: 60 * time.Second,
		Transport: &cos.AuthorizationTransport{
			SecretID:  secretID,
			SecretKey: secretKey,
		},
	})
	return &COS{client: client}, nil
}

// Upload stores the object under key and returns its permanent access URL.
// Size is checked before any bytes are sent.
func (c *COS) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	if size > MaxFileSize {
		return "", ErrFileTooLarge
	}

	opt := &cos.ObjectPutOptions{
		ObjectPutHeaderOptions: &cos.ObjectPutHeaderOptions{
			ContentType:   contentType,
			ContentLength: size,
		},
	}
	if _, err := c.client.Object.Put(ctx, key, r, opt); err != nil {
		return "", fmt.Errorf("failed to upload object: %w", err)
	}
	return c.client.Object.GetObjectURL(key).String(), nil
}
