package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/bowerhall/tourcam/internal/capture"
	"github.com/bowerhall/tourcam/internal/logger"
)

// presignExpiry is the longest expiry S3 accepts for a presigned GET.
const presignExpiry = 7 * 24 * time.Hour

var ErrUnsupportedType = errors.New("unsupported image type")

// Client wraps MinIO for panorama uploads
type Client struct {
	mc        *minio.Client
	bucket    string
	publicURL string
	reuseKey  bool
}

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	// PublicURL, when set, is joined with the object path instead of
	// presigning.
	PublicURL string
	// ReuseKey writes every publish attempt for an artifact to the same
	// object.
	ReuseKey bool
}

func NewClient(cfg Config) (*Client, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio client: bucket is required")
	}

	return &Client{
		mc:        mc,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
		reuseKey:  cfg.ReuseKey,
	}, nil
}

// Init creates the panorama bucket if it doesn't exist
func (c *Client) Init(ctx context.Context) error {
	exists, err := c.mc.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", c.bucket, err)
	}

	if !exists {
		if err := c.mc.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", c.bucket, err)
		}
		logger.Info("bucket created", "bucket", c.bucket)
	}

	return nil
}

// Upload stores the panorama under the listing and returns its reference URL.
func (c *Client) Upload(ctx context.Context, artifact capture.Artifact, listingID string) (string, error) {
	if len(artifact.Image) == 0 {
		return "", fmt.Errorf("upload: artifact %s has no image", artifact.ID)
	}

	contentType := artifact.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}
	ext, err := Extension(contentType)
	if err != nil {
		return "", fmt.Errorf("upload: artifact %s: %w", artifact.ID, err)
	}

	name := ObjectKey(listingID, artifact.ID, c.attemptSuffix(), ext)

	_, err = c.mc.PutObject(ctx, c.bucket, name, bytes.NewReader(artifact.Image), int64(len(artifact.Image)), minio.PutObjectOptions{
		ContentType: contentType,
		UserMetadata: map[string]string{
			"listing-id":  listingID,
			"artifact-id": artifact.ID,
			"shot-count":  fmt.Sprint(artifact.ShotCount),
		},
	})
	if err != nil {
		return "", fmt.Errorf("upload %s/%s: %w", c.bucket, name, err)
	}

	logger.Debug("panorama uploaded", "bucket", c.bucket, "name", name, "size", len(artifact.Image))

	return c.referenceURL(ctx, name)
}

// Download fetches a stored object by name
func (c *Client) Download(ctx context.Context, name string) ([]byte, error) {
	obj, err := c.mc.GetObject(ctx, c.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", c.bucket, name, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", c.bucket, name, err)
	}

	return data, nil
}

// List returns the panorama object names stored for a listing
func (c *Client) List(ctx context.Context, listingID string) ([]string, error) {
	var names []string

	opts := minio.ListObjectsOptions{
		Prefix:    ListingPrefix(listingID),
		Recursive: true,
	}

	for obj := range c.mc.ListObjects(ctx, c.bucket, opts) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list %s: %w", c.bucket, obj.Err)
		}
		names = append(names, obj.Key)
	}

	return names, nil
}

func (c *Client) Delete(ctx context.Context, name string) error {
	if err := c.mc.RemoveObject(ctx, c.bucket, name, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete %s/%s: %w", c.bucket, name, err)
	}
	return nil
}

func (c *Client) Bucket() string {
	return c.bucket
}

// Healthy checks if MinIO is reachable
func (c *Client) Healthy(ctx context.Context) bool {
	_, err := c.mc.BucketExists(ctx, c.bucket)
	return err == nil
}

func (c *Client) attemptSuffix() string {
	if c.reuseKey {
		return ""
	}
	return uuid.New().String()[:8]
}

func (c *Client) referenceURL(ctx context.Context, name string) (string, error) {
	if c.publicURL != "" {
		return PublicURL(c.publicURL, c.bucket, name), nil
	}

	u, err := c.mc.PresignedGetObject(ctx, c.bucket, name, presignExpiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign %s/%s: %w", c.bucket, name, err)
	}
	return u.String(), nil
}

func ListingPrefix(listingID string) string {
	return "listings/" + url.PathEscape(listingID) + "/"
}

// ObjectKey names a panorama object. An empty suffix gives the stable
// per-artifact key.
func ObjectKey(listingID, artifactID, suffix, ext string) string {
	name := "panorama-" + artifactID
	if suffix != "" {
		name += "-" + suffix
	}
	return ListingPrefix(listingID) + name + ext
}

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// Extension maps an image content type to the object key extension.
func Extension(contentType string) (string, error) {
	ext, ok := extensions[contentType]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, contentType)
	}
	return ext, nil
}

func PublicURL(base, bucket, name string) string {
	return strings.TrimRight(base, "/") + "/" + bucket + "/" + name
}
