package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/option"
)

// NewGCSClient creates a Google Cloud Storage client. If credsPath is empty, ADC is used.
func NewGCSClient(ctx context.Context, credsPath string) (*storage.Client, error) {
	if credsPath == "" {
		return storage.NewClient(ctx)
	}
	return storage.NewClient(ctx, option.WithCredentialsFile(credsPath))
}

// GCSStorage uploads media objects into a single bucket under Prefix.
type GCSStorage struct {
	Client *storage.Client
	Bucket string
	Prefix string
}

func NewGCSStorage(client *storage.Client, bucket, prefix string) *GCSStorage {
	return &GCSStorage{Client: client, Bucket: bucket, Prefix: prefix}
}

// Upload streams the local file into the bucket. The object name is random,
// so the caller must keep the returned PublicID to delete the object later.
func (s *GCSStorage) Upload(ctx context.Context, localPath string) (*UploadResult, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	ext := strings.ToLower(filepath.Ext(localPath))
	objectPath := filepath.ToSlash(filepath.Join(s.Prefix, uuid.NewString()+ext))

	wc := s.Client.Bucket(s.Bucket).Object(objectPath).NewWriter(ctx)
	if ct := mime.TypeByExtension(ext); ct != "" {
		wc.ContentType = ct
	}
	wc.ChunkSize = 0 // disable chunking for small files
	if _, err := io.Copy(wc, f); err != nil {
		_ = wc.Close()
		return nil, err
	}
	if err := wc.Close(); err != nil {
		return nil, err
	}
	return &UploadResult{URL: PublicURL(s.Bucket, objectPath), PublicID: objectPath}, nil
}

// Delete removes a previously uploaded object.
func (s *GCSStorage) Delete(ctx context.Context, publicID string) error {
	return s.Client.Bucket(s.Bucket).Object(publicID).Delete(ctx)
}

// PublicURL builds a public URL for an object (assuming public read access or signed URLs)
func PublicURL(bucket, objectPath string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, objectPath)
}

var _ MediaStorage = (*GCSStorage)(nil)
