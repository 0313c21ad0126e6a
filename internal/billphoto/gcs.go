package billphoto

import (
	"context"
	"errors"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSStore writes blobs to a Cloud Storage bucket.
type GCSStore struct {
	client *storage.Client
	bucket string
}

// NewGCSStore uses application default credentials unless credentialsJSON
// is set.
func NewGCSStore(ctx context.Context, bucket string, credentialsJSON string) (*GCSStore, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("GCS_BUCKET is required")
	}
	var opts []option.ClientOption
	if strings.TrimSpace(credentialsJSON) != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &GCSStore{client: client, bucket: bucket}, nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}

func (s *GCSStore) Save(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	wc := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	wc.ContentType = contentType
	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return "", err
	}
	if err := wc.Close(); err != nil {
		return "", err
	}
	return "gs://" + s.bucket + "/" + name, nil
}
