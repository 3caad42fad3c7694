package snapshot

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/hyperengineering/estimator/internal/config"
)

func TestNoopUploader_ReturnsErrNotConfigured(t *testing.T) {
	u := NoopUploader{}
	if err := u.Upload(context.Background(), "k", []byte("{}"), "application/json"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Upload() error = %v, want ErrNotConfigured", err)
	}
	if _, _, err := u.PresignedURL(context.Background(), "k"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("PresignedURL() error = %v, want ErrNotConfigured", err)
	}
}

func TestNewUploader_EmptyBucket_ReturnsNoopUploader(t *testing.T) {
	u, err := NewUploader(config.SnapshotConfig{})
	if err != nil {
		t.Fatalf("NewUploader() error = %v", err)
	}
	if _, ok := u.(NoopUploader); !ok {
		t.Errorf("expected NoopUploader, got %T", u)
	}
}

func TestNewUploader_WithBucket_ReturnsS3Uploader(t *testing.T) {
	u, err := NewUploader(config.SnapshotConfig{
		Bucket:    "exports",
		Endpoint:  "http://localhost:9000",
		Region:    "us-east-1",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		URLExpiry: config.Duration(15 * time.Minute),
	})
	if err != nil {
		t.Fatalf("NewUploader() error = %v", err)
	}

	s3u, ok := u.(*S3Uploader)
	if !ok {
		t.Fatalf("expected *S3Uploader, got %T", u)
	}
	if s3u.bucket != "exports" || s3u.urlExpiry != 15*time.Minute {
		t.Errorf("bucket/expiry = %q/%v", s3u.bucket, s3u.urlExpiry)
	}
}

// mockS3Client implements s3Client for testing.
type mockS3Client struct {
	putErr      error
	presignErr  error
	objects     map[string][]byte
	contentType string
}

func (m *mockS3Client) PutObject(_ context.Context, bucket, key string, data []byte, contentType string) error {
	if m.putErr != nil {
		return m.putErr
	}
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[bucket+"/"+key] = data
	m.contentType = contentType
	return nil
}

func (m *mockS3Client) PresignedGetObject(_ context.Context, bucket, key string, _ time.Duration) (*url.URL, error) {
	if m.presignErr != nil {
		return nil, m.presignErr
	}
	return url.Parse("https://s3.example.com/" + bucket + "/" + key + "?presigned=true")
}

func newTestS3Uploader(client *mockS3Client, now time.Time) *S3Uploader {
	return &S3Uploader{
		client:    client,
		bucket:    "exports",
		urlExpiry: 10 * time.Minute,
		now:       func() time.Time { return now },
	}
}

func TestS3Uploader_UploadAndPresign(t *testing.T) {
	client := &mockS3Client{}
	now := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	u := newTestS3Uploader(client, now)

	if err := u.Upload(context.Background(), "a/b.json", []byte(`{"ok":true}`), "application/json"); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if string(client.objects["exports/a/b.json"]) != `{"ok":true}` {
		t.Errorf("stored objects = %v", client.objects)
	}

	got, expiry, err := u.PresignedURL(context.Background(), "a/b.json")
	if err != nil {
		t.Fatalf("PresignedURL() error = %v", err)
	}
	if got != "https://s3.example.com/exports/a/b.json?presigned=true" {
		t.Errorf("url = %q", got)
	}
	if !expiry.Equal(now.Add(10 * time.Minute)) {
		t.Errorf("expiry = %v, want %v", expiry, now.Add(10*time.Minute))
	}
}

func TestS3Uploader_Errors(t *testing.T) {
	boom := errors.New("connection refused")
	u := newTestS3Uploader(&mockS3Client{putErr: boom, presignErr: boom}, time.Now())

	if err := u.Upload(context.Background(), "k", nil, ""); !errors.Is(err, boom) {
		t.Errorf("Upload() error = %v, want wrapped %v", err, boom)
	}
	if _, _, err := u.PresignedURL(context.Background(), "k"); !errors.Is(err, boom) {
		t.Errorf("PresignedURL() error = %v, want wrapped %v", err, boom)
	}
}

func TestStripScheme(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		wantHost string
		wantSSL  bool
	}{
		{"bare host", "s3.example.com", "s3.example.com", true},
		{"bare host:port", "minio:9000", "minio:9000", true},
		{"https URL", "https://s3.example.com", "s3.example.com", true},
		{"http URL", "http://minio:9000", "minio:9000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ssl := true
			got := stripScheme(tt.endpoint, &ssl)
			if got != tt.wantHost {
				t.Errorf("stripScheme(%q) host = %q, want %q", tt.endpoint, got, tt.wantHost)
			}
			if ssl != tt.wantSSL {
				t.Errorf("stripScheme(%q) ssl = %v, want %v", tt.endpoint, ssl, tt.wantSSL)
			}
		})
	}
}
