package blobstore

import (
	"context"
	"path/filepath"
	"testing"

	"paperlock/internal/config"
)

func TestNewBlobStoreFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.BlobStoreConfig
		wantErr bool
	}{
		{
			name: "memory store",
			cfg:  config.BlobStoreConfig{Type: "memory"},
		},
		{
			name: "filesystem store",
			cfg:  config.BlobStoreConfig{Type: "filesystem", FSRoot: filepath.Join(t.TempDir(), "blobs")},
		},
		{
			name:    "filesystem store without root",
			cfg:     config.BlobStoreConfig{Type: "filesystem"},
			wantErr: true,
		},
		{
			name:    "s3 store without bucket",
			cfg:     config.BlobStoreConfig{Type: "s3"},
			wantErr: true,
		},
		{
			name:    "unknown store type",
			cfg:     config.BlobStoreConfig{Type: "ftp"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewBlobStoreFromConfig(context.Background(), tt.cfg)

			if (err != nil) != tt.wantErr {
				t.Fatalf("NewBlobStoreFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if got != nil {
					t.Errorf("NewBlobStoreFromConfig() = %v, want nil", got)
				}
				return
			}
			if err := got.ValidateSetup(context.Background()); err != nil {
				t.Errorf("ValidateSetup() error = %v", err)
			}
		})
	}
}

func TestNewBlobStoreFromConfig_S3(t *testing.T) {
	got, err := NewBlobStoreFromConfig(context.Background(), config.BlobStoreConfig{
		Type:              "s3",
		S3Bucket:          "exam-papers",
		S3Region:          "us-east-1",
		S3Endpoint:        "http://127.0.0.1:9000",
		S3AccessKeyID:     "minio",
		S3SecretAccessKey: "minio-secret",
		S3UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("NewBlobStoreFromConfig() error = %v", err)
	}
	s, ok := got.(*S3Store)
	if !ok {
		t.Fatalf("NewBlobStoreFromConfig() = %T, want *S3Store", got)
	}
	if s.bucket != "exam-papers" {
		t.Errorf("bucket = %q, want exam-papers", s.bucket)
	}
}
