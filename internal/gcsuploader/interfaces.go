package gcsuploader

import (
	"context"
	"io"

	"github.com/dvloznov/sales-dashboard/internal/gcs"
)

// StorageService is re-exported for callers that only import this package.
type StorageService = gcs.StorageService

// GCSStorageService is the concrete implementation of StorageService
// that interacts with Google Cloud Storage.
type GCSStorageService struct{}

// NewGCSStorageService creates a new instance of GCSStorageService.
func NewGCSStorageService() *GCSStorageService {
	return &GCSStorageService{}
}

// WriteObject delegates to the package-level WriteObject function.
func (s *GCSStorageService) WriteObject(ctx context.Context, bucketName, objectName, contentType string, r io.Reader) (string, error) {
	return WriteObject(ctx, bucketName, objectName, contentType, r)
}

// FetchFromGCS delegates to the package-level FetchFromGCS function.
func (s *GCSStorageService) FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	return FetchFromGCS(ctx, gcsURI)
}

var _ gcs.StorageService = (*GCSStorageService)(nil)
