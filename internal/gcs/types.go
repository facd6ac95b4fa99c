package gcs

import (
	"context"
	"io"
)

// StorageService provides an interface for cloud storage operations.
// This interface enables mocking and testing of storage functionality.
type StorageService interface {
	// WriteObject stores the contents of r under bucketName/objectName and
	// returns the object's gs:// URI.
	WriteObject(ctx context.Context, bucketName, objectName, contentType string, r io.Reader) (string, error)

	// FetchFromGCS downloads object bytes from the given storage URI.
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)
}
