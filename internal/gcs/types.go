package gcs

import (
	"context"
)

// StorageService archives statement files in cloud storage.
// This interface enables mocking and testing of storage functionality.
type StorageService interface {
	// UploadBytes stores data in a bucket under the given object name and
	// returns its gs:// URI.
	UploadBytes(ctx context.Context, bucketName, objectName string, data []byte) (string, error)

	// FetchFromGCS downloads file bytes from the given storage URI.
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)

	// ExtractFilenameFromGCSURI extracts the filename from a storage URI.
	ExtractFilenameFromGCSURI(uri string) string
}
