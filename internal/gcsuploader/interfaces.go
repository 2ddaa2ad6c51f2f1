package gcsuploader

import (
	"context"

	"github.com/dvloznov/budget-ledger/internal/gcs"
)

// Re-export interface from shared package for callers that only import gcsuploader.
type StorageService = gcs.StorageService

// GCSStorageService is the concrete implementation of StorageService
// that interacts with Google Cloud Storage.
type GCSStorageService struct{}

// NewGCSStorageService creates a new instance of GCSStorageService.
func NewGCSStorageService() *GCSStorageService {
	return &GCSStorageService{}
}

// UploadBytes delegates to the package-level UploadBytes function.
func (s *GCSStorageService) UploadBytes(ctx context.Context, bucketName, objectName string, data []byte) (string, error) {
	return UploadBytes(ctx, bucketName, objectName, data)
}

// FetchFromGCS delegates to the package-level FetchFromGCS function.
func (s *GCSStorageService) FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	return FetchFromGCS(ctx, gcsURI)
}

// ExtractFilenameFromGCSURI delegates to the package-level ExtractFilenameFromGCSURI function.
func (s *GCSStorageService) ExtractFilenameFromGCSURI(uri string) string {
	return ExtractFilenameFromGCSURI(uri)
}

var _ StorageService = (*GCSStorageService)(nil)
