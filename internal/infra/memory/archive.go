package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/dvloznov/budget-ledger/internal/gcs"
	"github.com/dvloznov/budget-ledger/internal/gcsuploader"
)

// Archive is an in-process gcs.StorageService keyed by gs:// URI.
type Archive struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewArchive creates an empty archive.
func NewArchive() *Archive {
	return &Archive{objects: make(map[string][]byte)}
}

// UploadBytes stores a copy of data and returns its URI.
func (a *Archive) UploadBytes(ctx context.Context, bucketName, objectName string, data []byte) (string, error) {
	uri := gcsuploader.BuildGCSURI(bucketName, objectName)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.objects[uri] = append([]byte(nil), data...)
	return uri, nil
}

// FetchFromGCS returns the object stored under uri.
func (a *Archive) FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	if _, _, err := gcsuploader.ParseGCSURI(gcsURI); err != nil {
		return nil, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	data, ok := a.objects[gcsURI]
	if !ok {
		return nil, fmt.Errorf("object %s not found", gcsURI)
	}
	return append([]byte(nil), data...), nil
}

// ExtractFilenameFromGCSURI implements gcs.StorageService.
func (a *Archive) ExtractFilenameFromGCSURI(uri string) string {
	return gcsuploader.ExtractFilenameFromGCSURI(uri)
}

var _ gcs.StorageService = (*Archive)(nil)
