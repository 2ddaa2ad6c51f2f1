package gcsuploader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

// StatementContentType is stored on every archived statement object.
const StatementContentType = "application/x-ofx"

// UploadBytes uploads in-memory statement content and returns its gs:// URI.
// It assumes Application Default Credentials are configured.
func UploadBytes(ctx context.Context, bucketName, objectName string, data []byte) (string, error) {
	return upload(ctx, bucketName, objectName, bytes.NewReader(data))
}

func upload(ctx context.Context, bucketName, objectName string, src io.Reader) (string, error) {
	if bucketName == "" {
		return "", fmt.Errorf("upload: bucket name is required")
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("create storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	w.ContentType = StatementContentType
	defer func() {
		// Ensure the writer is closed even on early returns
		_ = w.Close()
	}()

	if _, err := io.Copy(w, src); err != nil {
		return "", fmt.Errorf("copy file to GCS writer: %w", err)
	}

	// Close to finalize the upload
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize upload: %w", err)
	}

	return BuildGCSURI(bucketName, objectName), nil
}

// ObjectName returns the object path under which a user's statement is archived.
func ObjectName(userID, statementID, filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "statement.ofx"
	}
	return path.Join("statements", userID, statementID, base)
}

// BuildGCSURI joins a bucket and object into a gs:// URI.
func BuildGCSURI(bucketName, objectName string) string {
	return "gs://" + bucketName + "/" + objectName
}

// ParseGCSURI splits a gs:// URI into bucket and object path.
func ParseGCSURI(gcsURI string) (bucket, object string, err error) {
	// gcsURI example: gs://my-bucket/statements/u1/abc/file.ofx
	if !strings.HasPrefix(gcsURI, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", gcsURI)
	}

	trimmed := strings.TrimPrefix(gcsURI, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", gcsURI)
	}
	return parts[0], parts[1], nil
}

// ExtractFilenameFromGCSURI extracts the filename from a GCS URI.
// e.g., "gs://bucket/folder/file.ofx" → "file.ofx"
func ExtractFilenameFromGCSURI(uri string) string {
	trimmed := strings.TrimPrefix(uri, "gs://")

	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) < 2 {
		return trimmed
	}

	return path.Base(parts[1])
}
