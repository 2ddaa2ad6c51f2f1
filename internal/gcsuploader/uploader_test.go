package gcsuploader

import "testing"

func TestParseGCSURI(t *testing.T) {
	tests := []struct {
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{"gs://bucket/statements/u1/s1/jan.ofx", "bucket", "statements/u1/s1/jan.ofx", false},
		{"gs://bucket/file.ofx", "bucket", "file.ofx", false},
		{"gs://bucket", "", "", true},
		{"gs://bucket/", "", "", true},
		{"s3://bucket/file.ofx", "", "", true},
		{"", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, object, err := ParseGCSURI(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseGCSURI(%q) error = %v, wantErr %v", tt.uri, err, tt.wantErr)
			}
			if bucket != tt.wantBucket || object != tt.wantObject {
				t.Errorf("ParseGCSURI(%q) = (%q, %q), want (%q, %q)", tt.uri, bucket, object, tt.wantBucket, tt.wantObject)
			}
		})
	}
}

func TestExtractFilenameFromGCSURI(t *testing.T) {
	tests := map[string]string{
		"gs://bucket/folder/file.ofx": "file.ofx",
		"gs://bucket/file.ofx":        "file.ofx",
		"gs://bucket":                 "bucket",
	}
	for uri, want := range tests {
		if got := ExtractFilenameFromGCSURI(uri); got != want {
			t.Errorf("ExtractFilenameFromGCSURI(%q) = %q, want %q", uri, got, want)
		}
	}
}

func TestObjectName(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"jan.ofx", "statements/u1/s1/jan.ofx"},
		{"/tmp/exports/jan.ofx", "statements/u1/s1/jan.ofx"},
		{`C:\Users\me\jan.ofx`, "statements/u1/s1/jan.ofx"},
		{"", "statements/u1/s1/statement.ofx"},
	}
	for _, tt := range tests {
		if got := ObjectName("u1", "s1", tt.filename); got != tt.want {
			t.Errorf("ObjectName(%q) = %q, want %q", tt.filename, got, tt.want)
		}
	}
}

func TestBuildGCSURIRoundTrip(t *testing.T) {
	uri := BuildGCSURI("bucket", "statements/u1/s1/jan.ofx")
	bucket, object, err := ParseGCSURI(uri)
	if err != nil {
		t.Fatal(err)
	}
	if bucket != "bucket" || object != "statements/u1/s1/jan.ofx" {
		t.Errorf("got (%q, %q)", bucket, object)
	}
}
