package blob

import (
	"context"
	"testing"
)

func TestNewS3RequiresBucket(t *testing.T) {
	if _, err := NewS3(context.Background(), S3Config{}); err == nil {
		t.Fatal("missing bucket should fail")
	}
}

func TestOpenS3FromEnvRequiresBucket(t *testing.T) {
	t.Setenv("SPECSTORE_ARCHIVE_S3_BUCKET", "")
	if _, err := OpenS3FromEnv(context.Background()); err == nil {
		t.Fatal("missing bucket env should fail")
	}
}
