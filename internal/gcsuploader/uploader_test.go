package gcsuploader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitGCSURI(t *testing.T) {
	bucket, object, err := SplitGCSURI("gs://finance-exports/exports/7/2026-05.csv")
	require.NoError(t, err)
	assert.Equal(t, "finance-exports", bucket)
	assert.Equal(t, "exports/7/2026-05.csv", object)

	for _, bad := range []string{"", "finance-exports/x.csv", "gs://bucket", "gs://bucket/", "gs:///x.csv"} {
		_, _, err := SplitGCSURI(bad)
		assert.Error(t, err, bad)
	}
}

func TestGSURI(t *testing.T) {
	assert.Equal(t, "gs://b/exports/a.csv", GSURI("b", "exports/a.csv"))
	assert.Equal(t, "gs://b/a.csv", GSURI("b", "/a.csv"))
}

func TestExtractFilenameFromGCSURI(t *testing.T) {
	tests := []struct {
		uri  string
		want string
	}{
		{"gs://bucket/folder/file.csv", "file.csv"},
		{"gs://bucket/file.csv", "file.csv"},
		{"gs://bucket", "bucket"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractFilenameFromGCSURI(tt.uri), tt.uri)
	}
}
