package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunAppliesThenReportsUpToDate(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "finance.db")

	var out bytes.Buffer
	require.NoError(t, run(ctx, []string{"-db", path}, &out))
	assert.Contains(t, out.String(), "Applied 2 migration(s).")

	out.Reset()
	require.NoError(t, run(ctx, []string{"-db", path}, &out))
	assert.Equal(t, "Database is up to date.\n", out.String())
}

func TestRunStatus(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "finance.db")

	var out bytes.Buffer
	require.NoError(t, run(ctx, []string{"-db", path, "-status"}, &out))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "0001 init_schema"))
	assert.True(t, strings.HasSuffix(lines[0], "pending"))

	require.NoError(t, run(ctx, []string{"-db", path, "-applied-by", "test"}, &bytes.Buffer{}))

	out.Reset()
	require.NoError(t, run(ctx, []string{"-db", path, "-status"}, &out))
	assert.Contains(t, out.String(), "0002 recurring_reminded_for")
	assert.Contains(t, out.String(), "by test")
	assert.NotContains(t, out.String(), "pending")
}

func TestRunRejectsUnknownFlag(t *testing.T) {
	err := run(context.Background(), []string{"-nope"}, &bytes.Buffer{})
	assert.Error(t, err)
}
