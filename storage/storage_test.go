package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutAndDelete(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := NewFSStore(fs, "https://api.example.com/")
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "scans/u-1/1700000000000.png", strings.NewReader("png"), "image/png"))

	data, err := afero.ReadFile(fs, "scans/u-1/1700000000000.png")
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))
	assert.Equal(t, "https://api.example.com/uploads/scans/u-1/1700000000000.png", s.PublicURL("scans/u-1/1700000000000.png"))

	require.NoError(t, s.Delete(ctx, "scans/u-1/1700000000000.png"))
	exists, err := afero.Exists(fs, "scans/u-1/1700000000000.png")
	require.NoError(t, err)
	assert.False(t, exists)

	assert.NoError(t, s.Delete(ctx, "scans/u-1/missing.png"))
}

func TestRejectsEscapingPaths(t *testing.T) {
	s := NewFSStore(afero.NewMemMapFs(), "")
	for _, key := range []string{"", "/etc/passwd", "../secret", "scans/../../x", "a//b"} {
		err := s.Put(context.Background(), key, strings.NewReader("x"), "image/png")
		assert.ErrorIs(t, err, ErrInvalidPath, key)
	}
}

func TestRelativeURL(t *testing.T) {
	s := NewFSStore(afero.NewMemMapFs(), "")
	assert.Equal(t, "/uploads/avatars/u-1.jpg", s.PublicURL("avatars/u-1.jpg"))
}

func TestPutHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewFSStore(afero.NewMemMapFs(), "").Put(ctx, "a.png", strings.NewReader("x"), "image/png")
	assert.ErrorIs(t, err, context.Canceled)
}
