package media_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fable-server/internal/media"
)

func TestImageClientPlaceholder(t *testing.T) {
	c := media.NewImageClient("", "1024x1024", zap.NewNop())

	t.Run("same prompt yields same uri", func(t *testing.T) {
		first, err := c.GenerateImage(context.Background(), "a cloud over a meadow", "")
		require.NoError(t, err)
		second, err := c.GenerateImage(context.Background(), "a cloud over a meadow", "")
		require.NoError(t, err)

		assert.Equal(t, first.URI, second.URI)
		assert.True(t, strings.HasPrefix(first.URI, "placeholder://image/"))
		assert.Equal(t, "png", first.Format)
		assert.Equal(t, true, first.Metadata["placeholder"])
		assert.Equal(t, "1024x1024", first.Metadata["size"])
	})

	t.Run("different prompts diverge", func(t *testing.T) {
		a, err := c.GenerateImage(context.Background(), "a dragon", "")
		require.NoError(t, err)
		b, err := c.GenerateImage(context.Background(), "a knight", "")
		require.NoError(t, err)
		assert.NotEqual(t, a.URI, b.URI)
	})

	t.Run("explicit size overrides default", func(t *testing.T) {
		result, err := c.GenerateImage(context.Background(), "a dragon", "512x512")
		require.NoError(t, err)
		assert.Equal(t, "512x512", result.Metadata["size"])
	})
}

func TestSpeechClientPlaceholder(t *testing.T) {
	c := media.NewSpeechClient("", "", t.TempDir(), zap.NewNop())

	result, err := c.GenerateSpeech(context.Background(), "Once upon a time.", "", "")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(result.URI, "placeholder://audio/"))
	assert.Equal(t, "mp3", result.Format)
	assert.Equal(t, "nova", result.Metadata["voice"])

	again, err := c.GenerateSpeech(context.Background(), "Once upon a time.", "", "")
	require.NoError(t, err)
	assert.Equal(t, result.URI, again.URI)
}

func TestLocalUploader(t *testing.T) {
	t.Run("copies file and returns file uri", func(t *testing.T) {
		baseDir := t.TempDir()
		srcPath := filepath.Join(t.TempDir(), "page-1.mp3")
		require.NoError(t, os.WriteFile(srcPath, []byte("audio-bytes"), 0o644))

		u := media.NewLocalUploader(baseDir, zap.NewNop())
		uri, err := u.Upload(context.Background(), srcPath, "stories/abc/audio/page-1.mp3", "audio/mpeg")
		require.NoError(t, err)

		destPath := filepath.Join(baseDir, "stories", "abc", "audio", "page-1.mp3")
		assert.Equal(t, "file://"+destPath, uri)

		data, err := os.ReadFile(destPath)
		require.NoError(t, err)
		assert.Equal(t, "audio-bytes", string(data))
	})

	t.Run("missing source fails", func(t *testing.T) {
		u := media.NewLocalUploader(t.TempDir(), zap.NewNop())
		_, err := u.Upload(context.Background(), "/nonexistent/file.mp3", "x.mp3", "audio/mpeg")
		assert.Error(t, err)
	})
}
