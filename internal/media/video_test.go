package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSegmentArgs(t *testing.T) {
	args := segmentArgs("/work/page-1.png", "/work/segment-000.mp4", 3, 24)

	assert.Equal(t, []string{
		"-loop", "1",
		"-i", "/work/page-1.png",
		"-t", "3.000",
		"-vf", "scale=1280:720:force_original_aspect_ratio=decrease,pad=1280:720:(ow-iw)/2:(oh-ih)/2",
		"-r", "24",
		"-pix_fmt", "yuv420p",
		"-an",
		"-y", "/work/segment-000.mp4",
	}, args)
}

func TestConcatArgs(t *testing.T) {
	t.Run("with audio", func(t *testing.T) {
		args := concatArgs("/work/concat.txt", "/work/narration.mp3", "/work/out.mp4")
		assert.Equal(t, []string{
			"-f", "concat",
			"-safe", "0",
			"-i", "/work/concat.txt",
			"-i", "/work/narration.mp3",
			"-c:v", "copy",
			"-c:a", "aac",
			"-shortest",
			"-y", "/work/out.mp4",
		}, args)
	})

	t.Run("without audio copies streams", func(t *testing.T) {
		args := concatArgs("/work/concat.txt", "", "/work/out.mp4")
		assert.Equal(t, []string{
			"-f", "concat",
			"-safe", "0",
			"-i", "/work/concat.txt",
			"-c", "copy",
			"-y", "/work/out.mp4",
		}, args)
	})
}

func TestConcatList(t *testing.T) {
	t.Run("one line per segment", func(t *testing.T) {
		list := concatList([]string{"/work/a.mp4", "/work/b.mp4"})
		assert.Equal(t, "file '/work/a.mp4'\nfile '/work/b.mp4'\n", list)
	})

	t.Run("single quotes escaped", func(t *testing.T) {
		list := concatList([]string{"/work/o'clock.mp4"})
		assert.Equal(t, `file '/work/o'\''clock.mp4'`+"\n", list)
	})
}

func TestTailOf(t *testing.T) {
	assert.Equal(t, "short", tailOf([]byte("  short \n"), 512))

	long := make([]byte, 600)
	for i := range long {
		long[i] = 'x'
	}
	assert.Len(t, tailOf(long, 512), 512)
}
