package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fable-server/internal/interfaces"
)

const (
	defaultPageDuration = 3.0
	videoWidth          = 1280
	videoHeight         = 720
)

// Compile-time check
var _ interfaces.VideoComposer = (*Composer)(nil)

// Composer собирает видео из страничных иллюстраций и аудиодорожки
// через внешний ffmpeg. Каждое изображение превращается в сегмент,
// сегменты склеиваются concat-демуксером, аудио подмешивается
// с -shortest, чтобы хвост звука не растягивал ролик.
type Composer struct {
	ffmpegPath string
	fps        int
	workDir    string
	logger     *zap.Logger
}

// NewComposer создает видеокомпозитор. ffmpegPath — бинарь ffmpeg,
// workDir — каталог для сегментов и итогового файла.
func NewComposer(ffmpegPath string, fps int, workDir string, logger *zap.Logger) *Composer {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if fps <= 0 {
		fps = 24
	}
	return &Composer{
		ffmpegPath: ffmpegPath,
		fps:        fps,
		workDir:    workDir,
		logger:     logger.Named("VideoComposer"),
	}
}

// Compose строит ролик и возвращает путь к локальному файлу.
// Промежуточные сегменты удаляются, итоговый файл остается: его
// забирает Uploader, после чего воркер удаляет его из каталога.
func (c *Composer) Compose(ctx context.Context, input interfaces.VideoComposeInput) (string, error) {
	if len(input.ImageURIs) == 0 {
		return "", fmt.Errorf("video compose requires at least one image")
	}

	format := input.Format
	if format == "" {
		format = "mp4"
	}
	fps := input.FPS
	if fps <= 0 {
		fps = c.fps
	}

	jobDir := filepath.Join(c.workDir, fmt.Sprintf("compose-%s", uuid.NewString()))
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create compose work dir: %w", err)
	}
	defer os.RemoveAll(jobDir)

	segments := make([]string, 0, len(input.ImageURIs))
	for i, image := range input.ImageURIs {
		duration := defaultPageDuration
		if i < len(input.PerPageDurations) && input.PerPageDurations[i] > 0 {
			duration = input.PerPageDurations[i]
		}
		segPath := filepath.Join(jobDir, fmt.Sprintf("segment-%03d.%s", i, format))
		args := segmentArgs(image, segPath, duration, fps)
		if err := c.runFFmpeg(ctx, args); err != nil {
			return "", fmt.Errorf("segment %d: %w", i, err)
		}
		segments = append(segments, segPath)
	}

	listPath := filepath.Join(jobDir, "concat.txt")
	if err := os.WriteFile(listPath, []byte(concatList(segments)), 0o644); err != nil {
		return "", fmt.Errorf("failed to write concat list: %w", err)
	}

	outPath := filepath.Join(c.workDir, fmt.Sprintf("video-%s.%s", uuid.NewString(), format))
	args := concatArgs(listPath, input.AudioURI, outPath)
	if err := c.runFFmpeg(ctx, args); err != nil {
		os.Remove(outPath)
		return "", fmt.Errorf("concat: %w", err)
	}

	c.logger.Info("video composed",
		zap.Int("segments", len(segments)),
		zap.Bool("withAudio", input.AudioURI != ""),
		zap.String("path", outPath),
	)
	return outPath, nil
}

func (c *Composer) runFFmpeg(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, c.ffmpegPath, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg failed: %w: %s", err, tailOf(output, 512))
	}
	return nil
}

// segmentArgs собирает аргументы для одного сегмента: изображение
// зациклено на duration секунд, приведено к 1280x720 с паддингом
// без искажения пропорций.
func segmentArgs(imagePath, outPath string, duration float64, fps int) []string {
	scale := fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2",
		videoWidth, videoHeight, videoWidth, videoHeight,
	)
	return []string{
		"-loop", "1",
		"-i", imagePath,
		"-t", fmt.Sprintf("%.3f", duration),
		"-vf", scale,
		"-r", fmt.Sprintf("%d", fps),
		"-pix_fmt", "yuv420p",
		"-an",
		"-y", outPath,
	}
}

// concatArgs склеивает сегменты concat-демуксером и, если задана
// аудиодорожка, подмешивает ее с -shortest.
func concatArgs(listPath, audioPath, outPath string) []string {
	args := []string{
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
	}
	if audioPath != "" {
		args = append(args,
			"-i", audioPath,
			"-c:v", "copy",
			"-c:a", "aac",
			"-shortest",
		)
	} else {
		args = append(args, "-c", "copy")
	}
	return append(args, "-y", outPath)
}

// concatList формирует файл для concat-демуксера. Одинарные кавычки
// в путях экранируются по правилам ffmpeg.
func concatList(paths []string) string {
	var b strings.Builder
	for _, p := range paths {
		escaped := strings.ReplaceAll(p, "'", `'\''`)
		fmt.Fprintf(&b, "file '%s'\n", escaped)
	}
	return b.String()
}

func tailOf(output []byte, limit int) string {
	s := strings.TrimSpace(string(output))
	if len(s) <= limit {
		return s
	}
	return s[len(s)-limit:]
}
