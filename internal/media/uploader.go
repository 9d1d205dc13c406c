package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"fable-server/internal/config"
	"fable-server/internal/interfaces"
)

// Compile-time checks
var (
	_ interfaces.Uploader = (*MinioUploader)(nil)
	_ interfaces.Uploader = (*LocalUploader)(nil)
)

// MinioUploader поднимает локальные медиафайлы в S3-совместимое
// хранилище и возвращает публичный URL объекта.
type MinioUploader struct {
	client   *minio.Client
	endpoint string
	bucket   string
	useSSL   bool
	logger   *zap.Logger
}

// NewMinioUploader подключается к хранилищу и создает бакет, если его
// еще нет.
func NewMinioUploader(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool, logger *zap.Logger) (*MinioUploader, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", bucket, err)
		}
	}

	return &MinioUploader{
		client:   client,
		endpoint: endpoint,
		bucket:   bucket,
		useSSL:   useSSL,
		logger:   logger.Named("MinioUploader"),
	}, nil
}

// Upload кладет файл в бакет и возвращает URL объекта.
func (u *MinioUploader) Upload(ctx context.Context, localPath, objectName, contentType string) (string, error) {
	info, err := u.client.FPutObject(ctx, u.bucket, objectName, localPath, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", objectName, err)
	}

	scheme := "http"
	if u.useSSL {
		scheme = "https"
	}
	url := fmt.Sprintf("%s://%s/%s/%s", scheme, u.endpoint, u.bucket, objectName)

	u.logger.Info("object uploaded",
		zap.String("object", objectName),
		zap.Int64("size", info.Size),
	)
	return url, nil
}

// LocalUploader копирует артефакты в каталог на диске. Используется
// в разработке, когда объектное хранилище не настроено.
type LocalUploader struct {
	baseDir string
	logger  *zap.Logger
}

// NewLocalUploader создает локальный аплоадер поверх baseDir.
func NewLocalUploader(baseDir string, logger *zap.Logger) *LocalUploader {
	return &LocalUploader{
		baseDir: baseDir,
		logger:  logger.Named("LocalUploader"),
	}
}

// Upload копирует файл под baseDir и возвращает file:// URI.
func (u *LocalUploader) Upload(ctx context.Context, localPath, objectName, contentType string) (string, error) {
	destPath := filepath.Join(u.baseDir, filepath.FromSlash(objectName))
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload dir: %w", err)
	}

	src, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open source file: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("failed to create destination file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(destPath)
		return "", fmt.Errorf("failed to copy artifact: %w", err)
	}

	u.logger.Info("artifact stored locally", zap.String("path", destPath))
	return "file://" + destPath, nil
}

// NewUploader выбирает хранилище по конфигурации: MinIO при заданном
// endpoint, иначе локальный каталог UPLOAD_DIR.
func NewUploader(ctx context.Context, cfg *config.Config, logger *zap.Logger) (interfaces.Uploader, error) {
	if cfg.MinioEndpoint != "" {
		return NewMinioUploader(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL, logger)
	}
	logger.Warn("object storage not configured, storing artifacts locally", zap.String("dir", cfg.UploadDir))
	return NewLocalUploader(cfg.UploadDir, logger), nil
}
