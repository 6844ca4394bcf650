// Package media moves uploaded files from local temporary storage into the
// asset store.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/clipshare/backend/internal/logging"
)

// AssetStorage persists asset bytes under a key and returns their public URL.
type AssetStorage interface {
	Save(ctx context.Context, key, contentType string, body io.Reader) (string, error)
}

// Uploader stores local files as public assets.
type Uploader struct {
	storage AssetStorage
	prefix  string
}

// NewUploader constructs an Uploader that stores assets under prefix.
func NewUploader(storage AssetStorage, prefix string) *Uploader {
	if storage == nil {
		panic("media: asset storage must not be nil")
	}
	return &Uploader{storage: storage, prefix: strings.Trim(prefix, "/")}
}

// UploadAsset stores the file at localPath and returns its URL. The local
// file is removed afterwards whether or not the upload succeeded.
func (u *Uploader) UploadAsset(ctx context.Context, localPath string) (url string, err error) {
	if strings.TrimSpace(localPath) == "" {
		return "", errors.New("media: local path is required")
	}

	ctx, span := logging.StartSpan(ctx, "media.upload")
	defer func() { span.End(err) }()
	defer removeLocal(ctx, localPath)

	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(localPath))
	key := path.Join(u.prefix, uuid.NewString()+ext)

	url, err = u.storage.Save(ctx, key, contentType(ext), file)
	if err != nil {
		return "", fmt.Errorf("store asset: %w", err)
	}
	return url, nil
}

// SaveTemp copies src into a new file under dir, keeping the extension of
// name, and returns the file's path.
func SaveTemp(dir, name string, src io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	file, err := os.CreateTemp(dir, "upload-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	if _, err := io.Copy(file, src); err != nil {
		file.Close()
		os.Remove(file.Name())
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(file.Name())
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return file.Name(), nil
}

func contentType(ext string) string {
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

func removeLocal(ctx context.Context, localPath string) {
	if err := os.Remove(localPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.FromContext(ctx).Warn("failed to remove local upload", "path", localPath, "error", err)
	}
}
