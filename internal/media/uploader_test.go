package media

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type recordingStorage struct {
	key         string
	contentType string
	body        string
	err         error
}

func (s *recordingStorage) Save(_ context.Context, key, contentType string, body io.Reader) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	s.key, s.contentType, s.body = key, contentType, string(data)
	return "https://cdn.example.com/" + key, nil
}

func TestUploadAssetStoresAndRemovesFile(t *testing.T) {
	dir := t.TempDir()
	local, err := SaveTemp(dir, "Avatar.PNG", strings.NewReader("image-bytes"))
	if err != nil {
		t.Fatalf("save temp: %v", err)
	}
	if filepath.Dir(local) != dir || filepath.Ext(local) != ".png" {
		t.Fatalf("unexpected temp path %q", local)
	}

	storage := &recordingStorage{}
	url, err := NewUploader(storage, "/avatars/").UploadAsset(context.Background(), local)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	if !strings.HasPrefix(storage.key, "avatars/") || !strings.HasSuffix(storage.key, ".png") {
		t.Fatalf("unexpected key %q", storage.key)
	}
	if storage.contentType != "image/png" || storage.body != "image-bytes" {
		t.Fatalf("unexpected stored object %q %q", storage.contentType, storage.body)
	}
	if url != "https://cdn.example.com/"+storage.key {
		t.Fatalf("unexpected url %q", url)
	}
	if _, err := os.Stat(local); !os.IsNotExist(err) {
		t.Fatalf("expected local file to be removed, stat err=%v", err)
	}
}

func TestUploadAssetRemovesFileOnFailure(t *testing.T) {
	local, err := SaveTemp(t.TempDir(), "cover.jpg", strings.NewReader("bytes"))
	if err != nil {
		t.Fatalf("save temp: %v", err)
	}

	_, err = NewUploader(&recordingStorage{err: errors.New("bucket unavailable")}, "covers").UploadAsset(context.Background(), local)
	if err == nil {
		t.Fatal("expected upload failure")
	}
	if _, statErr := os.Stat(local); !os.IsNotExist(statErr) {
		t.Fatalf("expected local file to be removed after failure, stat err=%v", statErr)
	}
}

func TestUploadAssetMissingFile(t *testing.T) {
	uploader := NewUploader(&recordingStorage{}, "avatars")

	if _, err := uploader.UploadAsset(context.Background(), ""); err == nil {
		t.Fatal("expected empty path to fail")
	}
	if _, err := uploader.UploadAsset(context.Background(), filepath.Join(t.TempDir(), "gone.png")); err == nil {
		t.Fatal("expected missing file to fail")
	}
}

func TestContentTypeFallback(t *testing.T) {
	if got := contentType(".clipshare-unknown"); got != "application/octet-stream" {
		t.Fatalf("unexpected fallback %q", got)
	}
}
