package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/clipshare/backend/internal/config"
)

type fakeS3 struct {
	manager.UploadAPIClient

	input *s3.PutObjectInput
	body  string
	err   error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.input = in
	f.body = string(data)
	return &s3.PutObjectOutput{}, nil
}

func TestS3StorageSave(t *testing.T) {
	client := &fakeS3{}
	store := newS3Storage(client, config.ObjectStoreConfig{Bucket: "assets", PublicBaseURL: "https://cdn.example.com/"})

	url, err := store.Save(context.Background(), "/avatars/abc.png", "image/png", strings.NewReader("png-bytes"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if url != "https://cdn.example.com/avatars/abc.png" {
		t.Fatalf("unexpected url %q", url)
	}
	if aws.ToString(client.input.Bucket) != "assets" || aws.ToString(client.input.Key) != "avatars/abc.png" {
		t.Fatalf("unexpected target %s/%s", aws.ToString(client.input.Bucket), aws.ToString(client.input.Key))
	}
	if aws.ToString(client.input.ContentType) != "image/png" || client.body != "png-bytes" {
		t.Fatalf("unexpected object %q %q", aws.ToString(client.input.ContentType), client.body)
	}
}

func TestS3StorageSaveErrors(t *testing.T) {
	store := newS3Storage(&fakeS3{err: errors.New("denied")}, config.ObjectStoreConfig{Bucket: "assets"})

	if _, err := store.Save(context.Background(), "/", "", strings.NewReader("x")); err == nil {
		t.Fatal("expected empty key to fail")
	}
	if _, err := store.Save(context.Background(), "covers/a.jpg", "", strings.NewReader("x")); err == nil {
		t.Fatal("expected upload failure to propagate")
	}
}

func TestPublicBaseURL(t *testing.T) {
	cases := []struct {
		cfg  config.ObjectStoreConfig
		want string
	}{
		{config.ObjectStoreConfig{Bucket: "b", PublicBaseURL: "https://cdn/"}, "https://cdn"},
		{config.ObjectStoreConfig{Bucket: "b", Endpoint: "http://minio:9000/"}, "http://minio:9000/b"},
		{config.ObjectStoreConfig{Bucket: "b", Region: "eu-west-1"}, "https://b.s3.eu-west-1.amazonaws.com"},
	}
	for _, tc := range cases {
		if got := publicBaseURL(tc.cfg); got != tc.want {
			t.Fatalf("publicBaseURL(%+v) = %q want %q", tc.cfg, got, tc.want)
		}
	}
}
