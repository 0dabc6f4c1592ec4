package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalUploaderWritesObject(t *testing.T) {
	dir := t.TempDir()
	u, err := NewLocalUploader(filepath.Join(dir, "out"))
	if err != nil {
		t.Fatal(err)
	}

	res, err := u.Upload(context.Background(), &UploadRequest{
		ObjectName:  "memes/abc/a.png",
		Content:     strings.NewReader("png-bytes"),
		ContentType: "image/png",
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(u.Dir(), "memes", "abc", "a.png"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "png-bytes" {
		t.Errorf("content = %q", data)
	}
	if !strings.HasPrefix(res.URL, "file://") || !strings.HasSuffix(res.URL, "/memes/abc/a.png") {
		t.Errorf("URL = %q, want a file URL", res.URL)
	}
	if !res.ExpiresAt.IsZero() {
		t.Error("local objects never expire")
	}
}

func TestLocalUploaderPublicURL(t *testing.T) {
	u, err := NewLocalUploader(t.TempDir(), WithPublicURL("/files/"))
	if err != nil {
		t.Fatal(err)
	}

	res, err := u.Upload(context.Background(), &UploadRequest{
		ObjectName: "memes/abc/b.mp4",
		Content:    strings.NewReader("mp4"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.URL != "/files/memes/abc/b.mp4" {
		t.Errorf("URL = %q", res.URL)
	}
}

func TestLocalUploaderRejectsEscape(t *testing.T) {
	u, err := NewLocalUploader(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	_, err = u.Upload(context.Background(), &UploadRequest{
		ObjectName: "../outside.png",
		Content:    strings.NewReader("x"),
	})
	if err == nil {
		t.Error("Upload() outside the base directory should fail")
	}
}
