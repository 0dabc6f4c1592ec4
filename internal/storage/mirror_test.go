package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tomasbasham/memegen/internal/operation"
)

type fakeFetcher struct {
	contentType string
	fail        map[string]bool
}

func (f *fakeFetcher) Download(_ context.Context, url string) (io.ReadCloser, string, error) {
	if f.fail[url] {
		return nil, "", errors.New("not found")
	}
	return io.NopCloser(strings.NewReader("data:" + url)), f.contentType, nil
}

type recordingUploader struct {
	requests []UploadRequest
	bodies   []string
}

func (u *recordingUploader) Upload(_ context.Context, req *UploadRequest) (*UploadResult, error) {
	data, err := io.ReadAll(req.Content)
	if err != nil {
		return nil, err
	}
	u.requests = append(u.requests, *req)
	u.bodies = append(u.bodies, string(data))
	return &UploadResult{ObjectName: req.ObjectName, URL: "https://store/" + req.ObjectName}, nil
}

func TestMirrorCopy(t *testing.T) {
	up := &recordingUploader{}
	m := &Mirror{Fetcher: &fakeFetcher{contentType: "application/octet-stream"}, Uploader: up}

	refs := operation.NewMediaRefs([]string{"/output/a.png", "/output/sub/b.WEBM"})
	copies, err := m.Copy(context.Background(), "abc", refs)
	if err != nil {
		t.Fatalf("Copy() error = %v", err)
	}

	if len(copies) != 2 {
		t.Fatalf("copies = %d, want 2", len(copies))
	}
	if copies[0].Kind != operation.MediaImage || copies[1].Kind != operation.MediaVideo {
		t.Errorf("kinds = %s, %s", copies[0].Kind, copies[1].Kind)
	}

	date := time.Now().UTC().Format("2006/01/02")
	if want := "memes/" + date + "/abc/01_a.png"; up.requests[0].ObjectName != want {
		t.Errorf("object name = %q, want %q", up.requests[0].ObjectName, want)
	}
	if copies[1].URL != "https://store/memes/"+date+"/abc/02_b.WEBM" {
		t.Errorf("copy URL = %q", copies[1].URL)
	}
	if up.requests[1].ContentType != "video/webm" {
		t.Errorf("content type = %q, want fallback by extension", up.requests[1].ContentType)
	}
	if up.bodies[0] != "data:/output/a.png" {
		t.Errorf("body = %q", up.bodies[0])
	}
	if copies[0].Source != "/output/a.png" || !copies[0].Mirrored() {
		t.Errorf("copy source = %q, want the service reference", copies[0].Source)
	}
}

func TestMirrorCopyDuplicateBasenames(t *testing.T) {
	dir := t.TempDir()
	local, err := NewLocalUploader(dir, WithPublicURL("/files"))
	if err != nil {
		t.Fatal(err)
	}
	m := &Mirror{Fetcher: &fakeFetcher{}, Uploader: local}

	copies, err := m.Copy(context.Background(), "job", operation.NewMediaRefs([]string{"out/a/meme.png", "out/b/meme.png"}))
	if err != nil {
		t.Fatal(err)
	}
	if copies[0].URL == copies[1].URL {
		t.Fatalf("both copies share %q", copies[0].URL)
	}

	for i, want := range []string{"data:out/a/meme.png", "data:out/b/meme.png"} {
		name := strings.TrimPrefix(copies[i].URL, "/files/")
		data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(name)))
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != want {
			t.Errorf("copy %d = %q, want %q", i+1, data, want)
		}
	}
}

func TestMirrorCopyFetchesServiceReference(t *testing.T) {
	up := &recordingUploader{}
	m := &Mirror{Fetcher: &fakeFetcher{}, Uploader: up}

	already := []operation.MediaRef{{URL: "/files/old/a.png", Kind: operation.MediaImage, Source: "/output/a.png"}}
	copies, err := m.Copy(context.Background(), "abc", already)
	if err != nil {
		t.Fatal(err)
	}
	if up.bodies[0] != "data:/output/a.png" {
		t.Errorf("fetched %q, want the service reference", up.bodies[0])
	}
	if copies[0].Source != "/output/a.png" {
		t.Errorf("source = %q", copies[0].Source)
	}
}

func TestMirrorCopyKeepsServedContentType(t *testing.T) {
	up := &recordingUploader{}
	m := &Mirror{Fetcher: &fakeFetcher{contentType: "image/gif"}, Uploader: up}

	if _, err := m.Copy(context.Background(), "abc", operation.NewMediaRefs([]string{"a.png"})); err != nil {
		t.Fatal(err)
	}
	if up.requests[0].ContentType != "image/gif" {
		t.Errorf("content type = %q", up.requests[0].ContentType)
	}
}

func TestMirrorCopyWithoutJobID(t *testing.T) {
	up := &recordingUploader{}
	m := &Mirror{Fetcher: &fakeFetcher{}, Uploader: up}

	if _, err := m.Copy(context.Background(), "", operation.NewMediaRefs([]string{"a.png"})); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(up.requests[0].ObjectName, "//") {
		t.Errorf("object name %q has an empty job segment", up.requests[0].ObjectName)
	}
}

func TestMirrorCopyFailure(t *testing.T) {
	m := &Mirror{
		Fetcher:  &fakeFetcher{fail: map[string]bool{"b.png": true}},
		Uploader: &recordingUploader{},
	}

	_, err := m.Copy(context.Background(), "abc", operation.NewMediaRefs([]string{"a.png", "b.png"}))
	if err == nil || !strings.Contains(err.Error(), "artefact 2") {
		t.Errorf("err = %v, want failure for artefact 2", err)
	}
}

func TestObjectPathUsesBaseName(t *testing.T) {
	got := ObjectPath("abc", "../../etc/passwd")
	if !strings.HasSuffix(got, "/abc/passwd") || strings.Contains(got, "..") {
		t.Errorf("ObjectPath() = %q", got)
	}
}
