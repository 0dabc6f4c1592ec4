package cmd

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tomasbasham/cli-runtime/iooption"
)

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/upload":
			_, _ = io.WriteString(w, `{"success": true, "task_id": "abc"}`)
		case r.URL.Path == "/status/abc":
			_, _ = io.WriteString(w, `{"ready": true, "success": true, "memes": ["/output/a.png", "/output/b.webm"]}`)
		case strings.HasPrefix(r.URL.Path, "/output/"):
			w.Header().Set("Content-Type", "application/octet-stream")
			_, _ = io.WriteString(w, "meme:"+r.URL.Path)
		case r.URL.Path == "/get_all_memes":
			_, _ = io.WriteString(w, `{"memes": []}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func runCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	for _, k := range []string{"MEMEGEN_API_URL", "MEMEGEN_POLL_INTERVAL", "MEMEGEN_LOG_LEVEL", "MEMEGEN_OUT_DIR", "MEMEGEN_BUCKET"} {
		t.Setenv(k, "")
	}

	config := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(config, []byte("log:\n  level: error\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	var out, errOut bytes.Buffer
	o := NewMemegenOptions(iooption.IOStreams{In: strings.NewReader(""), Out: &out, ErrOut: &errOut})
	cmd := NewRootCommandWithArgs(o)
	cmd.SetArgs(append([]string{"--config", config}, args...))

	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestSubmitLinkWaitsAndPrints(t *testing.T) {
	srv := newBackend(t)

	out, _, err := runCommand(t, "submit", "--api-url", srv.URL, "--poll-interval", "1ms", "--link", "https://youtu.be/xyz")
	if err != nil {
		t.Fatalf("submit error = %v", err)
	}
	if !strings.Contains(out, "image  /output/a.png") || !strings.Contains(out, "video  /output/b.webm") {
		t.Errorf("output = %q", out)
	}
}

func TestSubmitNoWaitPrintsID(t *testing.T) {
	srv := newBackend(t)

	out, _, err := runCommand(t, "submit", "--api-url", srv.URL, "--no-wait", "--link", "https://youtu.be/xyz")
	if err != nil {
		t.Fatalf("submit error = %v", err)
	}
	if strings.TrimSpace(out) != "abc" {
		t.Errorf("output = %q, want the job id", out)
	}
}

func TestSubmitRequiresExactlyOneInput(t *testing.T) {
	photo := filepath.Join(t.TempDir(), "cat.png")
	if err := os.WriteFile(photo, []byte("\x89PNG\r\n\x1a\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := [][]string{
		{"submit"},
		{"submit", "--photo", photo, "--link", "https://youtu.be/xyz"},
		{"submit", "--link", "   "},
		{"submit", "--link", "https://youtu.be/xyz", "--no-wait", "--save"},
	}
	for _, args := range tests {
		if _, _, err := runCommand(t, args...); err == nil {
			t.Errorf("%v should fail", args)
		}
	}
}

func TestLatestEmpty(t *testing.T) {
	srv := newBackend(t)

	out, _, err := runCommand(t, "latest", "--api-url", srv.URL)
	if err != nil {
		t.Fatalf("latest error = %v", err)
	}
	if strings.TrimSpace(out) != "No memes found." {
		t.Errorf("output = %q", out)
	}
}

func TestStatusSaveCopiesMemes(t *testing.T) {
	srv := newBackend(t)
	outDir := t.TempDir()

	out, _, err := runCommand(t, "status", "abc", "--api-url", srv.URL, "--poll-interval", "1ms", "--save", "--out-dir", outDir)
	if err != nil {
		t.Fatalf("status error = %v", err)
	}
	if !strings.Contains(out, "Saved 2 meme(s)") {
		t.Errorf("output = %q", out)
	}

	matches, err := filepath.Glob(filepath.Join(outDir, "memes", "*", "*", "*", "abc", "*"))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 2 {
		t.Fatalf("saved files = %v, want 2", matches)
	}

	data, err := os.ReadFile(filepath.Join(filepath.Dir(matches[0]), "01_a.png"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "meme:/output/a.png" {
		t.Errorf("a.png = %q", data)
	}
}
