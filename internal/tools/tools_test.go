package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stepwise-ai/stepwise/internal/profile"
	"github.com/stepwise-ai/stepwise/internal/registry"
	"github.com/stepwise-ai/stepwise/internal/sandbox"
)

func newTestDeps(t *testing.T) (*registry.Registry, Deps, string) {
	t.Helper()
	root := t.TempDir()
	sb, err := sandbox.New([]string{root}, []string{"config.json"}, "")
	if err != nil {
		t.Fatalf("sandbox.New: %v", err)
	}
	deps := Deps{
		Sandbox: sb,
		Profile: profile.NewStore(filepath.Join(root, "profile.json")),
		LogPath: filepath.Join(root, "agent.log"),
	}
	r := registry.New()
	RegisterAll(r, deps)
	return r, deps, sb.Roots()[0]
}

func call(t *testing.T, r *registry.Registry, name string, args map[string]any) (string, error) {
	t.Helper()
	spec, ok := r.Get(name)
	if !ok {
		t.Fatalf("tool %s not registered", name)
	}
	return spec.Handler(context.Background(), args)
}

func TestRegisterAllCatalogue(t *testing.T) {
	r, _, _ := newTestDeps(t)
	want := []string{
		"read_file", "write_file", "create_file", "delete_file", "list_files", "search_files",
		"read_profile", "update_profile", "append_note",
		"fetch_logs", "analyze_image", "web_search",
	}
	got := r.Names()
	if len(got) != len(want) {
		t.Fatalf("registered %d tools, want %d: %v", len(got), len(want), got)
	}
	for i, name := range want {
		if got[i] != name {
			t.Errorf("tool %d = %s, want %s", i, got[i], name)
		}
	}
}

func TestWriteThenReadFile(t *testing.T) {
	r, _, root := newTestDeps(t)
	path := filepath.Join(root, "notes", "hello.txt")

	out, err := call(t, r, "write_file", map[string]any{"path": path, "content": "hello world"})
	if err != nil {
		t.Fatalf("write_file: %v", err)
	}
	if !strings.Contains(out, "11 bytes") {
		t.Errorf("write_file output = %q, want byte count", out)
	}

	got, err := call(t, r, "read_file", map[string]any{"path": path})
	if err != nil {
		t.Fatalf("read_file: %v", err)
	}
	if got != "hello world" {
		t.Errorf("read_file = %q, want %q", got, "hello world")
	}
}

func TestWriteFileBacksUpExisting(t *testing.T) {
	r, _, root := newTestDeps(t)
	path := filepath.Join(root, "data.txt")
	if err := os.WriteFile(path, []byte("v1"), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := call(t, r, "write_file", map[string]any{"path": path, "content": "v2"})
	if err != nil {
		t.Fatalf("write_file: %v", err)
	}
	if !strings.Contains(out, "backed up") {
		t.Errorf("expected backup notice, got %q", out)
	}

	entries, err := os.ReadDir(filepath.Join(root, ".backups"))
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one backup file, got %v (err %v)", entries, err)
	}
	backup, _ := os.ReadFile(filepath.Join(root, ".backups", entries[0].Name()))
	if string(backup) != "v1" {
		t.Errorf("backup content = %q, want v1", backup)
	}
}

func TestReadFileOutsideSandbox(t *testing.T) {
	r, _, _ := newTestDeps(t)
	_, err := call(t, r, "read_file", map[string]any{"path": "/etc/passwd"})
	if err == nil {
		t.Fatal("expected containment error for /etc/passwd")
	}
	if !strings.Contains(err.Error(), "access denied") {
		t.Errorf("error = %v, want access denied", err)
	}
}

func TestCreateFileRefusesExisting(t *testing.T) {
	r, _, root := newTestDeps(t)
	path := filepath.Join(root, "exists.txt")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := call(t, r, "create_file", map[string]any{"path": path, "content": "y"}); err == nil {
		t.Fatal("expected error creating existing file")
	}
}

func TestDeleteFileProtectsCritical(t *testing.T) {
	r, _, root := newTestDeps(t)
	path := filepath.Join(root, "config.json")
	if err := os.WriteFile(path, []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := call(t, r, "delete_file", map[string]any{"path": path})
	if err == nil || !strings.Contains(err.Error(), "protected") {
		t.Fatalf("expected protected-file refusal, got %v", err)
	}
	if _, statErr := os.Stat(path); statErr != nil {
		t.Errorf("protected file should still exist: %v", statErr)
	}
}

func TestDeleteFileBacksUp(t *testing.T) {
	r, _, root := newTestDeps(t)
	path := filepath.Join(root, "scratch.txt")
	if err := os.WriteFile(path, []byte("bye"), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := call(t, r, "delete_file", map[string]any{"path": path})
	if err != nil {
		t.Fatalf("delete_file: %v", err)
	}
	if !strings.Contains(out, "backed up") {
		t.Errorf("expected backup notice, got %q", out)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Error("file should be gone")
	}
}

func TestListFiles(t *testing.T) {
	r, _, root := newTestDeps(t)
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("a"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(root, "sub"), 0755); err != nil {
		t.Fatal(err)
	}

	out, err := call(t, r, "list_files", map[string]any{"path": root})
	if err != nil {
		t.Fatalf("list_files: %v", err)
	}
	if !strings.Contains(out, "[FILE] a.txt") || !strings.Contains(out, "[DIR]  sub/") {
		t.Errorf("unexpected listing:\n%s", out)
	}
}

func TestSearchFiles(t *testing.T) {
	r, _, root := newTestDeps(t)
	for _, name := range []string{"main.go", "util.go", "readme.md"} {
		if err := os.WriteFile(filepath.Join(root, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	out, err := call(t, r, "search_files", map[string]any{"pattern": "*.go", "path": root})
	if err != nil {
		t.Fatalf("search_files: %v", err)
	}
	if !strings.Contains(out, "Found 2 file(s)") {
		t.Errorf("unexpected result:\n%s", out)
	}
	if strings.Contains(out, "readme.md") {
		t.Errorf("readme.md should not match *.go:\n%s", out)
	}
}

func TestProfileRoundTrip(t *testing.T) {
	r, _, _ := newTestDeps(t)

	if _, err := call(t, r, "update_profile", map[string]any{"field": "name", "value": "Ada"}); err != nil {
		t.Fatalf("update_profile: %v", err)
	}
	out, err := call(t, r, "read_profile", map[string]any{"field": "name"})
	if err != nil {
		t.Fatalf("read_profile: %v", err)
	}
	if out != "name: Ada" {
		t.Errorf("read_profile = %q", out)
	}

	if _, err := call(t, r, "read_profile", map[string]any{"field": "missing"}); err == nil {
		t.Error("expected error for unset field")
	}

	if _, err := call(t, r, "append_note", map[string]any{"category": "prefs", "content": "likes Go"}); err != nil {
		t.Fatalf("append_note: %v", err)
	}
}

func TestFetchLogsTail(t *testing.T) {
	r, deps, _ := newTestDeps(t)
	lines := []string{"one", "two", "three", "four"}
	if err := os.WriteFile(deps.LogPath, []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := call(t, r, "fetch_logs", map[string]any{"lines": 2})
	if err != nil {
		t.Fatalf("fetch_logs: %v", err)
	}
	if out != "three\nfour" {
		t.Errorf("fetch_logs = %q, want last two lines", out)
	}
}

func TestWebSearchDigest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Query().Get("q") != "golang" {
			t.Errorf("query param q = %q", req.URL.Query().Get("q"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"AbstractText": "Go is a programming language.",
			"AbstractURL": "https://go.dev",
			"RelatedTopics": [{"Text": "Go (game)", "FirstURL": "https://example.com/go"}]
		}`))
	}))
	defer srv.Close()

	root := t.TempDir()
	sb, err := sandbox.New([]string{root}, nil, "")
	if err != nil {
		t.Fatal(err)
	}
	r := registry.New()
	RegisterAll(r, Deps{Sandbox: sb, Profile: profile.NewStore(filepath.Join(root, "p.json")), SearchBaseURL: srv.URL})

	out, err := call(t, r, "web_search", map[string]any{"query": "golang"})
	if err != nil {
		t.Fatalf("web_search: %v", err)
	}
	if !strings.Contains(out, "Go is a programming language.") || !strings.Contains(out, "Go (game)") {
		t.Errorf("unexpected digest:\n%s", out)
	}
}

func TestCategoryOf(t *testing.T) {
	tests := []struct {
		name string
		want Category
	}{
		{"read_file", CategoryFile},
		{"delete_file", CategoryFile},
		{"append_note", CategoryMemory},
		{"web_search", CategorySystem},
		{"something_else", CategorySystem},
	}
	for _, tt := range tests {
		if got := CategoryOf(tt.name); got != tt.want {
			t.Errorf("CategoryOf(%s) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
