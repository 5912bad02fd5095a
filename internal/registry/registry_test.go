package registry

import (
	"context"
	"reflect"
	"strings"
	"testing"
)

func TestRegisterAndGet(t *testing.T) {
	r := New()
	r.Register(Spec{Name: "alpha", Description: "first"})
	r.Register(Spec{Name: "beta", Description: "second"})

	if !r.Has("alpha") || r.Has("gamma") {
		t.Error("Has gave wrong membership")
	}
	spec, ok := r.Get("beta")
	if !ok || spec.Description != "second" {
		t.Errorf("Get(beta) = %+v, %v", spec, ok)
	}
	if got := r.Names(); !reflect.DeepEqual(got, []string{"alpha", "beta"}) {
		t.Errorf("Names = %v", got)
	}
}

func TestReRegisterKeepsPosition(t *testing.T) {
	r := New()
	r.Register(Spec{Name: "alpha", Description: "v1"})
	r.Register(Spec{Name: "beta"})
	r.Register(Spec{Name: "alpha", Description: "v2"})

	if got := r.Names(); !reflect.DeepEqual(got, []string{"alpha", "beta"}) {
		t.Errorf("Names = %v, replacement must keep catalogue position", got)
	}
	spec, _ := r.Get("alpha")
	if spec.Description != "v2" {
		t.Errorf("Description = %q, want v2", spec.Description)
	}
}

func TestCatalogRendersDeclarationOrder(t *testing.T) {
	r := New()
	r.Register(Spec{
		Name:        "read_file",
		Description: "Read a file.",
		Params:      []Param{{Name: "path", Required: true, Path: true}},
	})
	r.Register(Spec{
		Name:        "search_files",
		Description: "Search files.",
		Params: []Param{
			{Name: "pattern", Required: true},
			{Name: "path"},
		},
	})

	got := r.Catalog()
	if !strings.HasPrefix(got, "## Available Tools\n\n") {
		t.Errorf("missing header:\n%s", got)
	}
	readIdx := strings.Index(got, "- read_file(path): Read a file.")
	searchIdx := strings.Index(got, "- search_files(pattern, path?): Search files.")
	if readIdx < 0 || searchIdx < 0 {
		t.Fatalf("catalogue lines missing:\n%s", got)
	}
	if readIdx > searchIdx {
		t.Error("catalogue must preserve registration order")
	}
}

func TestArgHelpers(t *testing.T) {
	args := map[string]any{
		"s": "text",
		"i": 7,
		"f": float64(9),
		"b": true,
	}
	if got := GetString(args, "s", "d"); got != "text" {
		t.Errorf("GetString = %q", got)
	}
	if got := GetString(args, "missing", "d"); got != "d" {
		t.Errorf("GetString default = %q", got)
	}
	if got := GetInt(args, "i", 0); got != 7 {
		t.Errorf("GetInt = %d", got)
	}
	if got := GetInt(args, "f", 0); got != 9 {
		t.Errorf("GetInt float = %d", got)
	}
	if got := GetInt(args, "s", 3); got != 3 {
		t.Errorf("GetInt mistyped = %d", got)
	}
	if !GetBool(args, "b", false) || GetBool(args, "missing", false) {
		t.Error("GetBool gave wrong values")
	}
}

func TestHandlerRoundTrip(t *testing.T) {
	r := New()
	r.Register(Spec{
		Name: "echo",
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return GetString(args, "text", ""), nil
		},
	})
	spec, _ := r.Get("echo")
	out, err := spec.Handler(context.Background(), map[string]any{"text": "hi"})
	if err != nil || out != "hi" {
		t.Errorf("handler = %q, %v", out, err)
	}
}
