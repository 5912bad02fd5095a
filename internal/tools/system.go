package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/stepwise-ai/stepwise/internal/provider"
	"github.com/stepwise-ai/stepwise/internal/registry"
)

const (
	defaultLogLines  = 50
	defaultSearchURL = "https://api.duckduckgo.com"
	maxImageBytes    = 10 << 20
)

func registerSystem(r *registry.Registry, deps Deps) {
	r.Register(registry.Spec{
		Name:        "fetch_logs",
		Description: "Fetch the last N lines of the agent's own log file.",
		Params: []registry.Param{
			{Name: "lines", Required: false, Kind: registry.KindInt, DefaultInt: defaultLogLines},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			n := registry.GetInt(args, "lines", defaultLogLines)
			if n <= 0 {
				n = defaultLogLines
			}
			if deps.LogPath == "" {
				return "", fmt.Errorf("log path not configured")
			}
			data, err := os.ReadFile(deps.LogPath)
			if err != nil {
				if os.IsNotExist(err) {
					return "Log file is empty (nothing logged yet).", nil
				}
				return "", fmt.Errorf("reading log: %w", err)
			}
			lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
			if len(lines) > n {
				lines = lines[len(lines)-n:]
			}
			return strings.Join(lines, "\n"), nil
		},
	})

	r.Register(registry.Spec{
		Name:        "analyze_image",
		Description: "Analyze an image file with a vision-capable model and answer a question about it.",
		Params: []registry.Param{
			{Name: "path", Required: true, Path: true},
			{Name: "question", Required: false},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			path, err := deps.Sandbox.Resolve(registry.GetString(args, "path", ""))
			if err != nil {
				return "", err
			}
			question := registry.GetString(args, "question", "Describe this image.")
			data, err := os.ReadFile(path)
			if err != nil {
				if os.IsNotExist(err) {
					return "", fmt.Errorf("file not found: %s", path)
				}
				return "", fmt.Errorf("reading image: %w", err)
			}
			if len(data) > maxImageBytes {
				return "", fmt.Errorf("image too large: %d bytes (limit %d)", len(data), maxImageBytes)
			}
			mime := mimeForImage(path)
			if mime == "" {
				return "", fmt.Errorf("unsupported image type: %s", filepath.Ext(path))
			}
			var backend *provider.Backend
			if deps.Pool != nil {
				backend = deps.Pool.RichInputBackend()
			}
			if backend == nil {
				return "", fmt.Errorf("no vision-capable backend configured")
			}
			vc, ok := backend.Client.(provider.VisionClient)
			if !ok {
				return "", fmt.Errorf("backend %s does not accept image input", backend.Name)
			}
			answer, err := vc.GenerateWithFile(ctx, &provider.Request{Prompt: question}, provider.File{
				Name: filepath.Base(path),
				MIME: mime,
				Data: data,
			})
			if err != nil {
				return "", fmt.Errorf("vision request: %w", err)
			}
			return answer, nil
		},
	})

	r.Register(registry.Spec{
		Name:        "web_search",
		Description: "Search the web and return a short digest of results.",
		Params: []registry.Param{
			{Name: "query", Required: true},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			query := registry.GetString(args, "query", "")
			if query == "" {
				return "", fmt.Errorf("query is required")
			}
			base := deps.SearchBaseURL
			if base == "" {
				base = defaultSearchURL
			}
			return runWebSearch(ctx, base, query)
		},
	})
}

type searchResponse struct {
	AbstractText  string `json:"AbstractText"`
	AbstractURL   string `json:"AbstractURL"`
	Answer        string `json:"Answer"`
	RelatedTopics []struct {
		Text     string `json:"Text"`
		FirstURL string `json:"FirstURL"`
	} `json:"RelatedTopics"`
}

func runWebSearch(ctx context.Context, base, query string) (string, error) {
	var parsed searchResponse
	resp, err := resty.New().R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":             query,
			"format":        "json",
			"no_html":       "1",
			"skip_disambig": "1",
		}).
		SetResult(&parsed).
		ForceContentType("application/json").
		Get(base + "/")
	if err != nil {
		return "", fmt.Errorf("search request: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("search returned status %d", resp.StatusCode())
	}

	var sb strings.Builder
	if parsed.Answer != "" {
		fmt.Fprintf(&sb, "%s\n", parsed.Answer)
	}
	if parsed.AbstractText != "" {
		fmt.Fprintf(&sb, "%s\n%s\n", parsed.AbstractText, parsed.AbstractURL)
	}
	count := 0
	for _, topic := range parsed.RelatedTopics {
		if topic.Text == "" {
			continue
		}
		fmt.Fprintf(&sb, "- %s (%s)\n", topic.Text, topic.FirstURL)
		count++
		if count >= 5 {
			break
		}
	}
	if sb.Len() == 0 {
		return fmt.Sprintf("No results for %q.", query), nil
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

func mimeForImage(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return ""
	}
}
