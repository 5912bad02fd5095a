package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	genai "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GeminiClient implements Client and VisionClient over the Gemini API. It is
// the pool's rich-input backend: image analysis is routed here when the
// configured backend advertises rich input.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates a client for the given API key and model.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: missing API key")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini init: %w", err)
	}
	return &GeminiClient{client: client, model: model}, nil
}

func (c *GeminiClient) Model() string { return c.model }

func (c *GeminiClient) Generate(ctx context.Context, req *Request) (string, error) {
	model := c.generativeModel(req)
	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return flattenGeminiResponse(resp)
}

func (c *GeminiClient) GenerateStream(ctx context.Context, req *Request) (<-chan StreamChunk, error) {
	model := c.generativeModel(req)
	iter := model.GenerateContentStream(ctx, genai.Text(req.Prompt))

	ch := make(chan StreamChunk, 16)
	go func() {
		defer close(ch)
		var sb strings.Builder
		for {
			resp, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				ch <- StreamChunk{Done: true, FullText: sb.String()}
				return
			}
			if err != nil {
				ch <- StreamChunk{Done: true, FullText: sb.String(), Err: err}
				return
			}
			text, err := flattenGeminiResponse(resp)
			if err != nil || text == "" {
				continue
			}
			sb.WriteString(text)
			select {
			case ch <- StreamChunk{Delta: text}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// GenerateWithFile attaches image bytes to the prompt.
func (c *GeminiClient) GenerateWithFile(ctx context.Context, req *Request, file File) (string, error) {
	format := strings.TrimPrefix(file.MIME, "image/")
	model := c.generativeModel(req)
	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt), genai.ImageData(format, file.Data))
	if err != nil {
		return "", fmt.Errorf("gemini vision: %w", err)
	}
	return flattenGeminiResponse(resp)
}

func (c *GeminiClient) generativeModel(req *Request) *genai.GenerativeModel {
	model := c.client.GenerativeModel(c.model)
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	return model
}

func flattenGeminiResponse(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("gemini: empty response")
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String(), nil
}
