package provider

import (
	"errors"
	"net/http"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/api/googleapi"
)

// IsQuotaError reports whether a generation failure is a rate-limit or quota
// signal, the one failure class that triggers pool rotation instead of a
// terminal error. SDK error types are checked first, then a substring
// fallback for OpenAI-compatible gateways that wrap the status.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}

	var oaErr *openai.APIError
	if errors.As(err, &oaErr) {
		return oaErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	var anErr *anthropic.Error
	if errors.As(err, &anErr) {
		return anErr.StatusCode == http.StatusTooManyRequests
	}
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return gErr.Code == http.StatusTooManyRequests
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"rate limit", "rate-limit", "quota", "429", "resource_exhausted", "too many requests"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
