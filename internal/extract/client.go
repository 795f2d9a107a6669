package extract

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/clarivue/claimpilot/internal/common"
	"github.com/clarivue/claimpilot/internal/service"
)

// ClientConfig holds configuration for the AI document collaborator client.
type ClientConfig struct {
	Provider    string
	APIKey      string
	Model       string
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
}

// NewClient creates an AI collaborator client for the configured provider.
func NewClient(cfg ClientConfig) (service.DocumentAI, error) {
	switch strings.ToLower(cfg.Provider) {
	case "gemini":
		return newGeminiClient(cfg)
	case "openai":
		return newOpenAIClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported AI provider: %s", cfg.Provider)
	}
}

// classifyStatus maps a non-200 provider response onto the retry taxonomy:
// 429 is a rate limit, 5xx is worth another attempt, other 4xx are not.
func classifyStatus(provider string, status int, body []byte) error {
	apiErr := fmt.Errorf("%s API error (status %d): %s", provider, status, body)
	switch {
	case status == http.StatusTooManyRequests:
		return &common.RetryableError{
			Err:       fmt.Errorf("%w: %v", common.ErrRateLimit, apiErr),
			Retryable: true,
		}
	case status >= http.StatusInternalServerError:
		return &common.RetryableError{Err: apiErr, Retryable: true}
	default:
		return &common.RetryableError{Err: apiErr, Retryable: false}
	}
}
