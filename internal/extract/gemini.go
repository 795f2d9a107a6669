package extract

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/clarivue/claimpilot/internal/model"
	"github.com/clarivue/claimpilot/internal/service"
)

// geminiClient implements the DocumentAI interface for the Gemini API.
type geminiClient struct {
	httpClient  *http.Client
	apiKey      string
	model       string
	temperature float64
}

// newGeminiClient creates a new Gemini API client.
func newGeminiClient(cfg ClientConfig) (service.DocumentAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	mdl := cfg.Model
	if mdl == "" {
		mdl = "gemini-2.5-pro"
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 3 * time.Minute
	}

	return &geminiClient{
		apiKey:      cfg.APIKey,
		model:       mdl,
		temperature: cfg.Temperature,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// ExtractFields sends the document inline with the extraction prompt.
func (c *geminiClient) ExtractFields(ctx context.Context, doc model.Document, docType model.DocumentType, keywordHints []string) (*service.RawExtraction, error) {
	parts := []geminiPart{
		{Text: extractionPrompt(string(docType), keywordHints)},
		{InlineData: &geminiInlineData{
			MimeType: doc.ContentType,
			Data:     base64.StdEncoding.EncodeToString(doc.Data),
		}},
	}

	content, err := c.generate(ctx, parts)
	if err != nil {
		return nil, err
	}
	return parseExtraction(content)
}

// EstimatePrice asks the model for a market-price estimate.
func (c *geminiClient) EstimatePrice(ctx context.Context, procedureName string) (float64, error) {
	content, err := c.generate(ctx, []geminiPart{{Text: estimatePrompt(procedureName)}})
	if err != nil {
		return 0, err
	}
	return parseEstimate(content)
}

func (c *geminiClient) generate(ctx context.Context, parts []geminiPart) (string, error) {
	requestBody := map[string]any{
		"contents": []map[string]any{
			{"parts": parts},
		},
		"generationConfig": map[string]any{
			"temperature": c.temperature,
		},
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent", c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(jsonBody)))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyStatus("gemini", resp.StatusCode, body)
	}

	var response geminiResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if len(response.Candidates) == 0 || len(response.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no completion candidates returned")
	}

	return response.Candidates[0].Content.Parts[0].Text, nil
}
