package analyzer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// AnthropicClient implements VendorClient against the Anthropic Messages API.
type AnthropicClient struct {
	endpoint   string
	apiKey     string
	model      string
	version    string
	httpClient *http.Client
}

// NewAnthropicClient builds a client from the ANTHROPIC_* configuration.
func NewAnthropicClient(endpoint, apiKey, model, version string) *AnthropicClient {
	return &AnthropicClient{
		endpoint:   endpoint,
		apiKey:     apiKey,
		model:      model,
		version:    version,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type anthropicContentBlock struct {
	Type   string `json:"type"`
	Text   string `json:"text,omitempty"`
	Source *struct {
		Type      string `json:"type"`
		MediaType string `json:"media_type"`
		Data      string `json:"data"`
	} `json:"source,omitempty"`
}

type anthropicRequest struct {
	Model     string                  `json:"model"`
	MaxTokens int                     `json:"max_tokens"`
	System    string                  `json:"system"`
	Messages  []anthropicMessage      `json:"messages"`
}

type anthropicMessage struct {
	Role    string                  `json:"role"`
	Content []anthropicContentBlock `json:"content"`
}

type anthropicResponse struct {
	Content []anthropicContentBlock `json:"content"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete implements VendorClient.
func (c *AnthropicClient) Complete(ctx context.Context, systemPrompt string, images []Image, itemJSON string) (string, error) {
	content := make([]anthropicContentBlock, 0, len(images)+1)
	for _, img := range images {
		content = append(content, anthropicContentBlock{
			Type: "image",
			Source: &struct {
				Type      string `json:"type"`
				MediaType string `json:"media_type"`
				Data      string `json:"data"`
			}{
				Type:      "base64",
				MediaType: img.MediaType,
				Data:      base64.StdEncoding.EncodeToString(img.PNGBytes),
			},
		})
	}
	content = append(content, anthropicContentBlock{Type: "text", Text: itemJSON})

	reqBody := anthropicRequest{
		Model:     c.model,
		MaxTokens: 1024,
		System:    systemPrompt,
		Messages: []anthropicMessage{
			{Role: "user", Content: content},
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal anthropic request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", c.version)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read anthropic response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &VendorHTTPError{Status: resp.StatusCode, Body: string(respBody)}
	}

	var ar anthropicResponse
	if err := json.Unmarshal(respBody, &ar); err != nil {
		return "", fmt.Errorf("decode anthropic response: %w", err)
	}
	if ar.Error != nil {
		return "", fmt.Errorf("anthropic error: %s", ar.Error.Message)
	}
	if len(ar.Content) == 0 {
		return "", fmt.Errorf("anthropic response: empty content")
	}
	return ar.Content[0].Text, nil
}
